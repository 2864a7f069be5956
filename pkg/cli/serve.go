package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/monfocus/monfocus/pkg/cli/config"
	httpctrl "github.com/monfocus/monfocus/pkg/controller/http"
	"github.com/monfocus/monfocus/pkg/service/embedding"
	"github.com/monfocus/monfocus/pkg/service/normalize"
	"github.com/monfocus/monfocus/pkg/service/retrieval"
	"github.com/monfocus/monfocus/pkg/usecase"
	"github.com/monfocus/monfocus/pkg/utils/logging"
	"github.com/monfocus/monfocus/pkg/utils/safe"
)

func cmdServe() *cli.Command {
	var addr string
	var generationTimeout time.Duration
	var repoCfg config.Repository
	var geminiCfg config.Gemini
	var coursesCfg config.Courses

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("MONFOCUS_ADDR"),
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "generation-timeout",
			Usage:       "Upper bound for one chat generation call",
			Value:       60 * time.Second,
			Sources:     cli.EnvVars("MONFOCUS_GENERATION_TIMEOUT"),
			Destination: &generationTimeout,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, coursesCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			courseIDs, err := coursesCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load course catalog")
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer safe.Close(ctx, repo)

			llmClient, err := geminiCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize Gemini client")
			}

			normalizer, err := normalize.New()
			if err != nil {
				return goerr.Wrap(err, "failed to build text normalizer")
			}

			embedder, err := embedding.New(llmClient, normalizer)
			if err != nil {
				return goerr.Wrap(err, "failed to build embedding service")
			}

			retriever, err := retrieval.New(embedder, normalizer)
			if err != nil {
				return goerr.Wrap(err, "failed to build retrieval service")
			}

			uc := usecase.New(repo, embedder, retriever, llmClient,
				usecase.WithGenerationTimeout(generationTimeout),
			)

			handler := httpctrl.New(uc,
				httpctrl.WithPrincipalResolver(httpctrl.NewHeaderPrincipalResolver(courseIDs)),
			)
			server := &http.Server{
				Addr:              addr,
				Handler:           handler,
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to serve HTTP")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Default().Info("Shutting down HTTP server", "signal", sig.String())
			case <-ctx.Done():
				logging.Default().Info("Shutting down HTTP server", "reason", "context canceled")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown HTTP server")
			}

			return nil
		},
	}
}
