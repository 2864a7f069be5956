package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/monfocus/monfocus/pkg/cli/config"
	"github.com/monfocus/monfocus/pkg/domain/model"
	"github.com/monfocus/monfocus/pkg/domain/types"
	"github.com/monfocus/monfocus/pkg/service/embedding"
	"github.com/monfocus/monfocus/pkg/service/normalize"
	"github.com/monfocus/monfocus/pkg/service/retrieval"
	"github.com/monfocus/monfocus/pkg/usecase"
	"github.com/monfocus/monfocus/pkg/utils/logging"
	"github.com/monfocus/monfocus/pkg/utils/safe"
)

// cmdChat runs the tutoring conversation in the terminal. Mostly a
// development aid: same engine as the HTTP endpoint, without SSE.
func cmdChat() *cli.Command {
	var userID string
	var courseID string
	var generationTimeout time.Duration
	var repoCfg config.Repository
	var geminiCfg config.Gemini

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user",
			Usage:       "User ID to chat as",
			Value:       "local",
			Sources:     cli.EnvVars("MONFOCUS_CHAT_USER"),
			Destination: &userID,
		},
		&cli.StringFlag{
			Name:        "course",
			Usage:       "Course ID to scope the session to",
			Sources:     cli.EnvVars("MONFOCUS_CHAT_COURSE"),
			Destination: &courseID,
		},
		&cli.DurationFlag{
			Name:        "generation-timeout",
			Usage:       "Upper bound for one chat generation call",
			Value:       60 * time.Second,
			Destination: &generationTimeout,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Chat with the tutor from the terminal",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
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

			p := model.NewVisitor(types.UserID(userID), courseList(courseID))
			session, err := uc.Chat.StartSession(ctx, p, types.CourseID(courseID))
			if err != nil {
				return goerr.Wrap(err, "failed to start chat session")
			}
			defer func() {
				if err := uc.Chat.EndSession(ctx, p, session.ID); err != nil {
					logging.Default().Warn("failed to end chat session", "error", err)
				}
			}()

			promptColor := color.New(color.FgCyan, color.Bold)
			replyColor := color.New(color.FgHiWhite)
			sourceColor := color.New(color.FgYellow)

			promptColor.Println("monFocus tutor. Empty line to quit.")
			scanner := bufio.NewScanner(os.Stdin)
			for {
				promptColor.Print("> ")
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					break
				}

				_, err := uc.Chat.SubmitTurn(ctx, p, session.ID, line, func(event model.ChatEvent) error {
					switch event.Type {
					case model.ChatEventChunk:
						replyColor.Print(event.Content)
					case model.ChatEventSource:
						if event.Source != "" {
							fmt.Println()
							sourceColor.Printf("[source: %s]", event.Source)
						}
					case model.ChatEventEnd:
						fmt.Println()
					}
					return nil
				})
				if err != nil {
					return goerr.Wrap(err, "chat turn failed")
				}
			}

			return scanner.Err()
		},
	}
}

func courseList(courseID string) []types.CourseID {
	if courseID == "" {
		return nil
	}
	return []types.CourseID{types.CourseID(courseID)}
}
