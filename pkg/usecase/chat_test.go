package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	"github.com/monfocus/monfocus/pkg/domain/interfaces"
	"github.com/monfocus/monfocus/pkg/domain/model"
	"github.com/monfocus/monfocus/pkg/domain/types"
	"github.com/monfocus/monfocus/pkg/repository/memory"
	"github.com/monfocus/monfocus/pkg/service/normalize"
	"github.com/monfocus/monfocus/pkg/service/retrieval"
	"github.com/monfocus/monfocus/pkg/usecase"
)

// mockLLMSession is a mock gollem Session for testing
type mockLLMSession struct {
	generateStreamFn func(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error)
}

func (s *mockLLMSession) Generate(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
	return s.GenerateContent(ctx, input...)
}

func (s *mockLLMSession) Stream(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (<-chan *gollem.Response, error) {
	return s.GenerateStream(ctx, input...)
}

func (s *mockLLMSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	return &gollem.Response{Texts: []string{"réponse"}}, nil
}

func (s *mockLLMSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	if s.generateStreamFn != nil {
		return s.generateStreamFn(ctx, input...)
	}
	return streamOf(&gollem.Response{Texts: []string{"réponse"}}), nil
}

func (s *mockLLMSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *mockLLMSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *mockLLMSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

// mockLLMClient is a mock gollem LLMClient for testing
type mockLLMClient struct {
	newSessionFn func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error)
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	if c.newSessionFn != nil {
		return c.newSessionFn(ctx, options...)
	}
	return &mockLLMSession{}, nil
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	return nil, nil
}

func streamOf(responses ...*gollem.Response) <-chan *gollem.Response {
	ch := make(chan *gollem.Response, len(responses))
	for _, resp := range responses {
		ch <- resp
	}
	close(ch)
	return ch
}

type chatFixture struct {
	repo interfaces.Repository
	llm  *mockLLMClient
	uc   *usecase.UseCases
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()

	normalizer, err := normalize.New()
	gt.NoError(t, err).Required()

	embedder := &fakeEmbedder{normalizer: normalizer, dim: 64}

	retriever, err := retrieval.New(embedder, normalizer)
	gt.NoError(t, err).Required()

	repo := memory.New()
	llm := &mockLLMClient{}
	return &chatFixture{
		repo: repo,
		llm:  llm,
		uc:   usecase.New(repo, embedder, retriever, llm),
	}
}

func collectEvents(events *[]model.ChatEvent) usecase.EmitFunc {
	return func(event model.ChatEvent) error {
		*events = append(*events, event)
		return nil
	}
}

func TestChatSubmitTurn(t *testing.T) {
	ctx := context.Background()

	t.Run("streams chunks and persists both messages", func(t *testing.T) {
		fx := newChatFixture(t)
		fx.llm.newSessionFn = func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateStreamFn: func(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
					return streamOf(
						&gollem.Response{Texts: []string{"Les matrices"}},
						&gollem.Response{Texts: []string{" sont des tableaux de nombres."}},
					), nil
				},
			}, nil
		}

		p := model.NewVisitor("u-1", nil)
		var events []model.ChatEvent
		session, err := fx.uc.Chat.SubmitTurn(ctx, p, "", "Explique les matrices", collectEvents(&events))
		gt.NoError(t, err).Required()
		gt.Value(t, session).NotNil()

		gt.Array(t, events).Length(4)
		gt.Value(t, events[0]).Equal(model.NewChunkEvent("Les matrices"))
		gt.Value(t, events[1]).Equal(model.NewChunkEvent(" sont des tableaux de nombres."))
		gt.Value(t, events[2]).Equal(model.NewSourceEvent(""))
		gt.Value(t, events[3]).Equal(model.NewEndEvent())

		messages, err := fx.repo.Chat().ListRecentMessages(ctx, session.ID, 0)
		gt.NoError(t, err).Required()
		gt.Array(t, messages).Length(2)
		gt.Value(t, messages[0].Role).Equal(types.RoleUser)
		gt.Value(t, messages[0].Content).Equal("Explique les matrices")
		gt.Value(t, messages[1].Role).Equal(types.RoleAssistant)
		gt.Value(t, messages[1].Content).Equal("Les matrices sont des tableaux de nombres.")
	})

	t.Run("cites the best matching note", func(t *testing.T) {
		fx := newChatFixture(t)
		p := model.NewVisitor("u-1", nil)

		note, err := fx.uc.Note.Create(ctx, p, &usecase.NoteInput{
			Title:   "Algèbre linéaire",
			Content: "Les matrices et leurs déterminants",
		})
		gt.NoError(t, err).Required()

		var events []model.ChatEvent
		session, err := fx.uc.Chat.SubmitTurn(ctx, p, "", "Parle-moi des matrices", collectEvents(&events))
		gt.NoError(t, err).Required()

		gt.Value(t, events[len(events)-2]).Equal(model.NewSourceEvent(note.ID))

		messages, err := fx.repo.Chat().ListRecentMessages(ctx, session.ID, 0)
		gt.NoError(t, err).Required()
		gt.Array(t, messages).Length(2)
		gt.Value(t, messages[1].RelatedNoteID).Equal(note.ID)
	})

	t.Run("mid-stream failure falls back and drops the reply", func(t *testing.T) {
		fx := newChatFixture(t)
		fx.llm.newSessionFn = func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateStreamFn: func(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
					return streamOf(
						&gollem.Response{Texts: []string{"Début de rép"}},
						&gollem.Response{Error: errors.New("backend exploded")},
					), nil
				},
			}, nil
		}

		p := model.NewVisitor("u-1", nil)
		var events []model.ChatEvent
		session, err := fx.uc.Chat.SubmitTurn(ctx, p, "", "Explique les matrices", collectEvents(&events))
		gt.NoError(t, err).Required()

		gt.Array(t, events).Length(3)
		gt.Value(t, events[0]).Equal(model.NewChunkEvent("Début de rép"))
		gt.Value(t, events[1].Content).Equal("Désolé, je n'ai pas pu générer une réponse appropriée. Pouvez-vous reformuler votre question ?")
		gt.Value(t, events[2]).Equal(model.NewEndEvent())

		messages, err := fx.repo.Chat().ListRecentMessages(ctx, session.ID, 0)
		gt.NoError(t, err).Required()
		gt.Array(t, messages).Length(1)
		gt.Value(t, messages[0].Role).Equal(types.RoleUser)
	})

	t.Run("session open failure falls back", func(t *testing.T) {
		fx := newChatFixture(t)
		fx.llm.newSessionFn = func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return nil, errors.New("no backend")
		}

		p := model.NewVisitor("u-1", nil)
		var events []model.ChatEvent
		_, err := fx.uc.Chat.SubmitTurn(ctx, p, "", "Explique les matrices", collectEvents(&events))
		gt.NoError(t, err).Required()

		gt.Array(t, events).Length(2)
		gt.Value(t, events[0].Type).Equal(model.ChatEventChunk)
		gt.Value(t, events[1]).Equal(model.NewEndEvent())
	})

	t.Run("empty generation falls back", func(t *testing.T) {
		fx := newChatFixture(t)
		fx.llm.newSessionFn = func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateStreamFn: func(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
					return streamOf(), nil
				},
			}, nil
		}

		p := model.NewVisitor("u-1", nil)
		var events []model.ChatEvent
		session, err := fx.uc.Chat.SubmitTurn(ctx, p, "", "Explique les matrices", collectEvents(&events))
		gt.NoError(t, err).Required()

		gt.Array(t, events).Length(2)

		messages, err := fx.repo.Chat().ListRecentMessages(ctx, session.ID, 0)
		gt.NoError(t, err).Required()
		gt.Array(t, messages).Length(1)
	})

	t.Run("client disconnect abandons the turn", func(t *testing.T) {
		fx := newChatFixture(t)
		fx.llm.newSessionFn = func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateStreamFn: func(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
					return streamOf(
						&gollem.Response{Texts: []string{"Début"}},
						&gollem.Response{Texts: []string{" suite"}},
					), nil
				},
			}, nil
		}

		turnCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		p := model.NewVisitor("u-1", nil)
		var events []model.ChatEvent
		session, err := fx.uc.Chat.SubmitTurn(turnCtx, p, "", "Explique", func(event model.ChatEvent) error {
			events = append(events, event)
			cancel()
			return errors.New("connection reset")
		})
		gt.Error(t, err)

		// only the chunk attempt, no fallback and no end event
		gt.Array(t, events).Length(1)

		messages, err := fx.repo.Chat().ListRecentMessages(ctx, session.ID, 0)
		gt.NoError(t, err).Required()
		gt.Array(t, messages).Length(1)
		gt.Value(t, messages[0].Role).Equal(types.RoleUser)
	})

	t.Run("rejects an empty message", func(t *testing.T) {
		fx := newChatFixture(t)
		p := model.NewVisitor("u-1", nil)

		var events []model.ChatEvent
		_, err := fx.uc.Chat.SubmitTurn(ctx, p, "", "   ", collectEvents(&events))
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrInvalidArgument)).True()
		gt.Array(t, events).Length(0)
	})

	t.Run("rejects an ended session before persisting", func(t *testing.T) {
		fx := newChatFixture(t)
		p := model.NewVisitor("u-1", nil)

		session, err := fx.uc.Chat.StartSession(ctx, p, "")
		gt.NoError(t, err).Required()
		gt.NoError(t, fx.uc.Chat.EndSession(ctx, p, session.ID))

		var events []model.ChatEvent
		_, err = fx.uc.Chat.SubmitTurn(ctx, p, session.ID, "Encore là ?", collectEvents(&events))
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, interfaces.ErrSessionEnded)).True()
		gt.Array(t, events).Length(0)

		messages, err := fx.repo.Chat().ListRecentMessages(ctx, session.ID, 0)
		gt.NoError(t, err).Required()
		gt.Array(t, messages).Length(0)
	})

	t.Run("another user's session is not found", func(t *testing.T) {
		fx := newChatFixture(t)
		owner := model.NewVisitor("u-1", nil)

		session, err := fx.uc.Chat.StartSession(ctx, owner, "")
		gt.NoError(t, err).Required()

		other := model.NewVisitor("u-2", nil)
		var events []model.ChatEvent
		_, err = fx.uc.Chat.SubmitTurn(ctx, other, session.ID, "Bonjour", collectEvents(&events))
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, interfaces.ErrNotFound)).True()
	})
}

func TestChatSession(t *testing.T) {
	ctx := context.Background()

	t.Run("course scoped session requires the course", func(t *testing.T) {
		fx := newChatFixture(t)
		p := model.NewVisitor("u-1", []types.CourseID{"course-math"})

		session, err := fx.uc.Chat.StartSession(ctx, p, "course-math")
		gt.NoError(t, err).Required()
		gt.Value(t, session.CourseID).Equal(types.CourseID("course-math"))

		_, err = fx.uc.Chat.StartSession(ctx, p, "course-chem")
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrAccessDenied)).True()
	})

	t.Run("ending twice fails", func(t *testing.T) {
		fx := newChatFixture(t)
		p := model.NewVisitor("u-1", nil)

		session, err := fx.uc.Chat.StartSession(ctx, p, "")
		gt.NoError(t, err).Required()

		gt.NoError(t, fx.uc.Chat.EndSession(ctx, p, session.ID))

		err = fx.uc.Chat.EndSession(ctx, p, session.ID)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, interfaces.ErrSessionEnded)).True()
	})

	t.Run("transcript is ordered oldest to newest", func(t *testing.T) {
		fx := newChatFixture(t)
		p := model.NewVisitor("u-1", nil)

		session, err := fx.uc.Chat.StartSession(ctx, p, "")
		gt.NoError(t, err).Required()

		var events []model.ChatEvent
		for _, q := range []string{"Première question", "Deuxième question"} {
			_, err := fx.uc.Chat.SubmitTurn(ctx, p, session.ID, q, collectEvents(&events))
			gt.NoError(t, err).Required()
		}

		messages, err := fx.uc.Chat.ListMessages(ctx, p, session.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, messages).Length(4)
		gt.Value(t, messages[0].Content).Equal("Première question")
		gt.Value(t, messages[2].Content).Equal("Deuxième question")
		for i := 1; i < len(messages); i++ {
			gt.Bool(t, messages[i].Seq > messages[i-1].Seq).True()
		}
	})
}

func TestRenderTutorPrompt(t *testing.T) {
	t.Run("includes excerpts and history in order", func(t *testing.T) {
		results := []retrieval.Result{
			{Title: "Algèbre linéaire", ContentPreview: "Les matrices..."},
			{Title: "Géométrie", ContentPreview: "Le théorème de Thalès..."},
		}
		history := []*model.ChatMessage{
			{Role: types.RoleUser, Content: "Qu'est-ce qu'une matrice ?"},
			{Role: types.RoleAssistant, Content: "Un tableau de nombres."},
		}

		prompt, err := usecase.RenderTutorPrompt(results, history)
		gt.NoError(t, err).Required()

		gt.Bool(t, strings.Contains(prompt, "tuteur en ligne")).True()
		gt.Bool(t, strings.Contains(prompt, "Algèbre linéaire : Les matrices...")).True()
		gt.Bool(t, strings.Contains(prompt, "Géométrie : Le théorème de Thalès...")).True()
		gt.Bool(t, strings.Contains(prompt, "[user] Qu'est-ce qu'une matrice ?")).True()
		gt.Bool(t, strings.Contains(prompt, "[assistant] Un tableau de nombres.")).True()
		gt.Bool(t, strings.Index(prompt, "Algèbre linéaire") < strings.Index(prompt, "[user]")).True()
	})

	t.Run("carries the full tutor persona", func(t *testing.T) {
		prompt, err := usecase.RenderTutorPrompt(nil, nil)
		gt.NoError(t, err).Required()

		for _, point := range []string{
			"Poser des questions",
			"Découper les problèmes",
			"Encourager les efforts",
			"Fournir des ressources",
			"Vérifier les réponses",
			"Ne jamais donner directement la réponse",
		} {
			gt.Bool(t, strings.Contains(prompt, point)).True()
		}
	})

	t.Run("states when no notes matched", func(t *testing.T) {
		prompt, err := usecase.RenderTutorPrompt(nil, nil)
		gt.NoError(t, err).Required()
		gt.Bool(t, strings.Contains(prompt, "Aucune note pertinente")).True()
		gt.Bool(t, strings.Contains(prompt, "Historique")).False()
	})
}
