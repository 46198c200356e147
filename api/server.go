package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	actionx "github.com/tanpawarit/chative-guildbot/agent/action"
	"github.com/tanpawarit/chative-guildbot/agent/agents/orchestrator"
	platformx "github.com/tanpawarit/chative-guildbot/agent/platform"
)

type Config struct {
	Addr                string        `envconfig:"ADDR" default:":8080"`
	APIKeys             []string      `envconfig:"API_KEYS" split_words:"true"`
	AllowedOrigins      []string      `envconfig:"ALLOWED_ORIGINS" split_words:"true" default:"*"`
	ConversationTimeout time.Duration `envconfig:"CONVERSATION_TIMEOUT" split_words:"true" default:"2m"`
	ShutdownTimeout     time.Duration `envconfig:"SHUTDOWN_TIMEOUT" split_words:"true" default:"20s"`
	// ScheduledCallbackURL must equal the URL QStash signs as the subject.
	ScheduledCallbackURL string `envconfig:"SCHEDULED_CALLBACK_URL" split_words:"true"`
	AskCommand           string `envconfig:"ASK_COMMAND" split_words:"true" default:"ask"`
}

type ConversationRunner interface {
	RunConversation(ctx context.Context, platform platformx.Platform, channelID string, userID string, text string) (orchestrator.Reply, error)
}

type InteractionVerifier interface {
	Verify(r *http.Request) error
}

type ActionCatalog interface {
	Catalog() []actionx.Declaration
	Version() uint64
}

type InteractionResponder interface {
	EditOriginalResponse(ctx context.Context, interactionToken string, content string) error
}

type CallbackVerifier interface {
	Verify(signature string, body []byte, destination string) error
}

// Deps are the collaborators the HTTP surface needs. Nil optional fields
// disable their routes.
type Deps struct {
	Conversations ConversationRunner
	Platform      platformx.Platform
	Actions       ActionCatalog

	InteractionVerifier  InteractionVerifier
	InteractionResponder InteractionResponder
	CallbackVerifier     CallbackVerifier

	Metrics http.Handler
}

type Server struct {
	cfg  Config
	deps Deps

	httpServer *http.Server
	background sync.WaitGroup
	baseCtx    context.Context
	cancel     context.CancelFunc
}

func NewServer(cfg Config, deps Deps) (*Server, error) {
	if deps.Conversations == nil {
		return nil, errors.New("conversation runner is required")
	}
	if deps.Platform == nil {
		return nil, errors.New("platform is required")
	}
	if cfg.ConversationTimeout <= 0 {
		cfg.ConversationTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 20 * time.Second
	}
	if cfg.AskCommand == "" {
		cfg.AskCommand = "ask"
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{cfg: cfg, deps: deps, baseCtx: baseCtx, cancel: cancel}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.ConversationTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// ListenAndServe blocks until ctx is cancelled, then drains requests and
// background conversations.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	s.Drain(shutdownCtx)
	return err
}

// Drain waits for background conversations, cancelling them when ctx ends.
func (s *Server) Drain(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn().Msg("cancelling unfinished background conversations")
		s.cancel()
		<-done
	}
}

// goBackground runs fn detached from the request with the conversation
// timeout applied.
func (s *Server) goBackground(fn func(ctx context.Context)) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx, cancel := context.WithTimeout(s.baseCtx, s.cfg.ConversationTimeout)
		defer cancel()
		fn(ctx)
	}()
}
