package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	actionx "github.com/tanpawarit/chative-guildbot/agent/action"
	"github.com/tanpawarit/chative-guildbot/agent/agents/orchestrator"
	llmx "github.com/tanpawarit/chative-guildbot/agent/llm"
	"github.com/tanpawarit/chative-guildbot/agent/metrics"
	"github.com/tanpawarit/chative-guildbot/agent/platform/discord"
	promptx "github.com/tanpawarit/chative-guildbot/agent/prompt"
	"github.com/tanpawarit/chative-guildbot/agent/settings"
	storex "github.com/tanpawarit/chative-guildbot/agent/store"
	"github.com/tanpawarit/chative-guildbot/api"
	configx "github.com/tanpawarit/chative-guildbot/pkg/config"
	_ "github.com/tanpawarit/chative-guildbot/pkg/logger/autoload"
	openrouterx "github.com/tanpawarit/chative-guildbot/pkg/openrouter"
	qstashx "github.com/tanpawarit/chative-guildbot/pkg/qstash"
	"github.com/tanpawarit/chative-guildbot/pkg/telemetry"
)

type AppConfig struct {
	SchedulingEnabled  bool `envconfig:"SCHEDULING_ENABLED" split_words:"true" default:"false"`
	TranslationEnabled bool `envconfig:"TRANSLATION_ENABLED" split_words:"true" default:"true"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatal().Err(err).Msg("guildbot stopped")
	}
}

func run(ctx context.Context) error {
	appCfg := configx.MustNew[AppConfig]("APP")
	prompts := promptx.LoadPromptSet()

	shutdownTracing, err := telemetry.Init(ctx, *configx.MustNew[telemetry.Config]("OTEL"))
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn().Err(err).Msg("shutdown tracing")
		}
	}()

	db, err := storex.Open(*configx.MustNew[storex.Config]("DB"))
	if err != nil {
		return err
	}
	defer db.Close()
	if err := storex.Migrate(ctx, db); err != nil {
		return err
	}
	store := storex.New(db)

	redisClient := settings.NewClient(*configx.MustNew[settings.Config]("REDIS"))
	defer redisClient.Close()
	settingsStore, err := settings.NewRedisStore(redisClient)
	if err != nil {
		return err
	}

	llmCfg := configx.MustNew[llmx.Config]("LLM")
	if err := llmCfg.Validate(); err != nil {
		return err
	}
	orchestratorModelCfg := llmCfg.OpenRouterFor(llmx.RoleOrchestrator)
	chatModel, err := orchestratorModelCfg.New(ctx)
	if err != nil {
		return err
	}

	deps := actionx.Dependencies{
		Tickets: store,
		Levels:  store,
		NewID:   uuid.NewString,
	}
	if appCfg.TranslationEnabled {
		translatorCfg := llmCfg.OpenRouterFor(llmx.RoleTranslator)
		translator, err := llmx.NewTranslator(openrouterx.NewClient(translatorCfg), translatorCfg.Model, prompts.Translator, translatorCfg.Temperature)
		if err != nil {
			return err
		}
		deps.Translator = translator
	}

	apiCfg := configx.MustNew[api.Config]("HTTP")
	var callbackVerifier api.CallbackVerifier
	if appCfg.SchedulingEnabled {
		qstashCfg := configx.MustNew[qstashx.Config]("QSTASH")
		qstashClient := qstashx.MustNew(*qstashCfg)
		deps.Scheduler = qstashClient
		callbackVerifier = qstashClient.Verifier()
		if apiCfg.ScheduledCallbackURL == "" {
			apiCfg.ScheduledCallbackURL = qstashCfg.CallbackURL
		}
	}

	registry := actionx.NewRegistry()
	if err := actionx.RegisterBuiltins(registry, deps); err != nil {
		return err
	}

	recorder := metrics.New()
	orch, err := orchestrator.New(
		chatModel,
		registry,
		settingsStore,
		*configx.MustNew[orchestrator.Config]("ORCHESTRATOR"),
		orchestrator.WithSystemPrompt(prompts.Orchestrator),
		orchestrator.WithRecorder(recorder),
	)
	if err != nil {
		return err
	}

	discordCfg := configx.MustNew[discord.Config]("DISCORD")
	discordClient := discord.MustNew(*discordCfg)
	interactionVerifier, err := discord.NewVerifier(discordCfg.PublicKey)
	if err != nil {
		return err
	}

	server, err := api.NewServer(*apiCfg, api.Deps{
		Conversations:        orch,
		Platform:             discordClient,
		Actions:              registry,
		InteractionVerifier:  interactionVerifier,
		InteractionResponder: discordClient,
		CallbackVerifier:     callbackVerifier,
		Metrics:              recorder.Handler(),
	})
	if err != nil {
		return err
	}

	log.Info().
		Strs("actions", registry.Names()).
		Bool("scheduling", appCfg.SchedulingEnabled).
		Bool("translation", appCfg.TranslationEnabled).
		Msg("guildbot starting")
	return server.ListenAndServe(ctx)
}
