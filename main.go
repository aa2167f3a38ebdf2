package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"

	"github.com/desyr/companion-chat/pkg/api"
	"github.com/desyr/companion-chat/pkg/auth"
	"github.com/desyr/companion-chat/pkg/database"
	"github.com/desyr/companion-chat/pkg/logger"
	"github.com/desyr/companion-chat/pkg/openrouter"
	"github.com/desyr/companion-chat/pkg/prompt"
	"github.com/desyr/companion-chat/pkg/repository"
	"github.com/desyr/companion-chat/pkg/service"
	"github.com/desyr/companion-chat/pkg/services"
)

type Config struct {
	Port         string `env:"PORT" envDefault:"8080"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"companion.db"`

	// Unset sampling parameters fall back to the client's defaults; an
	// explicit 0 is passed through as 0.
	OpenRouterBaseURL  string   `env:"OPENROUTER_BASE_URL"`
	OpenRouterReferer  string   `env:"OPENROUTER_HTTP_REFERER" envDefault:"https://desyr.app"`
	OpenRouterAppTitle string   `env:"OPENROUTER_APP_TITLE" envDefault:"Desyr"`
	Model              string   `env:"OPENROUTER_MODEL"`
	Temperature        *float64 `env:"OPENROUTER_TEMPERATURE"`
	MaxTokens          int      `env:"OPENROUTER_MAX_TOKENS"`
	TopP               *float64 `env:"OPENROUTER_TOP_P"`
	FrequencyPenalty   *float64 `env:"OPENROUTER_FREQUENCY_PENALTY"`
	PresencePenalty    *float64 `env:"OPENROUTER_PRESENCE_PENALTY"`
	RepetitionPenalty  *float64 `env:"OPENROUTER_REPETITION_PENALTY"`

	CharacterName    string `env:"CHARACTER_NAME" envDefault:"Alexandra"`
	CharacterPrompt  string `env:"CHARACTER_SYSTEM_PROMPT" envDefault:"You are Alexandra, a sophisticated, warm, and wise confidante. You speak with elegance and sensuality, offering insights on relationships, intimacy, and personal growth. Your responses are thoughtful and nuanced, never crude. Match the tone and depth of the user's messages."`
	CharacterWelcome string `env:"CHARACTER_WELCOME"`

	ContinuationMode string `env:"CONTINUATION_MODE" envDefault:"append"`
	PasscodeLength   int    `env:"PASSCODE_LENGTH" envDefault:"4"`
}

func main() {
	slog.SetDefault(slog.New(logger.NewHandler(os.Stderr, logger.DefaultOptions)))

	if err := runMain(); err != nil {
		slog.Error("shutting down due to error", logger.Err(err))
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

func runMain() error {
	serviceGroup, err := setupServices()
	if err != nil {
		return err
	}

	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case s := <-sigCh:
			slog.Info("shutting down due to signal", "signal", s.String())
			cancelFn()
		case <-ctx.Done():
		}
	}()

	return serviceGroup.Run(ctx)
}

func setupServices() (service.Group, error) {
	_ = godotenv.Load()

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing env config: %w", err)
	}
	if cfg.CharacterWelcome == "" {
		cfg.CharacterWelcome = fmt.Sprintf(
			"Hello, I'm %s. It's lovely to meet you. What's on your mind today?", cfg.CharacterName)
	}

	db, err := database.NewSQLite(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("creating db: %w", err)
	}

	settingsRepository := repository.NewSettingsRepository(db)
	personaRepository := repository.NewPersonaRepository(db, settingsRepository)
	conversationRepository := repository.NewConversationRepository()

	client, err := openrouter.NewClient(openrouter.Config{
		BaseURL:           cfg.OpenRouterBaseURL,
		Referer:           cfg.OpenRouterReferer,
		AppTitle:          cfg.OpenRouterAppTitle,
		Model:             cfg.Model,
		Temperature:       cfg.Temperature,
		MaxTokens:         cfg.MaxTokens,
		TopP:              cfg.TopP,
		FrequencyPenalty:  cfg.FrequencyPenalty,
		PresencePenalty:   cfg.PresencePenalty,
		RepetitionPenalty: cfg.RepetitionPenalty,
	}, settingsRepository)
	if err != nil {
		return nil, fmt.Errorf("creating openrouter client: %w", err)
	}

	assembler := prompt.NewAssembler(prompt.ActionHints{})
	gate := services.NewInflightGate()

	chatService := services.NewChatService(
		conversationRepository,
		personaRepository,
		assembler,
		client,
		gate,
		services.ContinuationMode(cfg.ContinuationMode),
		services.CharacterConfig{
			Name:         cfg.CharacterName,
			SystemPrompt: cfg.CharacterPrompt,
			Welcome:      cfg.CharacterWelcome,
		},
	)

	regenerator := services.NewRegenerator(
		conversationRepository,
		personaRepository,
		assembler,
		client,
		gate,
	)

	passcodeGate := auth.NewPasscodeGate(settingsRepository, cfg.PasscodeLength)

	router := api.NewRouter(
		chatService,
		regenerator,
		personaRepository,
		settingsRepository,
		settingsRepository,
		passcodeGate,
		chatService,
	)

	return service.Group{
		service.NewHTTPServer(":"+cfg.Port, router),
	}, nil
}
