package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"quizbot-service/internal/app"
	"quizbot-service/internal/config"
	"quizbot-service/internal/infra/file"
	"quizbot-service/internal/infra/memory"
	pgbank "quizbot-service/internal/infra/postgres"
	rediscache "quizbot-service/internal/infra/redis"
	"quizbot-service/internal/infra/sendgrid"
	"quizbot-service/internal/infra/sqlstore"
	"quizbot-service/internal/logger"
	"quizbot-service/internal/notify"
	"quizbot-service/internal/reporting"
	transport "quizbot-service/internal/transport/http"
	"quizbot-service/internal/transport/telegram"
)

// bankDir is the directory relative "file:" bank sources are read from: the
// one holding the config file.
func bankDir(configPath string) string {
	if abs, err := filepath.Abs(configPath); err == nil {
		configPath = abs
	}
	return filepath.Dir(configPath)
}

// NewStartCmd builds the CLI subcommand to start the bot and its HTTP surface.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()
	store := sqlstore.New(db)
	reports := reporting.Open(db.DB, sqlstore.DriverName(db))

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}

	loaders := memory.NewRoutingLoader()
	loaders.Register("file", file.NewBankLoader(bankDir(configPath)))
	loaders.Register("db", store)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("postgres bank pool: %w", err)
		}
		defer pool.Close()
		loaders.Register("postgres", pgbank.NewBankLoader(pool))
	}

	var bankLoader memory.BankLoader = loaders
	if redisClient != nil {
		bankLoader = rediscache.NewBankCache(redisClient, loaders, 10*time.Minute)
	}
	bank := app.NewQuestionBank(memory.NewBankRepository(bankLoader, 0))

	variants, err := app.NewVariants(cfg.Variants())
	if err != nil {
		return err
	}
	if err := bank.Preload(ctx, variants); err != nil {
		return err
	}

	mux := app.NewMessengerMux()
	engine := app.NewSessionEngine(store, bank)

	var publisher *app.ResultPublisher
	if notifier := buildNotifier(cfg, mux, log); notifier != nil {
		publisher = app.NewResultPublisher(reports, notifier, log)
	}
	conversation := app.NewConversation(engine, store, variants, mux, log,
		app.WithQuestionDelay(config.TTLDuration(cfg.Quiz.QuestionDelay, 500*time.Millisecond)),
		app.WithResultPublisher(publisher),
	)

	var (
		locker app.Locker
		dedup  app.Deduper
	)
	dedupTTL := config.TTLDuration(cfg.Redis.DedupTTL, 24*time.Hour)
	if redisClient != nil {
		locker = rediscache.NewIdentityLocker(redisClient, config.TTLDuration(cfg.Redis.LockTTL, 30*time.Second))
		dedup = rediscache.NewDeduper(redisClient, dedupTTL)
	} else {
		locker = memory.NewIdentityLocker()
		dedup = memory.NewDeduper(dedupTTL)
	}
	dispatcher := app.NewDispatcher(conversation, locker, cfg.Quiz.Workers, log, app.WithDeduper(dedup))

	if cfg.Server.WSJWTSecret == "" {
		log.Warn("websocket identities are client-asserted; set ws_jwt_secret outside development")
	}
	wsHandler := transport.NewWSHandler(dispatcher, log, transport.WithTokenSecret(cfg.Server.WSJWTSecret))
	mux.Handle(transport.Scheme, wsHandler)

	httpMux := http.NewServeMux()
	httpMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	httpMux.HandleFunc("/ws", wsHandler.ServeWS)
	httpMux.Handle("/api/", transport.NewAdminHandler(reports, log).Routes(cfg.Server.CORSOrigins))

	var poller *telegram.Poller
	if cfg.Telegram.Token != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		log.Info("telegram bot authorized", "username", bot.Self.UserName, "mode", cfg.Telegram.Mode)
		mux.Handle(telegram.Scheme, telegram.NewMessenger(bot))

		if cfg.Telegram.Mode == config.TelegramWebhook {
			if err := telegram.RegisterWebhook(bot, cfg.Telegram.WebhookURL); err != nil {
				return err
			}
			httpMux.Handle(cfg.Telegram.WebhookPath, telegram.NewWebhook(dispatcher, log))
		} else {
			if err := telegram.DeleteWebhook(bot); err != nil {
				return err
			}
			poller = telegram.NewPoller(bot, dispatcher, log)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(ctx) })
	if poller != nil {
		g.Go(func() error { return poller.Run(ctx) })
	}

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      httpMux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	g.Go(func() error {
		log.Info("starting quiz bot", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	publisher.Wait()
	return err
}

// buildNotifier returns nil when no result recipients are configured.
func buildNotifier(cfg config.Config, messenger app.Messenger, log *logger.Logger) app.Notifier {
	var notifiers notify.Multi
	if len(cfg.Telegram.AdminChatIDs) > 0 && cfg.Telegram.Token != "" {
		chats := make([]string, len(cfg.Telegram.AdminChatIDs))
		for i, id := range cfg.Telegram.AdminChatIDs {
			chats[i] = telegram.ChatAddress(id)
		}
		notifiers = append(notifiers, notify.NewChatDigest(messenger, chats, log))
	}
	if cfg.Email.SendGridAPIKey != "" && len(cfg.Email.Recipients) > 0 {
		client, err := sendgrid.New(log, sendgrid.Config{
			APIKey:           cfg.Email.SendGridAPIKey,
			BaseURL:          cfg.Email.BaseURL,
			DefaultFromEmail: cfg.Email.From,
			DefaultFromName:  cfg.Email.FromName,
		})
		if err != nil {
			log.Warn("email notifications disabled", "error", err)
		} else {
			notifiers = append(notifiers, notify.NewEmail(client, cfg.Email.Recipients))
		}
	}
	if len(notifiers) == 0 {
		return nil
	}
	return notifiers
}
