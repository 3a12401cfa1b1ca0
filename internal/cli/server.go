package cli

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quizquest/internal/app"
	"quizquest/internal/auth"
	"quizquest/internal/bank"
	"quizquest/internal/config"
	"quizquest/internal/infra/memory"
	"quizquest/internal/infra/postgres"
	redisinfra "quizquest/internal/infra/redis"
	"quizquest/internal/infra/sqlite"
	"quizquest/internal/logger"
	transport "quizquest/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// backends holds the optional external connections; nil means not configured.
type backends struct {
	redis  *redis.Client
	pool   *pgxpool.Pool
	sqlite *sql.DB
}

func (b backends) Close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
	if b.sqlite != nil {
		_ = b.sqlite.Close()
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	if cfg.Auth.Secret == "" {
		log.Warn("auth.secret is empty, tokens cannot be verified; set AUTH_SECRET")
	}

	b, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	router := transport.NewRouter(buildDeps(cfg, b, log))

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting quiz server", zap.String("port", finalPort), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func connect(ctx context.Context, cfg config.Config) (backends, error) {
	var b backends
	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return backends{}, err
		}
		b.pool = pool
	} else if cfg.SQLite.Path != "" {
		db, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			b.Close()
			return backends{}, err
		}
		b.sqlite = db
	}
	return b, nil
}

// buildDeps picks one implementation per port: Postgres, then SQLite, then
// memory for attempts; Redis caches in front when configured.
func buildDeps(cfg config.Config, b backends, log *zap.Logger) transport.Deps {
	questions := bank.Default()

	var loader memory.QuizLoader = questions
	if b.pool != nil {
		loader = postgres.NewQuizLoader(b.pool, questions, log)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var quizRepo app.QuizRepository
	var sessions app.SessionRepository
	if b.redis != nil {
		quizRepo = redisinfra.NewQuizRepository(b.redis, loader, quizTTL)
		sessions = redisinfra.NewSessionStore(b.redis, redisTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
		sessions = memory.NewSessionStore()
	}

	var attempts app.AttemptStore
	switch {
	case b.pool != nil:
		attempts = postgres.NewAttemptStore(b.pool, log)
	case b.sqlite != nil:
		attempts = sqlite.NewAttemptStore(b.sqlite, log)
	default:
		log.Warn("no database configured, attempt history is kept in memory")
		attempts = memory.NewAttemptStore()
	}
	if b.redis != nil {
		attempts = redisinfra.NewAttemptCache(b.redis, attempts, redisTTL, log)
	}

	service := app.NewQuizService(sessions, quizRepo, attempts, log,
		app.WithQuestionSeconds(cfg.Quiz.QuestionSeconds),
		app.WithSaveTimeout(config.TTLDuration(cfg.Quiz.SaveTimeout, 5*time.Second)),
	)

	return transport.Deps{
		Quizzes:  service,
		History:  app.NewHistoryService(attempts, log, cfg.Quiz.RecentLimit),
		Catalog:  questions,
		Verifier: newVerifier(cfg),
		Logger:   log,
	}
}

func newVerifier(cfg config.Config) *auth.Verifier {
	return auth.NewVerifier(cfg.Auth.Secret, cfg.Auth.Issuer, config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour))
}
