package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"quizquest/internal/bank"
	"quizquest/internal/config"
	"quizquest/internal/domain"
	"quizquest/internal/infra/postgres"
	redisinfra "quizquest/internal/infra/redis"
	"quizquest/internal/logger"
)

// NewQuizCmd groups quiz content management.
func NewQuizCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Manage quiz content stored in Postgres",
	}
	cmd.AddCommand(newQuizPutCmd(configPath))
	return cmd
}

func newQuizPutCmd(configPath *string) *cobra.Command {
	var (
		file   string
		quizID int
	)
	cmd := &cobra.Command{
		Use:   "put",
		Short: "Store a quiz from a YAML file, replacing the built-in one with the same id",
		RunE: func(cmd *cobra.Command, args []string) error {
			quiz, err := readQuizFile(file)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("id") {
				quiz.ID = quizID
			}
			if err := quiz.Validate(); err != nil {
				return err
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Env)
			if err != nil {
				return err
			}
			defer log.Sync()
			return putQuiz(cmd.Context(), cfg, log, quiz)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML file with id, title and questions")
	cmd.Flags().IntVar(&quizID, "id", 0, "quiz id (overrides the file)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readQuizFile(path string) (domain.Quiz, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Quiz{}, err
	}
	var quiz domain.Quiz
	if err := yaml.Unmarshal(data, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return quiz, nil
}

// putQuiz upserts the row and drops the Redis copy so servers reload it.
func putQuiz(ctx context.Context, cfg config.Config, log *zap.Logger, quiz domain.Quiz) error {
	if cfg.Postgres.URL == "" {
		return errNoPostgres
	}
	if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
		return err
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	loader := postgres.NewQuizLoader(pool, bank.Default(), log)
	if err := loader.Put(ctx, quiz); err != nil {
		return err
	}
	log.Info("quiz stored", zap.Int("quiz_id", quiz.ID), zap.Int("questions", len(quiz.Questions)))

	if cfg.Redis.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()
	repo := redisinfra.NewQuizRepository(client, loader, config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute))
	if err := repo.Invalidate(ctx, quiz.ID); err != nil {
		return fmt.Errorf("invalidate cached quiz: %w", err)
	}
	return nil
}
