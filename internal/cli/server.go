package cli

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"quiz-session-service/internal/app"
	"quiz-session-service/internal/config"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/memory"
	pgstore "quiz-session-service/internal/infra/postgres"
	rediscatalog "quiz-session-service/internal/infra/redis"
	transport "quiz-session-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz session server",
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

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var sessions app.SessionRepository = memory.NewEventStore()
	var catalog app.QuestionCatalog = memory.NewStaticCatalog(sampleQuestions())
	if cfg.Postgres.URL != "" {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		defer db.Close()
		sessions = pgstore.NewEventStore(db)

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader := pgstore.NewQuestionLoader(pool)
		catalog = loader
		if redisClient != nil {
			catalogTTL := config.Duration(cfg.Catalog.TTL, 10*time.Minute)
			catalog = rediscatalog.NewQuestionCatalog(redisClient, loader, catalogTTL)
		}
	}

	service := app.NewSessionService(sessions, catalog, memory.NewProgressTracker())

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	transport.NewHandler(service).Register(mux)
	transport.NewWSHandler(service).Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go runSweeper(sweepCtx, service, cfg)

	go func() {
		log.Printf("starting quiz session service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// runSweeper periodically expires overdue sessions.
func runSweeper(ctx context.Context, service *app.SessionService, cfg config.Config) {
	interval := config.Duration(cfg.Sweep.Interval, time.Minute)
	batch := cfg.Sweep.BatchSize
	if batch <= 0 {
		batch = 100
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n, err := service.SweepExpired(ctx, time.Now(), batch)
			if err != nil {
				log.Printf("expiry sweep: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("expired %d overdue sessions", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// sampleQuestions provides minimal catalog data for running without Postgres.
func sampleQuestions() []domain.QuestionDetail {
	return []domain.QuestionDetail{
		{
			ID:     "q1",
			Prompt: "Which particle marks the direct object?",
			Options: []domain.OptionDetail{
				{ID: "o1", Text: "は", Correct: false},
				{ID: "o2", Text: "を", Correct: true},
				{ID: "o3", Text: "に", Correct: false},
			},
		},
		{
			ID:     "q2",
			Prompt: "What does 水 mean?",
			Options: []domain.OptionDetail{
				{ID: "o1", Text: "fire", Correct: false},
				{ID: "o2", Text: "water", Correct: true},
				{ID: "o3", Text: "tree", Correct: false},
			},
		},
	}
}
