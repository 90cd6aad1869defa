package cli

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"quiz-session-service/internal/app"
	"quiz-session-service/internal/config"
	"quiz-session-service/internal/infra/memory"
	pgstore "quiz-session-service/internal/infra/postgres"
)

// NewSweepCmd runs one expiry sweep and exits. Useful from cron or for
// draining overdue sessions after downtime; the server also sweeps on a timer.
func NewSweepCmd(configPath *string) *cobra.Command {
	var batch int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire overdue quiz sessions once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}

			sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
			db := bun.NewDB(sqldb, pgdialect.New())
			defer db.Close()

			pool, err := pgxpool.Connect(cmd.Context(), cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			service := app.NewSessionService(
				pgstore.NewEventStore(db),
				pgstore.NewQuestionLoader(pool),
				memory.NewProgressTracker(),
			)
			n, err := service.SweepExpired(cmd.Context(), time.Now(), batch)
			if err != nil {
				return err
			}
			log.Printf("expired %d overdue sessions", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&batch, "batch", 100, "maximum sessions to expire")
	return cmd
}
