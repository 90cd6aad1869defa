package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/memory"
	pgstore "quiz-session-service/internal/infra/postgres"
	pgmigrations "quiz-session-service/internal/infra/postgres/migrations"
	infraredis "quiz-session-service/internal/infra/redis"
)

func TestSessionLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := openBun(t, ctx, pgURL)
	defer db.Close()
	seedQuestions(t, ctx, db, sampleQuestions())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	store := pgstore.NewEventStore(db)
	catalog := infraredis.NewQuestionCatalog(redisClient, pgstore.NewQuestionLoader(pool), 5*time.Minute)
	service := app.NewSessionService(store, catalog, memory.NewProgressTracker())

	session, err := service.StartSession(ctx, "u1", domain.QuizConfigProps{
		ExamType:      domain.ExamTypeJLPTN5,
		QuestionCount: 2,
	}, []domain.QuestionID{"q1", "q2"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := service.SubmitAnswer(ctx, session.ID(), "u1", "q1", []domain.OptionID{"o2"}); err != nil {
		t.Fatalf("submit q1: %v", err)
	}
	updated, err := service.SubmitAnswer(ctx, session.ID(), "u1", "q2", []domain.OptionID{"o1"})
	if err != nil {
		t.Fatalf("submit q2: %v", err)
	}
	if updated.State() != domain.StateCompleted {
		t.Fatalf("expected auto-complete, got %s", updated.State())
	}

	results, err := service.GetResults(ctx, session.ID(), "u1")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	// q1 answered o2 (correct), q2 answered o1 (wrong).
	if results.Score != 1 || results.QuestionCount != 2 {
		t.Fatalf("expected 1/2, got %d/%d", results.Score, results.QuestionCount)
	}

	// The full event stream replays to the same state from Postgres.
	reloaded, err := store.FindByID(ctx, session.ID())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.State() != domain.StateCompleted || reloaded.Version() != updated.Version() {
		t.Fatalf("replay mismatch: state=%s version=%d want version=%d",
			reloaded.State(), reloaded.Version(), updated.Version())
	}
}

func TestConcurrentSaveLosesByUniqueViolation(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	db := openBun(t, ctx, pgURL)
	defer db.Close()

	store := pgstore.NewEventStore(db)
	cfg, err := domain.NewQuizConfig(domain.QuizConfigProps{
		ExamType:      domain.ExamTypeJLPTN5,
		QuestionCount: 2,
	})
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	session, err := domain.StartNew("u1", cfg, []domain.QuestionID{"q1", "q2"}, time.Now())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}

	first, err := store.FindByID(ctx, session.ID())
	if err != nil {
		t.Fatalf("load first: %v", err)
	}
	second, err := store.FindByID(ctx, session.ID())
	if err != nil {
		t.Fatalf("load second: %v", err)
	}

	ref := domain.NewQuestionReference("q1", []domain.OptionID{"o1", "o2"})
	if err := first.SubmitAnswer("q1", []domain.OptionID{"o1"}, ref, time.Now()); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if err := second.SubmitAnswer("q1", []domain.OptionID{"o2"}, ref, time.Now()); err != nil {
		t.Fatalf("second submit: %v", err)
	}

	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("first save should win: %v", err)
	}
	if err := store.Save(ctx, second); !errors.Is(err, domain.ErrConcurrentModification) {
		t.Fatalf("second save must conflict, got %v", err)
	}

	current, err := store.FindByID(ctx, session.ID())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	answer, _ := current.AnswerFor("q1")
	if got := answer.SelectedOptionIDs(); got[0] != "o1" {
		t.Fatalf("winner's answer must persist, got %v", got)
	}
}

func openBun(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedQuestions(t *testing.T, ctx context.Context, db *bun.DB, questions []domain.QuestionDetail) {
	t.Helper()
	for _, q := range questions {
		data, err := json.Marshal(q)
		if err != nil {
			t.Fatalf("marshal question: %v", err)
		}
		_, err = db.ExecContext(ctx,
			`INSERT INTO questions (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`,
			q.ID.String(), string(data))
		if err != nil {
			t.Fatalf("insert question: %v", err)
		}
	}
}

func sampleQuestions() []domain.QuestionDetail {
	return []domain.QuestionDetail{
		{
			ID:     "q1",
			Prompt: "Choose the correct reading of 水",
			Options: []domain.OptionDetail{
				{ID: "o1", Text: "かわ", Correct: false},
				{ID: "o2", Text: "みず", Correct: true},
			},
		},
		{
			ID:     "q2",
			Prompt: "Choose the correct particle: 学校___行きます",
			Options: []domain.OptionDetail{
				{ID: "o1", Text: "を", Correct: false},
				{ID: "o2", Text: "に", Correct: true},
			},
		},
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
