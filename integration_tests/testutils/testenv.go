//go:build integration

package testutils

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace/noop"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	vrfdomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/vrf/domain"
	"github.com/Black-And-White-Club/frolf-raffle/config"
	"github.com/Black-And-White-Club/frolf-raffle/integration_tests/containers"
	"github.com/Black-And-White-Club/frolf-raffle/internal/db/bundb"
	"github.com/Black-And-White-Club/frolf-raffle/internal/eventbus"
)

// StreamNames lists the streams the raffle binaries own.
var StreamNames = []string{raffledomain.StreamName, vrfdomain.StreamName}

// TestEnvironment holds the containers and connections shared by a test package.
type TestEnvironment struct {
	Ctx           context.Context
	CancelContext context.CancelFunc
	PgContainer   *postgres.PostgresContainer
	NatsContainer testcontainers.Container
	DB            *bun.DB
	NatsConn      *nats.Conn
	JetStream     jetstream.JetStream
	Config        *config.Config
}

var (
	testEnv     *TestEnvironment
	testEnvOnce sync.Once
	testEnvErr  error
)

// GetTestEnv starts the containers once per test binary.
func GetTestEnv(t *testing.T) *TestEnvironment {
	t.Helper()

	testEnvOnce.Do(func() {
		log.Println("Initializing raffle test environment...")
		testEnv, testEnvErr = NewTestEnvironment(context.Background())
	})
	if testEnvErr != nil {
		t.Fatalf("test environment initialization failed: %v", testEnvErr)
	}
	return testEnv
}

// NewTestEnvironment starts Postgres and NATS and applies every migration.
func NewTestEnvironment(parent context.Context) (*TestEnvironment, error) {
	ctx, cancel := context.WithCancel(parent)
	env := &TestEnvironment{Ctx: ctx, CancelContext: cancel}

	pgContainer, dsn, err := containers.SetupPostgresContainer(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to setup postgres container: %w", err)
	}
	env.PgContainer = pgContainer

	natsContainer, natsURL, err := containers.SetupNatsContainer(ctx)
	if err != nil {
		env.Cleanup()
		return nil, fmt.Errorf("failed to setup nats container: %w", err)
	}
	env.NatsContainer = natsContainer

	db, err := bundb.Open(ctx, dsn)
	if err != nil {
		env.Cleanup()
		return nil, err
	}
	env.DB = db

	if err := runMigrations(ctx, db, dsn); err != nil {
		env.Cleanup()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	natsConn, err := nats.Connect(natsURL, nats.Timeout(10*time.Second))
	if err != nil {
		env.Cleanup()
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	env.NatsConn = natsConn

	js, err := jetstream.New(natsConn)
	if err != nil {
		env.Cleanup()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	env.JetStream = js

	cfg := config.Defaults()
	cfg.Postgres.DSN = dsn
	cfg.NATS.URL = natsURL
	env.Config = &cfg

	return env, nil
}

// NewEventBus connects a fresh bus and creates the raffle streams.
func (env *TestEnvironment) NewEventBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	bus, err := eventbus.NewEventBus(env.Ctx, env.Config.NATS.URL,
		slog.New(slog.NewTextHandler(io.Discard, nil)), "test", noop.NewTracerProvider().Tracer("test"))
	if err != nil {
		t.Fatalf("failed to create event bus: %v", err)
	}
	t.Cleanup(func() { _ = bus.Close() })

	if err := eventbus.EnsureStreams(env.Ctx, bus,
		eventbus.Stream{Name: raffledomain.StreamName, Subjects: []string{raffledomain.StreamSubjectsWildcard}},
		eventbus.Stream{Name: vrfdomain.StreamName, Subjects: []string{vrfdomain.StreamSubjectsWildcard}},
	); err != nil {
		t.Fatalf("failed to create streams: %v", err)
	}
	return bus
}

// Reset empties the database and purges the streams.
func (env *TestEnvironment) Reset(ctx context.Context) error {
	if err := CleanupDatabase(ctx, env.DB); err != nil {
		return err
	}
	return env.PurgeStreams(ctx)
}

// PurgeStreams drops every message from the raffle streams. Missing streams
// are skipped.
func (env *TestEnvironment) PurgeStreams(ctx context.Context) error {
	for _, name := range StreamNames {
		stream, err := env.JetStream.Stream(ctx, name)
		if err != nil {
			continue
		}
		if err := stream.Purge(ctx); err != nil {
			return fmt.Errorf("failed to purge stream %q: %w", name, err)
		}
	}
	return nil
}

// Cleanup tears down all resources created for testing.
func (env *TestEnvironment) Cleanup() {
	if env.CancelContext != nil {
		env.CancelContext()
	}
	if env.NatsConn != nil {
		env.NatsConn.Close()
	}
	if env.DB != nil {
		_ = env.DB.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if env.NatsContainer != nil {
		if err := env.NatsContainer.Terminate(ctx); err != nil {
			log.Printf("Error terminating NATS container: %v", err)
		}
	}
	if env.PgContainer != nil {
		if err := env.PgContainer.Terminate(ctx); err != nil {
			log.Printf("Error terminating PostgreSQL container: %v", err)
		}
	}
}
