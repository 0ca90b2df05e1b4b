package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"dwh/internal/config"
	"dwh/internal/schema"
	"dwh/internal/warehouse"
	_ "dwh/internal/warehouse/postgres"
)

var (
	pgOnce sync.Once
	pgDSN  string
	pgErr  error
)

// postgresDSN starts one throwaway Postgres container per test binary.
func postgresDSN(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	pgOnce.Do(func() {
		ctx := context.Background()
		req := testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "dwh",
				"POSTGRES_USER":     "dwhuser",
				"POSTGRES_PASSWORD": "test_password",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		}
		c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if err != nil {
			pgErr = fmt.Errorf("failed to start postgres container: %w", err)
			return
		}
		host, err := c.Host(ctx)
		if err != nil {
			pgErr = err
			return
		}
		port, err := c.MappedPort(ctx, "5432")
		if err != nil {
			pgErr = err
			return
		}
		pgDSN = fmt.Sprintf("postgres://dwhuser:test_password@%s:%s/dwh?sslmode=disable", host, port.Port())
	})

	require.NoError(t, pgErr)
	return pgDSN
}

func TestPostgres_FullRun(t *testing.T) {
	dsn := postgresDSN(t)
	ctx := context.Background()

	cfg := &config.Config{
		Warehouse: config.WarehouseConfig{Kind: "postgres", DSN: dsn},
		S3:        writeSources(t, t.TempDir(), append([]map[string]any{yellowEvent}, baseEvents...), baseSongs),
		Load:      config.LoadConfig{Mode: "client"},
	}
	r := NewDefaultRunner(zaptest.NewLogger(t))
	require.NoError(t, r.CreateTables(ctx, cfg))

	first, err := r.Run(ctx, cfg, RunOptions{Truncate: true})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{
		schema.StagingEvents: 5,
		schema.StagingSongs:  3,
		schema.Songplays:     4,
		schema.Users:         2,
		schema.Songs:         3,
		schema.Artists:       2,
		schema.Time:          4,
	}, first.Counts)

	second, err := r.Run(ctx, cfg, RunOptions{Truncate: true})
	require.NoError(t, err)
	assert.Equal(t, first.Counts, second.Counts)

	conn, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)
	defer conn.Close(ctx)

	var start time.Time
	var hour, week, weekday int
	err = conn.QueryRow(ctx, `select s.start_time, t.hour, t.week, t.weekday
		from songplays s join "time" t on t.start_time = s.start_time
		where s.user_id is null`).Scan(&start, &hour, &week, &weekday)
	require.NoError(t, err)
	assert.Equal(t, "2018-11-02 19:40:00", start.Format(time.DateTime))
	assert.Equal(t, []int{19, 44, 5}, []int{hour, week, weekday})

	var level string
	require.NoError(t, conn.QueryRow(ctx, `select level from users where user_id = 7`).Scan(&level))
	assert.Equal(t, "paid", level)
}

func TestPostgres_NonNumericUserIDIsMalformedData(t *testing.T) {
	dsn := postgresDSN(t)
	ctx := context.Background()

	events := append([]map[string]any{event("abc", "free", "NextSong", "X", "Y", 1, 1541106106796)}, baseEvents...)
	cfg := &config.Config{
		Warehouse: config.WarehouseConfig{Kind: "postgres", DSN: dsn},
		S3:        writeSources(t, t.TempDir(), events, baseSongs),
		Load:      config.LoadConfig{Mode: "client"},
	}
	r := NewDefaultRunner(zaptest.NewLogger(t))
	require.NoError(t, r.CreateTables(ctx, cfg))

	_, err := r.Run(ctx, cfg, RunOptions{Truncate: true})
	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "populate_users", se.Statement)
	assert.Equal(t, warehouse.KindMalformedData, se.Kind)
}

func TestPostgres_NullYearRanksLast(t *testing.T) {
	dsn := postgresDSN(t)
	ctx := context.Background()

	songs := []map[string]any{
		song("S7", "N1", "A4", "Abe", nil, 120.0),
		song("S8", "N2", "A4", "Max", 1999, 121.0),
	}
	cfg := &config.Config{
		Warehouse: config.WarehouseConfig{Kind: "postgres", DSN: dsn},
		S3:        writeSources(t, t.TempDir(), baseEvents, songs),
		Load:      config.LoadConfig{Mode: "client"},
	}
	r := NewDefaultRunner(zaptest.NewLogger(t))
	require.NoError(t, r.CreateTables(ctx, cfg))
	_, err := r.Run(ctx, cfg, RunOptions{Truncate: true})
	require.NoError(t, err)

	conn, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)
	defer conn.Close(ctx)

	var name string
	require.NoError(t, conn.QueryRow(ctx, `select name from artists where artist_id = 'A4'`).Scan(&name))
	assert.Equal(t, "Max", name)
}
