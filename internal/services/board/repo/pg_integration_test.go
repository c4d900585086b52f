//go:build integration_pg
// +build integration_pg

package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	perr "mural/internal/platform/errors"
	"mural/internal/platform/store"
	"mural/internal/services/board/domain"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) (dsn string, stop func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)

	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "postgres",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections"),
		).WithDeadline(2 * time.Minute),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		cancel()
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get container host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get mapped port: %v", err)
	}

	dsn = fmt.Sprintf("postgres://postgres:postgres@%s:%s/postgres?sslmode=disable", host, mapped.Port())
	stop = func() {
		_ = c.Terminate(context.Background())
		cancel()
	}
	return dsn, stop
}

func newTestPG(t *testing.T, ctx context.Context, dsn string, cfg domain.Config, clk *fakeClock) *PG {
	t.Helper()

	st, err := store.Open(ctx, store.Config{
		PG: store.PGConfig{Enabled: true, URL: dsn, MaxConns: 2},
	})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close(context.Background()) })

	repo := NewPG(st.PG, cfg)
	repo.now = clk.Now
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if _, err := st.PG.Exec(ctx, `TRUNCATE notes CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return repo
}

// uuids sort the same lexically and as uuid values, keeping tie-break order
func uid(i int) string { return fmt.Sprintf("00000000-0000-0000-0000-%012d", i) }

func TestPGNoteLifecycle_Integration(t *testing.T) {
	dsn, stop := startPostgres(t)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	clk := newFakeClock()
	ttl := 10 * time.Minute
	repo := newTestPG(t, ctx, dsn, domain.Config{TTL: ttl, MaxActive: 3}, clk)

	mk := func(i int) domain.Note {
		n := testNote(uid(i), clk, ttl)
		n.OriginTag = fmt.Sprintf("origin-%d", i)
		return n
	}

	// fill to capacity
	for i := 0; i < 3; i++ {
		clk.Advance(time.Second)
		if _, err := repo.Insert(ctx, mk(i), []byte("data")); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	// at capacity the oldest goes
	clk.Advance(time.Second)
	evicted, err := repo.Insert(ctx, mk(3), []byte("data"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if len(evicted) != 1 || evicted[0].ID != uid(0) {
		t.Fatalf("want %s evicted, got %+v", uid(0), evicted)
	}

	active, _, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 3 || active[0].ID != uid(3) {
		t.Fatalf("want 3 active newest first, got %+v", active)
	}

	// payload round trip
	b, format, _, err := repo.Payload(ctx, uid(3))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "data" || format != "audio/webm" {
		t.Fatalf("unexpected payload %q %q", b, format)
	}

	// responses ride along and cascade
	resp := domain.Response{ID: uid(100), ParentID: uid(3), Format: "audio/ogg", SizeBytes: 2, CreatedAt: clk.Now()}
	if err := repo.AppendResponse(ctx, uid(3), resp, []byte("rr")); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, _, err := repo.Get(ctx, uid(3))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Responses) != 1 || got.Responses[0].ID != uid(100) {
		t.Fatalf("want one response, got %+v", got.Responses)
	}

	// unknown and expired parents
	if err := repo.AppendResponse(ctx, uid(999), resp, nil); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("want NotFound, got %v", err)
	}
	clk.Advance(ttl + time.Second)
	_, victims, err := repo.Get(ctx, uid(3))
	if !perr.IsCode(err, perr.ErrorCodeExpired) {
		t.Fatalf("want Expired, got %v", err)
	}
	if len(victims) != 1 || victims[0].ID != uid(3) {
		t.Fatalf("lazy eviction must report its victim, got %+v", victims)
	}
	if _, _, _, err := repo.Payload(ctx, uid(100)); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("cascaded response should be NotFound, got %v", err)
	}

	// everything else expired too
	expired, err := repo.EvictExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(expired) != 2 {
		t.Fatalf("want 2 expired, got %d", len(expired))
	}
	if more, _ := repo.EvictExpired(ctx); len(more) != 0 {
		t.Fatalf("evict expired must be idempotent, got %+v", more)
	}
}
