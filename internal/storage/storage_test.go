package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spigell/o1-screener/internal/profile"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := OpenAndMigrate(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func fixedClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func newStore(t *testing.T) (*Profiles, AuditLog) {
	conn := openTestDB(t)
	store := NewProfiles(conn)
	store.Now = fixedClock()
	audit := NewAuditLog(conn)
	audit.Now = fixedClock()
	return store, audit
}

func insert(t *testing.T, store *Profiles, apiID string) *profile.Profile {
	t.Helper()
	p := &profile.Profile{APIID: apiID, Name: "Name " + apiID, Email: apiID + "@example.com", Reference: "https://linkedin.com/in/" + apiID}
	if err := store.Insert(context.Background(), p); err != nil {
		t.Fatalf("insert %s: %v", apiID, err)
	}
	return p
}

func complete(t *testing.T, store *Profiles, p *profile.Profile, score float64) {
	t.Helper()
	p.FinalScore = &score
	p.ReviewStatus = profile.ReviewUnknown
	if err := store.SaveResults(context.Background(), p); err != nil {
		t.Fatalf("save results: %v", err)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	conn := openTestDB(t)
	if err := Migrate(conn); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	v, err := SchemaVersion(conn)
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if v != 1 {
		t.Fatalf("expected schema version 1, got %d", v)
	}
}

func TestMigrationsRecordEachStep(t *testing.T) {
	conn, err := Open(filepath.Join(t.TempDir(), "steps.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	clock := func() time.Time { return at }
	steps := []migration{
		{version: 1, name: "0001_notes.sql", up: `CREATE TABLE notes (id TEXT PRIMARY KEY)`},
		{version: 2, name: "0002_broken.sql", up: `ALTER TABLE missing ADD COLUMN x TEXT`},
	}

	if err := applyMigrations(conn, steps, clock); err == nil {
		t.Fatalf("expected the broken migration to fail")
	}

	v, err := SchemaVersion(conn)
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if v != 1 {
		t.Fatalf("expected the first migration to stay applied, got version %d", v)
	}
	if _, err := conn.Exec(`INSERT INTO notes(id) VALUES ('a')`); err != nil {
		t.Fatalf("first migration must be committed: %v", err)
	}

	applied, err := AppliedMigrations(conn)
	if err != nil {
		t.Fatalf("applied migrations: %v", err)
	}
	if len(applied) != 1 || applied[0].Name != "0001_notes.sql" || !applied[0].AppliedAt.Equal(at) {
		t.Fatalf("unexpected ledger: %+v", applied)
	}

	steps[1].up = `ALTER TABLE notes ADD COLUMN body TEXT`
	if err := applyMigrations(conn, steps, clock); err != nil {
		t.Fatalf("retry migrations: %v", err)
	}
	if v, _ := SchemaVersion(conn); v != 2 {
		t.Fatalf("expected version 2 after retry, got %d", v)
	}
}

func TestInsertAndGet(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	p := insert(t, store, "a1")
	got, err := store.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.APIID != "a1" || got.Status != profile.StatusPending || got.ReviewStatus != profile.ReviewUnknown {
		t.Fatalf("unexpected profile: %+v", got)
	}
	if got.Rank != nil || got.FinalScore != nil || got.Document != nil {
		t.Fatalf("expected empty derived fields: %+v", got)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Insert(ctx, &profile.Profile{APIID: "a1", Name: "dup", Email: "x"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestUpsertKeepsEmail(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	first, err := store.Upsert(ctx, &profile.Profile{APIID: "u1", Name: "Jane", Email: "jane@example.com"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second, err := store.Upsert(ctx, &profile.Profile{APIID: "u1", Name: "Jane Doe", Email: "other@example.com", Reference: "https://linkedin.com/in/jane"})
	if err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("expected same id, got %s and %s", first.ID, second.ID)
	}
	if second.Email != "jane@example.com" {
		t.Fatalf("expected email to be immutable, got %s", second.Email)
	}
	if second.Name != "Jane Doe" || second.Reference != "https://linkedin.com/in/jane" {
		t.Fatalf("expected name and reference to refresh: %+v", second)
	}
}

func TestSaveResultsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	p := insert(t, store, "r1")
	doc := profile.NewDocument()
	doc.BasicInfo.Name = "Jane"
	suitability := 0.5
	p.Document = doc
	p.Assessment = map[string]any{"overall_score": 7.0}
	p.Evidence = map[string][]string{"awards": {"Best paper"}}
	p.SuitabilityScore = &suitability
	p.SuitabilityReason = "visibility"
	complete(t, store, p, 7)

	got, err := store.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != profile.StatusCompleted || got.CompletedSeq != 1 || p.CompletedSeq != 1 {
		t.Fatalf("unexpected completion state: %+v", got)
	}
	if got.Document == nil || got.Document.BasicInfo.Name != "Jane" {
		t.Fatalf("unexpected document: %+v", got.Document)
	}
	if got.Assessment["overall_score"] != 7.0 || got.Evidence["awards"][0] != "Best paper" {
		t.Fatalf("unexpected assessment or evidence: %+v %+v", got.Assessment, got.Evidence)
	}
	if got.SuitabilityScore == nil || *got.SuitabilityScore != 0.5 || got.SuitabilityReason != "visibility" {
		t.Fatalf("unexpected suitability: %+v", got)
	}

	other := insert(t, store, "r2")
	complete(t, store, other, 5)
	if other.CompletedSeq != 2 {
		t.Fatalf("expected second completion seq 2, got %d", other.CompletedSeq)
	}
}

func TestRerankIsDenseAndIdempotent(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	scores := map[string]float64{"a": 6, "b": 9, "c": 7.5}
	ids := map[string]string{}
	for _, key := range []string{"a", "b", "c"} {
		p := insert(t, store, key)
		complete(t, store, p, scores[key])
		ids[key] = p.ID
	}
	pending := insert(t, store, "pending")

	for round := 0; round < 2; round++ {
		n, err := store.Rerank(ctx)
		if err != nil {
			t.Fatalf("rerank: %v", err)
		}
		if n != 3 {
			t.Fatalf("expected 3 ranked profiles, got %d", n)
		}

		for key, want := range map[string]int{"b": 1, "c": 2, "a": 3} {
			got, _ := store.Get(ctx, ids[key])
			if got.Rank == nil || *got.Rank != want {
				t.Fatalf("round %d: expected %s rank %d, got %v", round, key, want, got.Rank)
			}
		}
		got, _ := store.Get(ctx, pending.ID)
		if got.Rank != nil {
			t.Fatalf("expected pending profile to stay unranked")
		}
	}
}

func TestRerankTieBreaksOnCompletionOrder(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	first := insert(t, store, "first")
	second := insert(t, store, "second")
	complete(t, store, first, 8)
	complete(t, store, second, 8)

	if _, err := store.Rerank(ctx); err != nil {
		t.Fatalf("rerank: %v", err)
	}
	ranked, err := store.Query(ctx, Filter{RankedOnly: true, OrderBy: OrderRank})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(ranked) != 2 || ranked[0].ID != first.ID || *ranked[0].Rank != 1 || *ranked[1].Rank != 2 {
		t.Fatalf("expected first completion to win the tie, got %+v", ranked)
	}
}

func TestMarkProcessingClearsRank(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	p := insert(t, store, "m1")
	complete(t, store, p, 5)
	if _, err := store.Rerank(ctx); err != nil {
		t.Fatalf("rerank: %v", err)
	}

	hadRank, err := store.MarkProcessing(ctx, p.ID)
	if err != nil || !hadRank {
		t.Fatalf("expected previous rank to be reported, got %v (%v)", hadRank, err)
	}
	got, _ := store.Get(ctx, p.ID)
	if got.Status != profile.StatusProcessing || got.Rank != nil {
		t.Fatalf("unexpected state after mark processing: %+v", got)
	}

	if _, err := store.MarkProcessing(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryAndCounts(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	a := insert(t, store, "q1")
	insert(t, store, "q2")
	c := insert(t, store, "q3")
	if err := store.MarkFailed(ctx, c.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	complete(t, store, a, 4)
	if err := store.UpdateReview(ctx, a.ID, profile.ReviewCandidate, "strong"); err != nil {
		t.Fatalf("update review: %v", err)
	}

	ids, err := store.IDsByStatus(ctx, profile.StatusPending, profile.StatusFailed)
	if err != nil {
		t.Fatalf("ids by status: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 runnable profiles, got %v", ids)
	}

	counts, err := store.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[profile.StatusCompleted] != 1 || counts[profile.StatusPending] != 1 || counts[profile.StatusFailed] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	reviews, err := store.CountByReview(ctx)
	if err != nil {
		t.Fatalf("count reviews: %v", err)
	}
	if reviews[profile.ReviewCandidate] != 1 || reviews[profile.ReviewUnknown] != 2 {
		t.Fatalf("unexpected review counts: %v", reviews)
	}

	limited, err := store.Query(ctx, Filter{Limit: 2})
	if err != nil || len(limited) != 2 {
		t.Fatalf("expected 2 profiles with limit, got %d (%v)", len(limited), err)
	}
}

func TestAuditLogNewestFirst(t *testing.T) {
	ctx := context.Background()
	store, audit := newStore(t)
	p := insert(t, store, "log1")

	for _, step := range []string{"scraping", "assessment", "save_results"} {
		if err := audit.Append(ctx, profile.LogEntry{ProfileID: p.ID, Step: step, Status: profile.LogCompleted, Data: map[string]any{"step": step}}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	entries, err := audit.ListByProfile(ctx, p.ID, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 || entries[0].Step != "save_results" || entries[2].Step != "scraping" {
		t.Fatalf("unexpected order: %+v", entries)
	}
	if entries[0].Data["step"] != "save_results" || entries[0].ID == "" {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}

	limited, err := audit.ListByProfile(ctx, p.ID, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("expected one entry with limit, got %d (%v)", len(limited), err)
	}

	if err := audit.Append(ctx, profile.LogEntry{ProfileID: "missing", Step: "general", Status: profile.LogFailed}); err == nil {
		t.Fatalf("expected foreign key violation for unknown profile")
	}
}
