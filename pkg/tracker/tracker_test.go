package tracker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jxzhangjhu/guidance/pkg/models"
)

func newTestTracker(t *testing.T) *SQLiteTracker {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	tr, err := New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestRecordAndQuery(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rec := models.UsageRecord{
		Model:            "gpt-3.5-turbo-instruct",
		Fingerprint:      "abc",
		Attempts:         2,
		PromptTokens:     100,
		CompletionTokens: 50,
		TotalTokens:      150,
		LatencyMs:        420,
		CreatedAt:        now,
	}
	if err := tr.Record(ctx, rec); err != nil {
		t.Fatal(err)
	}

	records, err := tr.QueryByModel(ctx, "gpt-3.5-turbo-instruct", now.Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	got := records[0]
	if got.ID == "" {
		t.Error("expected an ID to be assigned")
	}
	if got.TotalTokens != 150 || got.Attempts != 2 || got.LatencyMs != 420 || got.Fingerprint != "abc" {
		t.Errorf("unexpected record %+v", got)
	}
	if got.Cached {
		t.Error("expected cached=false")
	}
}

func TestRecordKeepsExplicitID(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	if err := tr.Record(ctx, models.UsageRecord{ID: "fixed", Model: "m"}); err != nil {
		t.Fatal(err)
	}
	if err := tr.Record(ctx, models.UsageRecord{ID: "fixed", Model: "m"}); err == nil {
		t.Error("expected duplicate ID to fail")
	}

	records, err := tr.QueryByModel(ctx, "", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].ID != "fixed" {
		t.Errorf("unexpected records %+v", records)
	}
}

func TestTotalTokensSkipsCacheHits(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := range 3 {
		_ = tr.Record(ctx, models.UsageRecord{
			Model: "gpt-4", Fingerprint: "fp",
			PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150,
			Cached:    i == 2,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		})
	}

	total, err := tr.TotalTokens(ctx, now.Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if total != 300 {
		t.Errorf("expected 300, got %d", total)
	}
}

func TestSummary(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_ = tr.Record(ctx, models.UsageRecord{
		Model: "gpt-4", Attempts: 1,
		PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150,
		CreatedAt: now,
	})
	_ = tr.Record(ctx, models.UsageRecord{
		Model: "gpt-4", Cached: true,
		PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150,
		CreatedAt: now,
	})
	_ = tr.Record(ctx, models.UsageRecord{
		Model: "gpt-3.5-turbo", Attempts: 3,
		PromptTokens: 200, CompletionTokens: 100, TotalTokens: 300,
		CreatedAt: now,
	})

	summaries, err := tr.Summary(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}

	// Filter by model
	summaries, err = tr.Summary(ctx, "gpt-4")
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	s := summaries[0]
	if s.RequestCount != 2 || s.CachedCount != 1 || s.TotalAttempts != 1 || s.TotalTokens != 300 {
		t.Errorf("unexpected summary %+v", s)
	}
}

func TestMigrationIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	tr1, err := New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	_ = tr1.Close()

	tr2, err := New(dbPath)
	if err != nil {
		t.Fatal("second New() failed:", err)
	}
	_ = tr2.Close()
}
