package service

import (
	"context"
	"errors"
	"testing"

	"dailyplan/internal/apperr"
	"dailyplan/internal/repository"
)

func newTestJournalService(t *testing.T) *JournalService {
	t.Helper()
	return NewJournalService(repository.NewJournalRepository(newTestDB(t)))
}

func TestJournalGetOrCreateIsStable(t *testing.T) {
	svc := newTestJournalService(t)
	ctx := context.Background()
	first, err := svc.GetOrCreate(ctx, 1, day("2025-03-01"))
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	again, err := svc.GetOrCreate(ctx, 1, day("2025-03-01"))
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if first.ID != again.ID || first.Subject != "" || first.Entry != "" {
		t.Fatalf("expected same empty journal, got %+v and %+v", first, again)
	}
}

func TestJournalCreateConflicts(t *testing.T) {
	svc := newTestJournalService(t)
	ctx := context.Background()
	if _, err := svc.Create(ctx, 1, JournalInput{Date: day("2025-03-01"), Subject: "s"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := svc.Create(ctx, 1, JournalInput{Date: day("2025-03-01")})
	if !errors.Is(err, apperr.ErrConflict) || apperr.Message(err) != "Journal already exists for this date" {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := svc.Create(ctx, 2, JournalInput{Date: day("2025-03-01")}); err != nil {
		t.Fatalf("other user should not conflict: %v", err)
	}
}

func TestJournalUpdateAndClear(t *testing.T) {
	svc := newTestJournalService(t)
	ctx := context.Background()
	j, err := svc.Create(ctx, 1, JournalInput{Date: day("2025-03-01"), Subject: "s", Entry: "e"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ctx, 1, JournalInput{Date: day("2025-03-02")}); err != nil {
		t.Fatalf("create second: %v", err)
	}

	moved := day("2025-03-02")
	if _, err := svc.Update(ctx, 1, j.ID, JournalPatch{Date: &moved}); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict moving onto a used date, got %v", err)
	}

	got, err := svc.Update(ctx, 1, j.ID, JournalPatch{Entry: strPtr("new entry")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Subject != "s" || got.Entry != "new entry" {
		t.Fatalf("unexpected journal %+v", got)
	}

	cleared, err := svc.Clear(ctx, 1, j.ID)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if cleared.Subject != "" || cleared.Entry != "" {
		t.Fatalf("expected cleared journal, got %+v", cleared)
	}

	n, err := svc.CleanupEmpty(ctx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected both empty journals removed, got %d", n)
	}
	if _, err := svc.Clear(ctx, 1, j.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found after cleanup, got %v", err)
	}
}
