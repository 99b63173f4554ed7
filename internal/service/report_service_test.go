package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"dailyplan/internal/model"
)

func TestDailySummary(t *testing.T) {
	tasks := newTestTaskService(t)
	ctx := context.Background()
	done := mustCreate(t, tasks, 1, "2025-03-05", "ship <release>")
	mustCreate(t, tasks, 1, "2025-03-05", "write notes")
	mustCreate(t, tasks, 1, "2025-03-03", "earlier")
	if _, err := tasks.Update(ctx, 1, done.ID, CompletionChange{Completed: true}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	report := NewReportService(tasks)
	now := time.Date(2025, 3, 5, 20, 0, 0, 0, time.UTC)
	got, err := report.DailySummary(ctx, model.User{ID: 1}, now)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	for _, want := range []string{
		"Daily report",
		"1. ⬜ write notes",
		"2. ✅ ship &lt;release&gt;",
		"03-03  0/1",
		"03-05  1/2",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected report to contain %q:\n%s", want, got)
		}
	}
}

func TestDailySummaryEmpty(t *testing.T) {
	report := NewReportService(newTestTaskService(t))
	got, err := report.DailySummary(context.Background(), model.User{ID: 9}, time.Now())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !strings.Contains(got, "nothing planned") || !strings.Contains(got, "no tasks yet") {
		t.Fatalf("unexpected empty report:\n%s", got)
	}
}

func TestFormatTaskMarksChains(t *testing.T) {
	token := "abc"
	days := 4
	line := FormatTask(model.Task{Order: 2, Title: "gym", RepeatableID: &token, RepeatableDays: &days, Note: "legs"})
	if !strings.Contains(line, "♻️ 4 d.") || !strings.Contains(line, "📝 legs") {
		t.Fatalf("unexpected line %q", line)
	}
}
