package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"dailyplan/internal/apperr"
	"dailyplan/internal/model"
)

func tasksByDate(t *testing.T, svc *TaskService, userID uint) map[string]model.Task {
	t.Helper()
	tasks, err := svc.List(context.Background(), userID, nil, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	out := make(map[string]model.Task, len(tasks))
	for _, task := range tasks {
		out[model.Day(task.Date).Format(model.DateLayout)] = task
	}
	return out
}

func TestCreateInsertsAtHead(t *testing.T) {
	svc := newTestTaskService(t)
	mustCreate(t, svc, 1, "2025-03-01", "first")
	mustCreate(t, svc, 1, "2025-03-01", "second")
	mustCreate(t, svc, 1, "2025-03-01", "third")
	mustCreate(t, svc, 2, "2025-03-01", "other user")

	assertTitles(t, dayOrder(t, svc, 1, "2025-03-01"), "third", "second", "first")
	assertTitles(t, dayOrder(t, svc, 2, "2025-03-01"), "other user")
}

func TestReorderThenDeleteScenario(t *testing.T) {
	svc := newTestTaskService(t)
	ctx := context.Background()
	t1 := mustCreate(t, svc, 1, "2025-03-01", "T1")
	if t1.Order != 1 {
		t.Fatalf("expected T1 at 1, got %d", t1.Order)
	}
	mustCreate(t, svc, 1, "2025-03-01", "T2")
	assertTitles(t, dayOrder(t, svc, 1, "2025-03-01"), "T2", "T1")

	moved, err := svc.Update(ctx, 1, t1.ID, OrderChange{Order: 1})
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if moved.Order != 1 {
		t.Fatalf("expected T1 at 1 after reorder, got %d", moved.Order)
	}
	assertTitles(t, dayOrder(t, svc, 1, "2025-03-01"), "T1", "T2")

	if err := svc.Delete(ctx, 1, t1.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	assertTitles(t, dayOrder(t, svc, 1, "2025-03-01"), "T2")
}

func TestReorderValidatesAndClamps(t *testing.T) {
	svc := newTestTaskService(t)
	ctx := context.Background()
	a := mustCreate(t, svc, 1, "2025-03-01", "a")
	mustCreate(t, svc, 1, "2025-03-01", "b")
	mustCreate(t, svc, 1, "2025-03-01", "c")

	if _, err := svc.Update(ctx, 1, a.ID, OrderChange{Order: 0}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if _, err := svc.Update(ctx, 1, a.ID, OrderChange{Order: 1}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	assertTitles(t, dayOrder(t, svc, 1, "2025-03-01"), "a", "c", "b")

	got, err := svc.Update(ctx, 1, a.ID, OrderChange{Order: 99})
	if err != nil {
		t.Fatalf("reorder past end: %v", err)
	}
	if got.Order != 3 {
		t.Fatalf("expected clamp to 3, got %d", got.Order)
	}
	clamped := dayOrder(t, svc, 1, "2025-03-01")

	if _, err := svc.Update(ctx, 1, a.ID, OrderChange{Order: 3}); err != nil {
		t.Fatalf("reorder to exact end: %v", err)
	}
	assertTitles(t, dayOrder(t, svc, 1, "2025-03-01"), clamped...)
}

func TestUpdateUnknownTask(t *testing.T) {
	svc := newTestTaskService(t)
	task := mustCreate(t, svc, 1, "2025-03-01", "mine")
	if _, err := svc.Update(context.Background(), 2, task.ID, OrderChange{Order: 1}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found for another user, got %v", err)
	}
	if err := svc.Delete(context.Background(), 1, task.ID+100); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found on delete, got %v", err)
	}
}

func TestCompletionToggleScenario(t *testing.T) {
	svc := newTestTaskService(t)
	ctx := context.Background()
	mustCreate(t, svc, 1, "2025-03-01", "D")
	mustCreate(t, svc, 1, "2025-03-01", "C")
	b := mustCreate(t, svc, 1, "2025-03-01", "B")
	mustCreate(t, svc, 1, "2025-03-01", "A")
	assertTitles(t, dayOrder(t, svc, 1, "2025-03-01"), "A", "B", "C", "D")

	done, err := svc.Update(ctx, 1, b.ID, CompletionChange{Completed: true})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !done.IsCompleted || done.Order != 4 {
		t.Fatalf("expected completed at 4, got %+v", done)
	}
	assertTitles(t, dayOrder(t, svc, 1, "2025-03-01"), "A", "C", "D", "B")

	reopened, err := svc.Update(ctx, 1, b.ID, CompletionChange{Completed: false})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.IsCompleted || reopened.Order != 1 {
		t.Fatalf("expected open at 1, got %+v", reopened)
	}
	assertTitles(t, dayOrder(t, svc, 1, "2025-03-01"), "B", "A", "C", "D")
}

func TestCompletedTasksAppendInToggleOrder(t *testing.T) {
	svc := newTestTaskService(t)
	ctx := context.Background()
	c := mustCreate(t, svc, 1, "2025-03-01", "C")
	b := mustCreate(t, svc, 1, "2025-03-01", "B")
	mustCreate(t, svc, 1, "2025-03-01", "A")

	for _, task := range []*model.Task{b, c} {
		if _, err := svc.Update(ctx, 1, task.ID, CompletionChange{Completed: true}); err != nil {
			t.Fatalf("complete %s: %v", task.Title, err)
		}
	}
	assertTitles(t, dayOrder(t, svc, 1, "2025-03-01"), "A", "B", "C")

	// Completing an already completed task leaves its rank alone.
	if _, err := svc.Update(ctx, 1, b.ID, CompletionChange{Completed: true}); err != nil {
		t.Fatalf("complete again: %v", err)
	}
	assertTitles(t, dayOrder(t, svc, 1, "2025-03-01"), "A", "B", "C")
}

func TestRepeatCreateMaterializesChain(t *testing.T) {
	svc := newTestTaskService(t)
	ctx := context.Background()
	mustCreate(t, svc, 1, "2025-03-02", "existing")

	first, err := svc.Create(ctx, 1, TaskInput{Date: day("2025-03-01"), Title: "gym", RepeatDays: 3})
	if err != nil {
		t.Fatalf("create chain: %v", err)
	}
	if !first.Date.Equal(day("2025-03-01")) || first.RepeatableID == nil || *first.RepeatableDays != 3 {
		t.Fatalf("unexpected first member %+v", first)
	}

	assertTitles(t, dayOrder(t, svc, 1, "2025-03-02"), "gym", "existing")
	for i, d := range []string{"2025-03-01", "2025-03-02", "2025-03-03"} {
		tasks, err := svc.ListDay(ctx, 1, day(d))
		if err != nil {
			t.Fatalf("list %s: %v", d, err)
		}
		m := tasks[0]
		if m.RepeatableID == nil || *m.RepeatableID != "token-1" {
			t.Fatalf("%s: expected token-1, got %v", d, m.RepeatableID)
		}
		if m.RepeatableDays == nil || *m.RepeatableDays != 3-i {
			t.Fatalf("%s: expected %d days remaining, got %v", d, 3-i, m.RepeatableDays)
		}
		if m.Order != 1 {
			t.Fatalf("%s: expected chain member at head, got %d", d, m.Order)
		}
	}
}

func TestSingleDayRepeatIsPlain(t *testing.T) {
	svc := newTestTaskService(t)
	task, err := svc.Create(context.Background(), 1, TaskInput{Date: day("2025-03-01"), Title: "once", RepeatDays: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.IsRepeating() || task.RepeatableDays != nil {
		t.Fatalf("expected plain task, got %+v", task)
	}
}

func TestEditSplitsChainScenario(t *testing.T) {
	svc := newTestTaskService(t)
	ctx := context.Background()
	if _, err := svc.Create(ctx, 1, TaskInput{Date: day("2025-03-01"), Title: "read", RepeatDays: 3}); err != nil {
		t.Fatalf("create chain: %v", err)
	}
	middle := tasksByDate(t, svc, 1)["2025-03-02"]

	edited, err := svc.Update(ctx, 1, middle.ID, ContentChange{Title: strPtr("read more")})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if edited.Title != "read more" || *edited.RepeatableID != "token-2" {
		t.Fatalf("unexpected edited member %+v", edited)
	}

	byDate := tasksByDate(t, svc, 1)
	past := byDate["2025-03-01"]
	if *past.RepeatableID != "token-1" || *past.RepeatableDays != 3 || past.Title != "read" {
		t.Fatalf("past member changed: %+v", past)
	}
	for _, d := range []string{"2025-03-02", "2025-03-03"} {
		m := byDate[d]
		if *m.RepeatableID != "token-2" || *m.RepeatableDays != 2 || m.Title != "read more" {
			t.Fatalf("%s: unexpected member %+v", d, m)
		}
	}
}

func TestSplitOfKthMemberKeepsSegmentSize(t *testing.T) {
	svc := newTestTaskService(t)
	ctx := context.Background()
	if _, err := svc.Create(ctx, 1, TaskInput{Date: day("2025-03-01"), Title: "x", RepeatDays: 5}); err != nil {
		t.Fatalf("create chain: %v", err)
	}
	third := tasksByDate(t, svc, 1)["2025-03-03"]
	if _, err := svc.Update(ctx, 1, third.ID, ContentChange{Note: strPtr("new note")}); err != nil {
		t.Fatalf("edit: %v", err)
	}

	newMembers, oldMembers := 0, 0
	for _, m := range tasksByDate(t, svc, 1) {
		switch *m.RepeatableID {
		case "token-2":
			newMembers++
			if m.Note != "new note" || *m.RepeatableDays != 3 {
				t.Fatalf("unexpected new segment member %+v", m)
			}
		case "token-1":
			oldMembers++
			if m.Note != "" {
				t.Fatalf("past member edited: %+v", m)
			}
		}
	}
	if newMembers != 3 || oldMembers != 2 {
		t.Fatalf("expected 3 new and 2 old members, got %d and %d", newMembers, oldMembers)
	}
}

func TestPlainEditDoesNotMintToken(t *testing.T) {
	svc := newTestTaskService(t)
	task := mustCreate(t, svc, 1, "2025-03-01", "plain")
	got, err := svc.Update(context.Background(), 1, task.ID, ContentChange{Title: strPtr("renamed")})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if got.Title != "renamed" || got.IsRepeating() {
		t.Fatalf("unexpected plain edit result %+v", got)
	}
}

func TestDeleteTruncatesChain(t *testing.T) {
	svc := newTestTaskService(t)
	ctx := context.Background()
	if _, err := svc.Create(ctx, 1, TaskInput{Date: day("2025-03-01"), Title: "run", RepeatDays: 4}); err != nil {
		t.Fatalf("create chain: %v", err)
	}
	mustCreate(t, svc, 1, "2025-03-04", "after")
	third := tasksByDate(t, svc, 1)["2025-03-03"]

	if err := svc.Delete(ctx, 1, third.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	tasks, err := svc.List(ctx, 1, nil, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 2 chain members and one plain task, got %d", len(tasks))
	}
	for _, m := range tasks {
		if m.Title != "run" {
			continue
		}
		if m.RepeatableID == nil || *m.RepeatableID != "token-1" {
			t.Fatalf("survivor lost its token: %+v", m)
		}
	}
	byDate := tasksByDate(t, svc, 1)
	if *byDate["2025-03-01"].RepeatableDays != 4 || *byDate["2025-03-02"].RepeatableDays != 3 {
		t.Fatalf("survivor day counts should be left as stored")
	}
	assertTitles(t, dayOrder(t, svc, 1, "2025-03-04"), "after")
}

func TestDeleteCollapsesLastSurvivor(t *testing.T) {
	svc := newTestTaskService(t)
	ctx := context.Background()
	if _, err := svc.Create(ctx, 1, TaskInput{Date: day("2025-03-01"), Title: "run", RepeatDays: 3}); err != nil {
		t.Fatalf("create chain: %v", err)
	}
	second := tasksByDate(t, svc, 1)["2025-03-02"]
	if err := svc.Delete(ctx, 1, second.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	tasks, _ := svc.List(ctx, 1, nil, nil)
	if len(tasks) != 1 {
		t.Fatalf("expected one survivor, got %d", len(tasks))
	}
	if tasks[0].RepeatableID != nil || tasks[0].RepeatableDays != nil {
		t.Fatalf("expected survivor to become plain, got %+v", tasks[0])
	}
}

func TestDeleteChainHeadRemovesWholeChain(t *testing.T) {
	svc := newTestTaskService(t)
	ctx := context.Background()
	first, err := svc.Create(ctx, 1, TaskInput{Date: day("2025-03-01"), Title: "run", RepeatDays: 3})
	if err != nil {
		t.Fatalf("create chain: %v", err)
	}
	mustCreate(t, svc, 1, "2025-03-02", "stay")
	if err := svc.Delete(ctx, 1, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	tasks, _ := svc.List(ctx, 1, nil, nil)
	if len(tasks) != 1 || tasks[0].Title != "stay" || tasks[0].Order != 1 {
		t.Fatalf("unexpected remaining tasks %+v", tasks)
	}
}

func TestDeleteThenRecreateRestoresDensity(t *testing.T) {
	svc := newTestTaskService(t)
	ctx := context.Background()
	var created []*model.Task
	for _, title := range []string{"a", "b", "c"} {
		created = append(created, mustCreate(t, svc, 1, "2025-03-01", title))
	}
	for _, task := range created {
		if err := svc.Delete(ctx, 1, task.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
	}
	for _, title := range []string{"a", "b", "c"} {
		mustCreate(t, svc, 1, "2025-03-01", title)
	}
	assertTitles(t, dayOrder(t, svc, 1, "2025-03-01"), "c", "b", "a")
}

func TestDateChangeMovesToHeadOfTargetDay(t *testing.T) {
	svc := newTestTaskService(t)
	ctx := context.Background()
	mustCreate(t, svc, 1, "2025-03-01", "x")
	moving := mustCreate(t, svc, 1, "2025-03-01", "moving")
	mustCreate(t, svc, 1, "2025-03-01", "y")
	mustCreate(t, svc, 1, "2025-03-05", "z")

	got, err := svc.Update(ctx, 1, moving.ID, DateChange{Date: day("2025-03-05")})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if !got.Date.Equal(day("2025-03-05")) || got.Order != 1 {
		t.Fatalf("unexpected moved task %+v", got)
	}
	assertTitles(t, dayOrder(t, svc, 1, "2025-03-01"), "y", "x")
	assertTitles(t, dayOrder(t, svc, 1, "2025-03-05"), "moving", "z")
}

func TestDateChangeRejectedForChainMember(t *testing.T) {
	svc := newTestTaskService(t)
	ctx := context.Background()
	first, err := svc.Create(ctx, 1, TaskInput{Date: day("2025-03-01"), Title: "run", RepeatDays: 2})
	if err != nil {
		t.Fatalf("create chain: %v", err)
	}
	if _, err := svc.Update(ctx, 1, first.ID, DateChange{Date: day("2025-03-09")}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := tasksByDate(t, svc, 1); len(got) != 2 {
		t.Fatalf("chain should be untouched, got %d days", len(got))
	}
}

func TestTaskPatchResolve(t *testing.T) {
	order := 2
	done := true
	d := day("2025-03-01")

	tests := []struct {
		name    string
		patch   TaskPatch
		want    TaskUpdate
		wantErr error
	}{
		{name: "order", patch: TaskPatch{Order: &order}, want: OrderChange{Order: 2}},
		{name: "completion", patch: TaskPatch{IsCompleted: &done}, want: CompletionChange{Completed: true}},
		{name: "date", patch: TaskPatch{Date: &d}, want: DateChange{Date: d}},
		{name: "empty", patch: TaskPatch{}, wantErr: apperr.ErrValidation},
		{name: "order and title", patch: TaskPatch{Order: &order, Title: strPtr("x")}, wantErr: apperr.ErrConflict},
		{name: "title and completion", patch: TaskPatch{Title: strPtr("x"), IsCompleted: &done}, wantErr: apperr.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.patch.Resolve()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %#v, got %#v", tt.want, got)
			}
		})
	}

	content, err := TaskPatch{Title: strPtr("t"), Note: strPtr("n")}.Resolve()
	if err != nil {
		t.Fatalf("resolve content: %v", err)
	}
	c, ok := content.(ContentChange)
	if !ok || *c.Title != "t" || *c.Note != "n" {
		t.Fatalf("unexpected content change %#v", content)
	}
}

func TestMixedPatchMessage(t *testing.T) {
	order := 1
	_, err := TaskPatch{Order: &order, Note: strPtr("n")}.Resolve()
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("unexpected error %v", err)
	}
	if msg := apperr.Message(err); !strings.HasPrefix(msg, "Only one type of update") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestCompletionSummary(t *testing.T) {
	svc := newTestTaskService(t)
	ctx := context.Background()
	a := mustCreate(t, svc, 1, "2025-03-01", "a")
	mustCreate(t, svc, 1, "2025-03-01", "b")
	mustCreate(t, svc, 1, "2025-03-03", "c")
	mustCreate(t, svc, 1, "2025-03-10", "outside")
	if _, err := svc.Update(ctx, 1, a.ID, CompletionChange{Completed: true}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	start, end := day("2025-03-01"), day("2025-03-05")
	got, err := svc.CompletionSummary(ctx, 1, &start, &end)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	want := []DaySummary{
		{Date: day("2025-03-01"), Total: 2, Completed: 1},
		{Date: day("2025-03-03"), Total: 1, Completed: 0},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d days, got %+v", len(want), got)
	}
	for i := range want {
		if !got[i].Date.Equal(want[i].Date) || got[i].Total != want[i].Total || got[i].Completed != want[i].Completed {
			t.Fatalf("day %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}

	if _, err := svc.CompletionSummary(ctx, 1, &end, &start); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for inverted range, got %v", err)
	}
}

func TestCreateRecordsSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})

	svc := newTestTaskService(t)
	if _, err := svc.Create(context.Background(), 1, TaskInput{Date: day("2025-03-01"), Title: "x", RepeatDays: 2}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Update(context.Background(), 1, 999, OrderChange{Order: 1}); err == nil {
		t.Fatalf("expected error for unknown task")
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name != "task.create" || spans[1].Name != "task.update" {
		t.Fatalf("unexpected span names %q %q", spans[0].Name, spans[1].Name)
	}
	if len(spans[1].Events) == 0 {
		t.Fatalf("expected failed update to record an error event")
	}
}

// TestRandomOperationsKeepDaysDense drives the service with a random mix of
// operations and checks every day stays 1..N after each step.
func TestRandomOperationsKeepDaysDense(t *testing.T) {
	svc := newTestTaskService(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))
	dates := []string{"2025-03-01", "2025-03-02", "2025-03-03", "2025-03-04", "2025-03-05"}

	for step := 0; step < 200; step++ {
		tasks, err := svc.List(ctx, 1, nil, nil)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		op := rng.Intn(6)
		if len(tasks) == 0 {
			op = 0
		}
		var target model.Task
		if len(tasks) > 0 {
			target = tasks[rng.Intn(len(tasks))]
		}

		switch op {
		case 0:
			_, err = svc.Create(ctx, 1, TaskInput{Date: day(dates[rng.Intn(3)]), Title: "t", RepeatDays: rng.Intn(3) + 1})
		case 1:
			_, err = svc.Update(ctx, 1, target.ID, OrderChange{Order: rng.Intn(8)})
		case 2:
			_, err = svc.Update(ctx, 1, target.ID, CompletionChange{Completed: rng.Intn(2) == 0})
		case 3:
			_, err = svc.Update(ctx, 1, target.ID, ContentChange{Title: strPtr("edited")})
		case 4:
			_, err = svc.Update(ctx, 1, target.ID, DateChange{Date: day(dates[rng.Intn(len(dates))])})
		case 5:
			err = svc.Delete(ctx, 1, target.ID)
		}
		if err != nil && !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("step %d op %d: %v", step, op, err)
		}
		for _, d := range dates {
			dayOrder(t, svc, 1, d)
		}
	}
}

func TestConcurrentCreatesKeepDayDense(t *testing.T) {
	svc := newTestTaskService(t)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Create(ctx, 1, TaskInput{Date: day("2025-03-01"), Title: fmt.Sprintf("t%d", i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if got := dayOrder(t, svc, 1, "2025-03-01"); len(got) != writers {
		t.Fatalf("expected %d tasks, got %v", writers, got)
	}
}
