package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"dailyplan/internal/model"
	"dailyplan/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.NewDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), log.New())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newTestTaskService(t *testing.T) *TaskService {
	t.Helper()
	svc := NewTaskService(repository.NewTaskRepository(newTestDB(t)))
	n := 0
	svc.newToken = func() string {
		n++
		return fmt.Sprintf("token-%d", n)
	}
	return svc
}

func day(s string) time.Time {
	d, err := model.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

func strPtr(s string) *string { return &s }

func mustCreate(t *testing.T, svc *TaskService, userID uint, date, title string) *model.Task {
	t.Helper()
	task, err := svc.Create(context.Background(), userID, TaskInput{Date: day(date), Title: title})
	if err != nil {
		t.Fatalf("create %q: %v", title, err)
	}
	return task
}

// dayOrder returns the titles of a day in rank order and fails unless the
// ranks are exactly 1..N.
func dayOrder(t *testing.T, svc *TaskService, userID uint, date string) []string {
	t.Helper()
	tasks, err := svc.ListDay(context.Background(), userID, day(date))
	if err != nil {
		t.Fatalf("list day: %v", err)
	}
	titles := make([]string, len(tasks))
	for i, task := range tasks {
		if task.Order != i+1 {
			t.Fatalf("day %s not dense: %q has order %d at index %d", date, task.Title, task.Order, i)
		}
		titles[i] = task.Title
	}
	return titles
}

func assertTitles(t *testing.T, got []string, want ...string) {
	t.Helper()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected order %v, got %v", want, got)
	}
}
