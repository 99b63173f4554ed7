package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"dailyplan/internal/model"
)

// reportWindow is how many days, today included, the completion trend covers.
const reportWindow = 7

// ReportService builds human-readable summaries for the daily bot report.
type ReportService struct {
	tasks *TaskService
}

func NewReportService(tasks *TaskService) *ReportService {
	return &ReportService{tasks: tasks}
}

// DailySummary renders today's tasks and the completion trend of the last
// week as Telegram HTML.
func (s *ReportService) DailySummary(ctx context.Context, user model.User, now time.Time) (string, error) {
	today := model.Day(now)
	from := today.AddDate(0, 0, -(reportWindow - 1))

	tasks, err := s.tasks.ListDay(ctx, user.ID, today)
	if err != nil {
		return "", err
	}
	summary, err := s.tasks.CompletionSummary(ctx, user.ID, &from, &today)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily report</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", today.Format("Mon, 02 Jan 2006")))

	builder.WriteString("🔥 <b>Today</b>\n")
	if len(tasks) == 0 {
		builder.WriteString("nothing planned\n")
	} else {
		for _, task := range tasks {
			builder.WriteString(FormatTask(task))
		}
	}

	builder.WriteString("\n📈 <b>Last 7 days</b>\n")
	if len(summary) == 0 {
		builder.WriteString("no tasks yet\n")
	} else {
		for _, day := range summary {
			builder.WriteString(formatDaySummary(day))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

// FormatTask renders one task line with its rank, state and chain marker.
func FormatTask(task model.Task) string {
	var sb strings.Builder

	icon := "⬜"
	if task.IsCompleted {
		icon = "✅"
	}
	title := strings.TrimSpace(task.Title)
	if title == "" {
		title = "(untitled)"
	}
	sb.WriteString(fmt.Sprintf("%d. %s %s", task.Order, icon, html.EscapeString(title)))

	if task.IsRepeating() && task.RepeatableDays != nil {
		sb.WriteString(fmt.Sprintf(" <i>(♻️ %d d.)</i>", *task.RepeatableDays))
	}
	if note := strings.TrimSpace(task.Note); note != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(note)))
	}

	sb.WriteByte('\n')
	return sb.String()
}

func formatDaySummary(day DaySummary) string {
	bar := strings.Repeat("■", day.Completed) + strings.Repeat("□", day.Total-day.Completed)
	if day.Total > 10 {
		bar = fmt.Sprintf("%d%%", day.Completed*100/day.Total)
	}
	return fmt.Sprintf("%s  %d/%d  %s\n", day.Date.Format("01-02"), day.Completed, day.Total, bar)
}
