package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"dailyplan/internal/billing"
	"dailyplan/internal/model"
	"dailyplan/internal/service"
)

type taskResponse struct {
	ID             uint    `json:"id"`
	Date           string  `json:"date"`
	Title          string  `json:"title"`
	Note           string  `json:"note"`
	IsCompleted    bool    `json:"is_completed"`
	Order          int     `json:"order"`
	RepeatableID   *string `json:"repeatable_id"`
	RepeatableDays *int    `json:"repeatable_days"`
}

func newTaskResponse(t model.Task) taskResponse {
	return taskResponse{
		ID:             t.ID,
		Date:           t.Date.Format(model.DateLayout),
		Title:          t.Title,
		Note:           t.Note,
		IsCompleted:    t.IsCompleted,
		Order:          t.Order,
		RepeatableID:   t.RepeatableID,
		RepeatableDays: t.RepeatableDays,
	}
}

func newTaskResponses(tasks []model.Task) []taskResponse {
	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, newTaskResponse(t))
	}
	return out
}

type createTaskRequest struct {
	Date           string `json:"date"`
	Title          string `json:"title"`
	Note           string `json:"note"`
	IsCompleted    bool   `json:"is_completed"`
	RepeatableDays *int   `json:"repeatable_days"`
}

func (r createTaskRequest) input() (service.TaskInput, error) {
	day, err := parseDay("date", r.Date)
	if err != nil {
		return service.TaskInput{}, err
	}
	in := service.TaskInput{
		Date:      day,
		Title:     r.Title,
		Note:      r.Note,
		Completed: r.IsCompleted,
	}
	if r.RepeatableDays != nil {
		in.RepeatDays = *r.RepeatableDays
	}
	return in, nil
}

type patchTaskRequest struct {
	Date        *string `json:"date"`
	Title       *string `json:"title"`
	Note        *string `json:"note"`
	IsCompleted *bool   `json:"is_completed"`
	Order       *int    `json:"order"`
}

func (r patchTaskRequest) patch() (service.TaskPatch, error) {
	p := service.TaskPatch{
		Order:       r.Order,
		Title:       r.Title,
		Note:        r.Note,
		IsCompleted: r.IsCompleted,
	}
	if r.Date != nil {
		day, err := parseDay("date", *r.Date)
		if err != nil {
			return p, err
		}
		p.Date = &day
	}
	return p, nil
}

type daySummaryResponse struct {
	Date      string `json:"date"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
}

type noteResponse struct {
	ID     uint   `json:"id"`
	Date   string `json:"date"`
	Detail string `json:"detail"`
	Order  int    `json:"order"`
}

func newNoteResponse(n model.Note) noteResponse {
	return noteResponse{ID: n.ID, Date: n.Date.Format(model.DateLayout), Detail: n.Detail, Order: n.Order}
}

type createNoteRequest struct {
	Detail string `json:"detail"`
}

type patchNoteRequest struct {
	Detail *string `json:"detail"`
	Order  *int    `json:"order"`
}

type journalResponse struct {
	ID      uint   `json:"id"`
	Date    string `json:"date"`
	Subject string `json:"subject"`
	Entry   string `json:"entry"`
}

func newJournalResponse(j model.Journal) journalResponse {
	return journalResponse{ID: j.ID, Date: j.Date.Format(model.DateLayout), Subject: j.Subject, Entry: j.Entry}
}

type createJournalRequest struct {
	Date    string `json:"date"`
	Subject string `json:"subject"`
	Entry   string `json:"entry"`
}

type patchJournalRequest struct {
	Date    *string `json:"date"`
	Subject *string `json:"subject"`
	Entry   *string `json:"entry"`
}

type userResponse struct {
	ID                 uint    `json:"id"`
	Name               string  `json:"name"`
	Email              *string `json:"email"`
	SubscriptionStatus string  `json:"subscription_status"`
	PlanName           string  `json:"plan_name"`
	IsSubscribed       bool    `json:"is_subscribed"`
}

func newUserResponse(u model.User) userResponse {
	return userResponse{
		ID:                 u.ID,
		Name:               u.Name,
		Email:              u.Email,
		SubscriptionStatus: string(u.SubscriptionStatus),
		PlanName:           u.PlanName,
		IsSubscribed:       billing.HasAccess(&u),
	}
}

type checkoutRequest struct {
	PriceID    string `json:"price_id"`
	Mode       string `json:"mode"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

type checkoutResponse struct {
	URL string `json:"url"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func parseDay(field, raw string) (time.Time, error) {
	day, err := model.ParseDay(strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, badRequest("%s must be a YYYY-MM-DD date", field)
	}
	return day, nil
}

// optionalDay parses a query parameter that may be absent.
func optionalDay(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	day, err := parseDay(name, raw)
	if err != nil {
		return nil, err
	}
	return &day, nil
}

func pathID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, badRequest("invalid id %q", c.Param("id"))
	}
	return uint(id), nil
}
