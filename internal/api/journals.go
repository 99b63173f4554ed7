package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"dailyplan/internal/service"
)

func getJournal(journals *service.JournalService) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.QueryParam("date") == "" {
			return badRequest("date is required")
		}
		day, err := parseDay("date", c.QueryParam("date"))
		if err != nil {
			return err
		}
		j, err := journals.GetOrCreate(c.Request().Context(), currentUser(c).ID, day)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, newJournalResponse(*j))
	}
}

func postJournal(journals *service.JournalService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createJournalRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		day, err := parseDay("date", req.Date)
		if err != nil {
			return err
		}
		j, err := journals.Create(c.Request().Context(), currentUser(c).ID, service.JournalInput{
			Date:    day,
			Subject: req.Subject,
			Entry:   req.Entry,
		})
		if err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, newJournalResponse(*j))
	}
}

func patchJournal(journals *service.JournalService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c)
		if err != nil {
			return err
		}
		var req patchJournalRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		patch := service.JournalPatch{Subject: req.Subject, Entry: req.Entry}
		if req.Date != nil {
			day, err := parseDay("date", *req.Date)
			if err != nil {
				return err
			}
			patch.Date = &day
		}
		j, err := journals.Update(c.Request().Context(), currentUser(c).ID, id, patch)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, newJournalResponse(*j))
	}
}

func clearJournal(journals *service.JournalService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c)
		if err != nil {
			return err
		}
		j, err := journals.Clear(c.Request().Context(), currentUser(c).ID, id)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, newJournalResponse(*j))
	}
}
