package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"dailyplan/internal/service"
)

func getNotes(notes *service.NoteService) echo.HandlerFunc {
	return func(c echo.Context) error {
		list, err := notes.List(c.Request().Context(), currentUser(c).ID)
		if err != nil {
			return err
		}
		out := make([]noteResponse, 0, len(list))
		for _, n := range list {
			out = append(out, newNoteResponse(n))
		}
		return c.JSON(http.StatusOK, out)
	}
}

func postNote(notes *service.NoteService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createNoteRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		note, err := notes.Create(c.Request().Context(), currentUser(c).ID, req.Detail)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, newNoteResponse(*note))
	}
}

func patchNote(notes *service.NoteService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c)
		if err != nil {
			return err
		}
		var req patchNoteRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		upd, err := service.NotePatch{Order: req.Order, Detail: req.Detail}.Resolve()
		if err != nil {
			return err
		}
		note, err := notes.Update(c.Request().Context(), currentUser(c).ID, id, upd)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, newNoteResponse(*note))
	}
}

func deleteNote(notes *service.NoteService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c)
		if err != nil {
			return err
		}
		if err := notes.Delete(c.Request().Context(), currentUser(c).ID, id); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, messageResponse{Message: "Note deleted"})
	}
}
