package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"dailyplan/internal/model"
	"dailyplan/internal/service"
)

func getTasks(tasks *service.TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		start, err := optionalDay(c, "start")
		if err != nil {
			return err
		}
		end, err := optionalDay(c, "end")
		if err != nil {
			return err
		}
		list, err := tasks.List(c.Request().Context(), currentUser(c).ID, start, end)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, newTaskResponses(list))
	}
}

func postTask(tasks *service.TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createTaskRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		in, err := req.input()
		if err != nil {
			return err
		}
		task, err := tasks.Create(c.Request().Context(), currentUser(c).ID, in)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, newTaskResponse(*task))
	}
}

func patchTask(tasks *service.TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c)
		if err != nil {
			return err
		}
		var req patchTaskRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		patch, err := req.patch()
		if err != nil {
			return err
		}
		upd, err := patch.Resolve()
		if err != nil {
			return err
		}
		task, err := tasks.Update(c.Request().Context(), currentUser(c).ID, id, upd)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, newTaskResponse(*task))
	}
}

func deleteTask(tasks *service.TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c)
		if err != nil {
			return err
		}
		if err := tasks.Delete(c.Request().Context(), currentUser(c).ID, id); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, messageResponse{Message: "Task deleted"})
	}
}

func getCompletion(tasks *service.TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		start, err := optionalDay(c, "start")
		if err != nil {
			return err
		}
		end, err := optionalDay(c, "end")
		if err != nil {
			return err
		}
		days, err := tasks.CompletionSummary(c.Request().Context(), currentUser(c).ID, start, end)
		if err != nil {
			return err
		}
		out := make([]daySummaryResponse, 0, len(days))
		for _, d := range days {
			out = append(out, daySummaryResponse{
				Date:      d.Date.Format(model.DateLayout),
				Total:     d.Total,
				Completed: d.Completed,
			})
		}
		return c.JSON(http.StatusOK, out)
	}
}
