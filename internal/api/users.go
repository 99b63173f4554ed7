package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"dailyplan/internal/service"
)

func getMe() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, newUserResponse(*currentUser(c)))
	}
}

// deleteMe removes the caller together with everything they own.
func deleteMe(users *service.UserService) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := users.Delete(c.Request().Context(), currentUser(c).ID); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, messageResponse{Message: "User deleted"})
	}
}
