package api

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"dailyplan/internal/billing"
)

// webhookMaxSize bounds the raw webhook payload read for signature checks.
const webhookMaxSize = 1 << 16

func getSubscriptionStatus(gate *billing.Gate) echo.HandlerFunc {
	return func(c echo.Context) error {
		view, err := gate.Status(c.Request().Context(), currentUser(c))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, view)
	}
}

func postCheckout(gate *billing.Gate) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req checkoutRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		url, err := gate.Checkout(c.Request().Context(), currentUser(c), billing.CheckoutInput{
			Mode:       req.Mode,
			PriceID:    req.PriceID,
			SuccessURL: req.SuccessURL,
			CancelURL:  req.CancelURL,
		})
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, checkoutResponse{URL: url})
	}
}

func postCancel(gate *billing.Gate) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := gate.Cancel(c.Request().Context(), currentUser(c)); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, messageResponse{
			Message: "Subscription will be canceled at the end of the current billing period.",
		})
	}
}

// postWebhook receives provider events. The body is read raw because the
// signature covers the exact bytes.
func postWebhook(gate *billing.Gate) echo.HandlerFunc {
	return func(c echo.Context) error {
		payload, err := io.ReadAll(io.LimitReader(c.Request().Body, webhookMaxSize))
		if err != nil {
			return badRequest("Invalid payload")
		}
		if err := gate.HandleWebhook(c.Request().Context(), payload, c.Request().Header.Get("Stripe-Signature")); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "success"})
	}
}
