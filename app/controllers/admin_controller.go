package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/tawandakembo/PikichaPay/internal/pkg/database"
	"github.com/tawandakembo/PikichaPay/internal/pkg/metrics/counter"
	"github.com/tawandakembo/PikichaPay/internal/pkg/payments"
)

// HandleAdminListOrders lists recent orders across all users.
func HandleAdminListOrders(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	orders, err := orderRepo().List(limit)
	if err != nil {
		log.Errorf("admin order list failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Order list failed")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"orders": orders})
}

type setFulfillmentRequest struct {
	Status string `json:"status"`
}

// HandleAdminSetFulfillment advances an order's fulfillment status.
// Transitions are forward-only; skipping or reversing a step is rejected.
func HandleAdminSetFulfillment(c *fiber.Ctx) error {
	var req setFulfillmentRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Invalid JSON body")
	}

	order, err := orderRepo().SetFulfillment(c.Params("id"), req.Status)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrOrderNotFound):
			return jsonError(c, fiber.StatusNotFound, "order_not_found", "Order not found")
		case errors.Is(err, payments.ErrInvalidTransition):
			return jsonError(c, fiber.StatusConflict, "invalid_transition", err.Error())
		}
		log.Errorf("fulfillment update failed for order %s: %v", c.Params("id"), err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Fulfillment update failed")
	}

	return c.Status(fiber.StatusOK).JSON(order)
}

// HandleAdminFailOrderPayment marks a pending order's payment failed,
// closing the payment window after a confirmed provider failure.
func HandleAdminFailOrderPayment(c *fiber.Ctx) error {
	repo := payments.NewRepository(database.GetDB())
	flipped, err := repo.MarkOrderPaymentFailed(c.Params("id"))
	if err != nil {
		log.Errorf("payment-failed flip for order %s failed: %v", c.Params("id"), err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Update failed")
	}
	if !flipped {
		return jsonError(c, fiber.StatusConflict, "not_pending", "Order payment is not pending")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// HandleAdminSweepSubscriptions runs one expiry sweep. An external cron
// hits this endpoint on a fixed interval.
func HandleAdminSweepSubscriptions(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	scheduler := payments.NewScheduler(payments.NewRepository(database.GetDB()))
	expired, err := scheduler.ProcessExpired(ctx, time.Now())
	if err != nil {
		log.Errorf("subscription sweep failed after %d expiries: %v", expired, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "sweep_failed",
			"expired": expired,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"expired": expired})
}

// HandleAdminGetUser resolves a customer by email for support lookups.
func HandleAdminGetUser(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "email query parameter is required")
	}

	user, err := userRepo().GetByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "user_not_found", "No user with that email")
		}
		log.Errorf("user lookup by email failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "User lookup failed")
	}

	return c.Status(fiber.StatusOK).JSON(user)
}

// HandleAdminStats returns counter snapshots and table sizes.
func HandleAdminStats(c *fiber.Ctx) error {
	counters, err := counter.Snapshot()
	if err != nil {
		log.Errorf("counter snapshot failed: %v", err)
		counters = map[string]map[string]string{}
	}

	users, err := userRepo().Count()
	if err != nil {
		log.Errorf("user count failed: %v", err)
	}
	orders, err := orderRepo().Count()
	if err != nil {
		log.Errorf("order count failed: %v", err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"counters": counters,
		"users":    users,
		"orders":   orders,
	})
}
