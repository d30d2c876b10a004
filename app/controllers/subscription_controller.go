package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/tawandakembo/PikichaPay/app/models"
	"github.com/tawandakembo/PikichaPay/internal/pkg/usercontext"
)

// HandleGetMySubscription returns the caller's entitlement snapshot:
// embedded credits plus the current subscription cycle if one is active.
func HandleGetMySubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	user, err := userRepo().GetByID(userCtx.UserID)
	if err != nil {
		log.Errorf("user lookup failed for %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "User lookup failed")
	}

	response := fiber.Map{
		"tier":    user.Subscription.Tier,
		"status":  user.Subscription.Status,
		"credits": user.Credits,
	}

	sub, err := subscriptionRepo().GetCurrentByUserID(userCtx.UserID)
	switch {
	case err == nil:
		response["subscription"] = sub
		response["active"] = sub.IsActive(time.Now())
	case errors.Is(err, gorm.ErrRecordNotFound):
		response["active"] = false
	default:
		log.Errorf("subscription lookup failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Subscription lookup failed")
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// HandleCancelMySubscription cancels the caller's active cycle and drops
// them to the free tier immediately.
func HandleCancelMySubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	sub, err := subscriptionRepo().GetCurrentByUserID(userCtx.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return jsonError(c, fiber.StatusNotFound, "no_active_subscription", "No active subscription to cancel")
	}
	if err != nil {
		log.Errorf("subscription lookup failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Subscription lookup failed")
	}

	if err := subscriptionRepo().Cancel(sub.SubscriptionID, userCtx.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Raced with the expiry sweep or a duplicate cancel.
			return jsonError(c, fiber.StatusConflict, "not_active", "Subscription is no longer active")
		}
		log.Errorf("subscription cancel failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Cancellation failed")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":              true,
		"subscription_id": sub.SubscriptionID,
		"tier":            models.TierFree,
	})
}

// HandleGetTransaction returns one ledger row by provider transaction
// id; only the owner or an admin may see it.
func HandleGetTransaction(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	transaction, err := transactionRepo().GetByTransactionID(c.Params("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "transaction_not_found", "Transaction not found")
		}
		log.Errorf("transaction lookup failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Transaction lookup failed")
	}
	if transaction.UserID != userCtx.UserID && !userCtx.IsAdmin {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Transaction belongs to another user")
	}

	return c.Status(fiber.StatusOK).JSON(transaction)
}

// HandleListMyTransactions returns the caller's settlement ledger rows.
func HandleListMyTransactions(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	transactions, err := transactionRepo().ListByUserID(userCtx.UserID, limit)
	if err != nil {
		log.Errorf("transaction list failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Transaction list failed")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"transactions": transactions})
}
