package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/tawandakembo/PikichaPay/internal/pkg/usercontext"
)

// HandleConsumeCredit spends one generation credit for the logged-in
// user. The main app calls this before starting a picture generation;
// the guarded decrement keeps concurrent generations from overdrawing.
func HandleConsumeCredit(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	consumed, err := userRepo().ConsumeCredit(userCtx.UserID)
	if err != nil {
		log.Errorf("credit consume failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Credit consume failed")
	}
	if !consumed {
		return jsonError(c, fiber.StatusPaymentRequired, "no_credits", "No generation credits remaining")
	}

	response := fiber.Map{"ok": true}
	if user, err := userRepo().GetByID(userCtx.UserID); err == nil {
		response["credits"] = user.Credits
	} else {
		log.Warnf("credit snapshot after consume failed for user %d: %v", userCtx.UserID, err)
	}

	return c.Status(fiber.StatusOK).JSON(response)
}
