package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/tawandakembo/PikichaPay/app/models"
	"github.com/tawandakembo/PikichaPay/internal/pkg/metrics/counter"
	"github.com/tawandakembo/PikichaPay/internal/pkg/payments"
	"github.com/tawandakembo/PikichaPay/internal/pkg/usercontext"
)

// intentFromQuery reconstructs the payment purpose from the query
// parameters we tagged onto the provider's result URL at initiation.
func intentFromQuery(c *fiber.Ctx) (payments.Intent, bool) {
	switch payments.IntentKind(c.Query("purpose")) {
	case payments.IntentSubscription:
		return payments.SubscriptionIntent(), true
	case payments.IntentOrder:
		orderID := strings.TrimSpace(c.Query("order_id"))
		if orderID == "" {
			return payments.Intent{}, false
		}
		return payments.OrderIntent(orderID), true
	}
	return payments.Intent{}, false
}

// HandleEcocashWebhook receives EcoCash settlement callbacks.
func HandleEcocashWebhook(c *fiber.Ctx) error {
	if err := counter.AddWebhookReceived(payments.ProviderEcocash); err != nil {
		log.Warnf("webhook counter increment failed: %v", err)
	}

	rawBody := append([]byte(nil), c.BodyRaw()...)
	client := payments.NewEcocashClientFromEnv()
	if !client.VerifySignature(rawBody, c.Get("X-Ecocash-Signature")) {
		return jsonError(c, fiber.StatusUnauthorized, "invalid_signature", "Webhook signature verification failed")
	}

	event, err := client.ParseWebhook(rawBody)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", err.Error())
	}

	intent, ok := intentFromQuery(c)
	if !ok {
		// EcoCash echoes the charge metadata back; fall back to it when
		// the result URL carried no purpose tag.
		switch payments.IntentKind(event.Metadata["purpose"]) {
		case payments.IntentOrder:
			intent, ok = payments.OrderIntent(event.Metadata["orderId"]), event.Metadata["orderId"] != ""
		case payments.IntentSubscription:
			intent, ok = payments.SubscriptionIntent(), true
		}
	}
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Cannot determine payment purpose")
	}

	return reconcileWebhook(c, event, intent)
}

// HandlePaynowWebhook receives Paynow status callbacks.
func HandlePaynowWebhook(c *fiber.Ctx) error {
	if err := counter.AddWebhookReceived(payments.ProviderPaynow); err != nil {
		log.Warnf("webhook counter increment failed: %v", err)
	}

	client := payments.NewPaynowClientFromEnv()
	event, err := client.ParseWebhook(append([]byte(nil), c.BodyRaw()...))
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			return jsonError(c, fiber.StatusUnauthorized, "invalid_signature", "Webhook hash verification failed")
		}
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", err.Error())
	}

	intent, ok := intentFromQuery(c)
	if !ok {
		intent, ok = loadIntent(event.Reference)
	}
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Cannot determine payment purpose")
	}

	return reconcileWebhook(c, event, intent)
}

func reconcileWebhook(c *fiber.Ctx, event *payments.PaymentEvent, intent payments.Intent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	res, err := newReconciler().Reconcile(ctx, event, intent)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrMalformedReference),
			errors.Is(err, payments.ErrInvalidPayload),
			errors.Is(err, payments.ErrUnknownAmount):
			return jsonError(c, fiber.StatusBadRequest, "invalid_payload", err.Error())
		case errors.Is(err, payments.ErrUnauthorizedReference):
			return jsonError(c, fiber.StatusForbidden, "forbidden", "Reference does not belong to the order owner")
		case errors.Is(err, payments.ErrAmountMismatch):
			return jsonError(c, fiber.StatusConflict, "amount_mismatch", err.Error())
		case errors.Is(err, payments.ErrOrderNotFound):
			return jsonError(c, fiber.StatusNotFound, "order_not_found", "Order not found")
		}
		log.Errorf("webhook reconcile failed for %s tx %s: %v", event.Provider, event.ProviderTxID, err)
		// Non-2xx tells the provider to redeliver; the ledger makes the
		// retry harmless.
		return jsonError(c, fiber.StatusInternalServerError, "reconcile_failed", "Temporary failure, please retry")
	}

	if res.Result == payments.ResultApplied {
		if err := counter.AddPaymentApplied(event.Provider); err != nil {
			log.Warnf("applied counter increment failed: %v", err)
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":     true,
		"result": res.Result,
	})
}

type initiatePaymentRequest struct {
	Method   string `json:"method"`
	Purpose  string `json:"purpose"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Phone    string `json:"phone"`
	OrderID  string `json:"orderId"`
}

// HandleInitiatePayment starts an outbound payment for the logged-in
// user. Subscription amounts must land on a known tier band; order
// amounts are taken from the order row, never from the client.
func HandleInitiatePayment(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req initiatePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Invalid JSON body")
	}

	var (
		intent payments.Intent
		amount payments.Amount
	)
	switch payments.IntentKind(req.Purpose) {
	case payments.IntentSubscription:
		currency, err := payments.ParseCurrency(req.Currency)
		if err != nil {
			return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Unsupported currency")
		}
		amount, err = payments.ParseAmount(req.Amount, currency)
		if err != nil {
			return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Invalid amount")
		}
		if _, err := payments.ClassifyTier(amount); err != nil {
			return jsonError(c, fiber.StatusBadRequest, "unknown_amount", "Amount does not match any subscription tier")
		}
		intent = payments.SubscriptionIntent()

	case payments.IntentOrder:
		if strings.TrimSpace(req.OrderID) == "" {
			return jsonError(c, fiber.StatusBadRequest, "invalid_request", "orderId is required for order payments")
		}
		order, err := orderRepo().GetByOrderID(req.OrderID)
		if err != nil {
			if errors.Is(err, payments.ErrOrderNotFound) {
				return jsonError(c, fiber.StatusNotFound, "order_not_found", "Order not found")
			}
			log.Errorf("order lookup failed: %v", err)
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Order lookup failed")
		}
		if order.UserID != userCtx.UserID {
			return jsonError(c, fiber.StatusForbidden, "forbidden", "Order belongs to another user")
		}
		if order.PaymentStatus != models.PaymentStatusPending {
			return jsonError(c, fiber.StatusConflict, "already_paid", payments.ErrAlreadyPaid.Error())
		}
		currency, err := payments.ParseCurrency(order.Currency)
		if err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Order has an invalid currency")
		}
		amount = payments.Amount{Cents: order.AmountCents, Currency: currency}
		intent = payments.OrderIntent(order.OrderID)

	default:
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "purpose must be subscription or order")
	}

	reference := payments.MintReference(userCtx.UserID, amount.Currency, time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	var (
		result *payments.InitiateResult
		err    error
	)
	switch req.Method {
	case payments.MethodEcocash:
		result, err = payments.NewEcocashClientFromEnv().InitiateMobile(ctx, reference, amount, req.Phone, intent)
	case payments.MethodPaynowMobile:
		result, err = payments.NewPaynowClientFromEnv().InitiateMobile(ctx, reference, amount, req.Phone, userCtx.Email, intent)
	case payments.MethodCard:
		result, err = payments.NewPaynowClientFromEnv().InitiateWeb(ctx, reference, amount, userCtx.Email, intent)
	default:
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "method must be ecocash, paynow_mobile or card")
	}
	if err != nil {
		if errors.Is(err, payments.ErrInvalidPhone) {
			return jsonError(c, fiber.StatusBadRequest, "invalid_phone", "Phone number must be a Zimbabwean mobile number")
		}
		log.Errorf("payment initiation via %s failed: %v", req.Method, err)
		return jsonError(c, fiber.StatusBadGateway, "provider_unavailable", "Payment provider request failed")
	}

	storeIntent(reference, intent, result.PollURL)

	return c.Status(fiber.StatusOK).JSON(result)
}

// HandlePaymentStatus polls the provider for a transaction the caller
// initiated. A verified SUCCESS poll result feeds the reconciler, so the
// card flow confirms through the same path as webhooks.
func HandlePaymentStatus(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	pollURL := strings.TrimSpace(c.Query("pollUrl"))
	if pollURL == "" {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "pollUrl is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	client := payments.NewPaynowClientFromEnv()
	status, err := client.CheckStatus(ctx, pollURL)
	if err != nil {
		log.Errorf("status poll failed: %v", err)
		return jsonError(c, fiber.StatusBadGateway, "provider_unavailable", "Status poll failed; treat the payment as pending")
	}

	if err := payments.AuthorizeReference(status.Reference, userCtx.UserID); err != nil {
		if errors.Is(err, payments.ErrUnauthorizedReference) {
			return jsonError(c, fiber.StatusForbidden, "forbidden", "Transaction belongs to another user")
		}
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Poll response carries a malformed reference")
	}

	response := fiber.Map{
		"paid":      status.Paid,
		"status":    status.Status,
		"reference": status.Reference,
	}
	if !status.Paid {
		return c.Status(fiber.StatusOK).JSON(response)
	}

	// The purpose comes only from the record we stored at initiation.
	// Request parameters must never choose where a payment settles.
	intent, ok := loadIntent(status.Reference)
	if !ok {
		response["applied"] = false
		response["note"] = "Payment confirmed but not applied yet; settlement completes via the provider callback"
		return c.Status(fiber.StatusOK).JSON(response)
	}

	event, err := client.EventFromStatus(status)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", err.Error())
	}
	res, err := newReconciler().Reconcile(ctx, event, intent)
	if err != nil {
		log.Errorf("status reconcile failed for tx %s: %v", status.ProviderTxID, err)
		return jsonError(c, fiber.StatusInternalServerError, "reconcile_failed", "Payment confirmed but applying it failed; it will be retried")
	}
	if res.Result == payments.ResultApplied {
		if err := counter.AddPaymentApplied(payments.ProviderPaynow); err != nil {
			log.Warnf("applied counter increment failed: %v", err)
		}
	}
	response["result"] = res.Result
	response["applied"] = res.Result == payments.ResultApplied || res.Result == payments.ResultAlreadyApplied

	return c.Status(fiber.StatusOK).JSON(response)
}
