package controllers

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/tawandakembo/PikichaPay/app/models"
	"github.com/tawandakembo/PikichaPay/internal/pkg/payments"
	"github.com/tawandakembo/PikichaPay/internal/pkg/usercontext"
)

type createOrderRequest struct {
	ProductType     string `json:"productType"`
	ProductDetails  string `json:"productDetails"`
	ShippingAddress string `json:"shippingAddress"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
}

// HandleCreateOrder creates a physical-product order for the logged-in
// user. Orders start unpaid; payment is initiated separately.
func HandleCreateOrder(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Invalid JSON body")
	}

	currency, err := payments.ParseCurrency(req.Currency)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Unsupported currency")
	}
	amount, err := payments.ParseAmount(req.Amount, currency)
	if err != nil || amount.Cents <= 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Invalid amount")
	}

	order := &models.Order{
		OrderID:         uuid.NewString(),
		UserID:          userCtx.UserID,
		UserEmail:       userCtx.Email,
		ProductType:     strings.TrimSpace(req.ProductType),
		ProductDetails:  req.ProductDetails,
		AmountCents:     amount.Cents,
		Currency:        string(currency),
		ShippingAddress: req.ShippingAddress,
	}
	if err := orderRepo().Create(order); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Order validation failed: "+vErrs.Error())
		}
		log.Errorf("order create failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Could not create order")
	}

	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleGetOrder returns one order; only the owner or an admin may see it.
func HandleGetOrder(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	order, err := orderRepo().GetByOrderID(c.Params("id"))
	if err != nil {
		if errors.Is(err, payments.ErrOrderNotFound) {
			return jsonError(c, fiber.StatusNotFound, "order_not_found", "Order not found")
		}
		log.Errorf("order lookup failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Order lookup failed")
	}
	if order.UserID != userCtx.UserID && !userCtx.IsAdmin {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Order belongs to another user")
	}

	return c.Status(fiber.StatusOK).JSON(order)
}

// HandleListMyOrders returns the caller's orders, newest first.
func HandleListMyOrders(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	orders, err := orderRepo().ListByUserID(userCtx.UserID, limit)
	if err != nil {
		log.Errorf("order list failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Order list failed")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"orders": orders})
}
