package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/tawandakembo/PikichaPay/app/repository"
	"github.com/tawandakembo/PikichaPay/internal/pkg/env"
	"github.com/tawandakembo/PikichaPay/internal/pkg/usercontext"
)

// VerifiedIdentity is what the auth collaborator returns for a valid token.
type VerifiedIdentity struct {
	ExternalID string `json:"user_id"`
	Email      string `json:"email"`
}

// TokenVerifier checks a bearer token with the identity service.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*VerifiedIdentity, error)
}

var ErrTokenRejected = errors.New("token rejected")

// HTTPTokenVerifier verifies tokens against AUTH_VERIFY_URL.
type HTTPTokenVerifier struct {
	verifyURL string
	client    *http.Client
}

func NewHTTPTokenVerifier() *HTTPTokenVerifier {
	return &HTTPTokenVerifier{
		verifyURL: env.GetEnv("AUTH_VERIFY_URL", ""),
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *HTTPTokenVerifier) Verify(ctx context.Context, token string) (*VerifiedIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.verifyURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrTokenRejected
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth service returned %d", resp.StatusCode)
	}

	var identity VerifiedIdentity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return nil, err
	}
	if identity.ExternalID == "" {
		return nil, ErrTokenRejected
	}
	return &identity, nil
}

// AuthMiddleware authenticates requests carrying a bearer token and
// ensures a local mirror row for the identity exists. Requests without
// a token pass through as anonymous; protected routes reject those via
// RequireAuth.
func AuthMiddleware(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearerToken(c)
		if token == "" {
			c.Locals(usercontext.ContextKey, usercontext.UserContext{
				IsLoggedIn: false,
				IsAdmin:    false,
			})
			return c.Next()
		}

		identity, err := verifier.Verify(c.Context(), token)
		if err != nil {
			if errors.Is(err, ErrTokenRejected) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid token"})
			}
			log.Errorf("token verification failed: %v", err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "auth_unavailable", "message": "Identity service unavailable"})
		}

		repo := repository.GetGlobalFactory().GetUserRepository()
		user, err := repo.EnsureByExternalID(identity.ExternalID, identity.Email)
		if err != nil {
			log.Errorf("failed to ensure user %s: %v", identity.ExternalID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "User lookup failed"})
		}

		userCtx := usercontext.UserContext{
			UserID:     user.ID,
			Email:      user.Email,
			IsLoggedIn: true,
			IsAdmin:    user.IsAdmin(),
		}
		c.Locals(usercontext.ContextKey, userCtx)
		c.Locals(usercontext.KeyUserID, user.ID)
		c.Locals(usercontext.KeyEmail, user.Email)
		c.Locals(usercontext.KeyIsAdmin, userCtx.IsAdmin)

		return c.Next()
	}
}

// RequireAuth rejects anonymous requests with JSON 401.
func RequireAuth(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	return c.Next()
}

// RequireAdmin rejects non-admin requests with JSON 403.
func RequireAdmin(c *fiber.Ctx) error {
	ctx := usercontext.GetUserContext(c)
	if !ctx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	if !ctx.IsAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": "admin access required",
		})
	}
	return c.Next()
}

func extractBearerToken(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
