package controllers

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tawandakembo/PikichaPay/app/models"
	"github.com/tawandakembo/PikichaPay/app/repository"
	"github.com/tawandakembo/PikichaPay/internal/pkg/usercontext"
)

type fakeUserRepo struct {
	users map[uint]*models.User
}

func (f *fakeUserRepo) EnsureByExternalID(externalID, email string) (*models.User, error) {
	for _, user := range f.users {
		if user.ExternalID == externalID {
			return user, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) GetByID(id uint) (*models.User, error) {
	if user, ok := f.users[id]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) GetByEmail(email string) (*models.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) ConsumeCredit(id uint) (bool, error) {
	user, ok := f.users[id]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if user.Credits.Unlimited {
		return true, nil
	}
	if user.Credits.Remaining <= 0 {
		return false, nil
	}
	user.Credits.Remaining--
	return true, nil
}

func (f *fakeUserRepo) Count() (int64, error) {
	return int64(len(f.users)), nil
}

type fakeTransactionRepo struct {
	byID map[string]*models.Transaction
}

func (f *fakeTransactionRepo) GetByTransactionID(transactionID string) (*models.Transaction, error) {
	if t, ok := f.byID[transactionID]; ok {
		return t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeTransactionRepo) ListByUserID(userID uint, limit int) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, t := range f.byID {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func installFakeFactory(t *testing.T, users repository.UserRepository, transactions repository.TransactionRepository) {
	t.Helper()
	prev := repository.GetGlobalFactory()
	repository.SetGlobalFactory(repository.NewFactoryWithRepositories(users, nil, nil, transactions))
	t.Cleanup(func() { repository.SetGlobalFactory(prev) })
}

func authedApp(method, path string, ctx usercontext.UserContext, handler fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Add(method, path, func(c *fiber.Ctx) error {
		c.Locals(usercontext.ContextKey, ctx)
		return c.Next()
	}, handler)
	return app
}

func TestConsumeCreditDecrementsUntilEmpty(t *testing.T) {
	users := &fakeUserRepo{users: map[uint]*models.User{
		7: {ID: 7, Email: "u@example.com", Credits: models.Credits{Remaining: 1, Total: 3, Tier: models.TierFree}},
	}}
	installFakeFactory(t, users, nil)

	app := authedApp("POST", "/consume", usercontext.UserContext{UserID: 7, IsLoggedIn: true}, HandleConsumeCredit)

	resp, err := app.Test(httptest.NewRequest("POST", "/consume", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, users.users[7].Credits.Remaining)

	resp, err = app.Test(httptest.NewRequest("POST", "/consume", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusPaymentRequired, resp.StatusCode)
}

func TestConsumeCreditUnlimitedNeverRunsOut(t *testing.T) {
	users := &fakeUserRepo{users: map[uint]*models.User{
		7: {ID: 7, Credits: models.Credits{Unlimited: true, Tier: models.TierPremium}},
	}}
	installFakeFactory(t, users, nil)

	app := authedApp("POST", "/consume", usercontext.UserContext{UserID: 7, IsLoggedIn: true}, HandleConsumeCredit)

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("POST", "/consume", nil), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
}

func TestGetTransactionOwnerAndAccessControl(t *testing.T) {
	transactions := &fakeTransactionRepo{byID: map[string]*models.Transaction{
		"PN-1": {TransactionID: "PN-1", UserID: 7},
	}}
	installFakeFactory(t, nil, transactions)

	owner := authedApp("GET", "/transactions/:id", usercontext.UserContext{UserID: 7, IsLoggedIn: true}, HandleGetTransaction)
	resp, err := owner.Test(httptest.NewRequest("GET", "/transactions/PN-1", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	stranger := authedApp("GET", "/transactions/:id", usercontext.UserContext{UserID: 8, IsLoggedIn: true}, HandleGetTransaction)
	resp, err = stranger.Test(httptest.NewRequest("GET", "/transactions/PN-1", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	admin := authedApp("GET", "/transactions/:id", usercontext.UserContext{UserID: 8, IsLoggedIn: true, IsAdmin: true}, HandleGetTransaction)
	resp, err = admin.Test(httptest.NewRequest("GET", "/transactions/PN-1", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = owner.Test(httptest.NewRequest("GET", "/transactions/PN-missing", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestAdminGetUserByEmail(t *testing.T) {
	users := &fakeUserRepo{users: map[uint]*models.User{
		7: {ID: 7, Email: "customer@example.com"},
	}}
	installFakeFactory(t, users, nil)

	app := authedApp("GET", "/users", usercontext.UserContext{UserID: 1, IsLoggedIn: true, IsAdmin: true}, HandleAdminGetUser)

	resp, err := app.Test(httptest.NewRequest("GET", "/users?email=customer%40example.com", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/users?email=nobody%40example.com", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/users", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
