package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/designhub/internal/migrations"
	"github.com/magabrotheeeer/designhub/internal/models"
)

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("designhub"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	st, err := New(ctx, dsn)
	require.NoError(t, err)

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(st.DB, migrationsPath))
	require.NoError(t, st.CheckDatabaseReady(ctx))

	cleanup := func() {
		_ = st.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return st, cleanup
}

// TestDataFactory содержит методы для создания тестовых данных.
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных.
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает тестового пользователя.
func (f *TestDataFactory) CreateUser(t *testing.T, email, role string) *models.User {
	t.Helper()
	u, err := f.storage.CreateUser(context.Background(), models.User{
		Name:         "Test " + email,
		Email:        email,
		PasswordHash: "hash",
		Role:         role,
	})
	require.NoError(t, err)
	return u
}

// CreatePackage создает тестовый тарифный план.
func (f *TestDataFactory) CreatePackage(t *testing.T, name string, price int64) *models.Package {
	t.Helper()
	p, err := f.storage.CreatePackage(context.Background(), models.Package{
		Name:     name,
		Price:    price,
		Currency: "usd",
		Features: []string{"Unlimited requests"},
		Active:   true,
	})
	require.NoError(t, err)
	return p
}

// CreateRequest создает тестовую заявку.
func (f *TestDataFactory) CreateRequest(t *testing.T, userID, title string) *models.DesignRequest {
	t.Helper()
	r, err := f.storage.CreateRequest(context.Background(), models.DesignRequest{
		UserID:   userID,
		Title:    title,
		Priority: models.PriorityMedium,
	})
	require.NoError(t, err)
	return r
}
