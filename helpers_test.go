package auth_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	auth "github.com/dvsa/dvsa-auth"
	"github.com/dvsa/dvsa-auth/internal/database"
	"github.com/dvsa/dvsa-auth/repository"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const testSecret = "test-signing-key"

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type testEnv struct {
	db     *bun.DB
	repo   auth.RepositoryManager
	tokens *auth.TokenServiceImpl
}

// newTestDB opens a private in memory sqlite database with the schema.
func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file:"+auth.NewID().String()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.CreateTables(context.Background(), db))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	tokens, err := auth.NewTokenService([]byte(testSecret), "dvsa", discardLogger)
	require.NoError(t, err)

	repo := repository.NewRepositoryManager(db, tokens)
	require.NoError(t, repo.Validate())

	return &testEnv{db: db, repo: repo, tokens: tokens}
}

func (e *testEnv) count(t *testing.T, model any) int {
	t.Helper()
	n, err := e.db.NewSelect().Model(model).Count(context.Background())
	require.NoError(t, err)
	return n
}

func (e *testEnv) register(t *testing.T, username, password string) *auth.User {
	t.Helper()
	user, err := auth.NewRegisterUserHandler(e.repo).
		WithLogger(discardLogger).
		Execute(context.Background(), auth.RegisterUserMessage{
			Email:    username + "@x.io",
			Name:     username,
			Username: username,
			Password: password,
		})
	require.NoError(t, err)
	return user
}

func (e *testEnv) authenticator() *auth.Auther {
	return auth.NewAuthenticator(e.repo, e.tokens, testConfig{}).WithLogger(discardLogger)
}

// testConfig implements auth.Config with defaults.
type testConfig struct {
	duration time.Duration
	secure   bool
}

func (testConfig) GetSigningKey() string { return testSecret }
func (testConfig) GetIssuer() string     { return "dvsa" }
func (testConfig) GetContextKey() string { return "dvsa-auth" }
func (c testConfig) GetSessionDuration() time.Duration {
	return c.duration
}
func (c testConfig) GetCookieSecure() bool { return c.secure }
func (testConfig) GetCookieDomain() string { return "" }

// MockActivitySink records activity events.
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event auth.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockAuthenticator implements auth.Authenticator
type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Login(ctx context.Context, username, password string) (*auth.LoginResult, error) {
	args := m.Called(ctx, username, password)
	res, _ := args.Get(0).(*auth.LoginResult)
	return res, args.Error(1)
}

func (m *MockAuthenticator) Logout(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

func (m *MockAuthenticator) Refresh(ctx context.Context, claims *auth.JWTClaims) (*auth.LoginResult, error) {
	args := m.Called(ctx, claims)
	res, _ := args.Get(0).(*auth.LoginResult)
	return res, args.Error(1)
}

func (m *MockAuthenticator) ClaimsFromToken(token string) (*auth.JWTClaims, error) {
	args := m.Called(token)
	claims, _ := args.Get(0).(*auth.JWTClaims)
	return claims, args.Error(1)
}
