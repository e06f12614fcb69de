package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/anikchand/videotube/internal/hash"
	"github.com/anikchand/videotube/internal/models"
	"github.com/anikchand/videotube/internal/tokens"
)

var (
	testAccessSecret  = []byte("test-access-secret")
	testRefreshSecret = []byte("test-refresh-secret")
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	// A single connection keeps every goroutine on the same in-memory
	// database and serializes writes the way postgres row locking would.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}))
	return db
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	db := newTestDB(t)
	codec := tokens.NewCodec(testAccessSecret, testRefreshSecret, 15*time.Minute, 7*24*time.Hour)
	return &Service{DB: db, Store: &Store{DB: db}, Codec: codec}
}

func createUser(t *testing.T, db *gorm.DB, username, email, password string) *models.User {
	t.Helper()

	pwHash, err := hash.HashPassword(password)
	require.NoError(t, err)

	user := &models.User{
		Username:     username,
		Email:        email,
		FullName:     "Test User",
		PasswordHash: pwHash,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// closeDB tears down the underlying connection so every subsequent query
// fails, standing in for an unreachable database.
func closeDB(t *testing.T, db *gorm.DB) {
	t.Helper()

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}

func storedToken(t *testing.T, svc *Service, userID uint) string {
	t.Helper()

	token, err := svc.Store.GetRefreshToken(context.Background(), userID)
	require.NoError(t, err)
	return token
}

func TestLogin_ByHandleAndByEmail(t *testing.T) {
	svc := newTestService(t)
	createUser(t, svc.DB, "chaiaurcode", "chai@example.com", "password123")
	ctx := context.Background()

	for _, identifier := range []string{"chaiaurcode", "chai@example.com", "ChaiAurCode"} {
		res, err := svc.Login(ctx, identifier, "password123")
		require.NoError(t, err, "identifier %q", identifier)
		require.NotEmpty(t, res.AccessToken)
		require.NotEmpty(t, res.RefreshToken)
		require.NotNil(t, res.User)
		assert.Empty(t, res.User.PasswordHash)
		assert.Nil(t, res.User.RefreshToken)
	}
}

func TestLogin_PersistsRefreshToken(t *testing.T) {
	svc := newTestService(t)
	user := createUser(t, svc.DB, "creator", "creator@example.com", "password123")

	res, err := svc.Login(context.Background(), "creator", "password123")
	require.NoError(t, err)

	assert.Equal(t, res.RefreshToken, storedToken(t, svc, user.ID))
}

func TestLogin_UnknownIdentifier(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Login(context.Background(), "nobody", "password123")
	assert.ErrorIs(t, err, ErrPrincipalNotFound)
}

func TestLogin_WrongPassword_DoesNotTouchStore(t *testing.T) {
	svc := newTestService(t)
	user := createUser(t, svc.DB, "creator", "creator@example.com", "password123")

	_, err := svc.Login(context.Background(), "creator", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Empty(t, storedToken(t, svc, user.ID))
}

func TestRefresh_RotatesToken(t *testing.T) {
	svc := newTestService(t)
	user := createUser(t, svc.DB, "creator", "creator@example.com", "password123")
	ctx := context.Background()

	login, err := svc.Login(ctx, "creator", "password123")
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)

	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	assert.Equal(t, refreshed.RefreshToken, storedToken(t, svc, user.ID))
}

func TestRefresh_SingleUse(t *testing.T) {
	svc := newTestService(t)
	user := createUser(t, svc.DB, "creator", "creator@example.com", "password123")
	ctx := context.Background()

	login, err := svc.Login(ctx, "creator", "password123")
	require.NoError(t, err)
	t0 := login.RefreshToken

	first, err := svc.Refresh(ctx, t0)
	require.NoError(t, err)
	t1 := first.RefreshToken
	assert.Equal(t, t1, storedToken(t, svc, user.ID))

	// T0 was consumed by the rotation.
	_, err = svc.Refresh(ctx, t0)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, t1, storedToken(t, svc, user.ID))

	// T1 is still good and rotates to T2.
	second, err := svc.Refresh(ctx, t1)
	require.NoError(t, err)
	t2 := second.RefreshToken
	assert.NotEqual(t, t1, t2)
	assert.Equal(t, t2, storedToken(t, svc, user.ID))
}

func TestRefresh_MissingToken(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Refresh(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefresh_GarbageToken(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Refresh(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefresh_ExpiredToken_DoesNotMutateStore(t *testing.T) {
	svc := newTestService(t)
	user := createUser(t, svc.DB, "creator", "creator@example.com", "password123")
	ctx := context.Background()

	expiredCodec := tokens.NewCodec(testAccessSecret, testRefreshSecret, -time.Minute, -time.Minute)
	expired, _, err := expiredCodec.IssueRefresh("1")
	require.NoError(t, err)
	require.NoError(t, svc.Store.SetRefreshToken(ctx, user.ID, expired))

	_, err = svc.Refresh(ctx, expired)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, expired, storedToken(t, svc, user.ID))
}

func TestRefresh_UnknownSubject(t *testing.T) {
	svc := newTestService(t)

	token, _, err := svc.Codec.IssueRefresh("999")
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefresh_AccessTokenRejected(t *testing.T) {
	svc := newTestService(t)
	createUser(t, svc.DB, "creator", "creator@example.com", "password123")
	ctx := context.Background()

	login, err := svc.Login(ctx, "creator", "password123")
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, login.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLogout_InvalidatesRefreshToken(t *testing.T) {
	svc := newTestService(t)
	user := createUser(t, svc.DB, "creator", "creator@example.com", "password123")
	ctx := context.Background()

	login, err := svc.Login(ctx, "creator", "password123")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, user.ID))
	assert.Empty(t, storedToken(t, svc, user.ID))

	_, err = svc.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Idempotent.
	require.NoError(t, svc.Logout(ctx, user.ID))
}

func TestRefresh_ConcurrentSameToken_ExactlyOneWinner(t *testing.T) {
	svc := newTestService(t)
	user := createUser(t, svc.DB, "creator", "creator@example.com", "password123")
	ctx := context.Background()

	login, err := svc.Login(ctx, "creator", "password123")
	require.NoError(t, err)
	t0 := login.RefreshToken

	const racers = 4
	results := make(chan error, racers)
	winners := make(chan string, racers)

	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Refresh(ctx, t0)
			results <- err
			if err == nil {
				winners <- res.RefreshToken
			}
		}()
	}
	wg.Wait()
	close(results)
	close(winners)

	var succeeded, unauthorized int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		default:
			require.ErrorIs(t, err, ErrUnauthorized)
			unauthorized++
		}
	}

	assert.Equal(t, 1, succeeded, "exactly one racer may rotate the token")
	assert.Equal(t, racers-1, unauthorized)

	winner := <-winners
	assert.Equal(t, winner, storedToken(t, svc, user.ID))
}

func TestLogin_StoreUnavailable(t *testing.T) {
	svc := newTestService(t)
	createUser(t, svc.DB, "creator", "creator@example.com", "password123")
	ctx := context.Background()

	closeDB(t, svc.DB)

	res, err := svc.Login(ctx, "creator", "password123")
	assert.Nil(t, res, "no tokens may reach the caller when the store is down")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestRefresh_StoreUnavailable(t *testing.T) {
	svc := newTestService(t)
	createUser(t, svc.DB, "creator", "creator@example.com", "password123")
	ctx := context.Background()

	login, err := svc.Login(ctx, "creator", "password123")
	require.NoError(t, err)

	closeDB(t, svc.DB)

	res, err := svc.Refresh(ctx, login.RefreshToken)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	err = svc.Logout(ctx, 1)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
