package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/simpleauth/internal/common"
	"github.com/dmitrijs2005/simpleauth/internal/dbx"
	"github.com/dmitrijs2005/simpleauth/internal/server/auth"
	"github.com/dmitrijs2005/simpleauth/internal/server/config"
	"github.com/dmitrijs2005/simpleauth/internal/server/models"
	refreshtokensrepo "github.com/dmitrijs2005/simpleauth/internal/server/repositories/refreshtokens"
	usersrepo "github.com/dmitrijs2005/simpleauth/internal/server/repositories/users"
	"golang.org/x/crypto/bcrypt"
)

// --- helpers ---

const testSecret = "test-secret"

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func newAuthService(t *testing.T, db *sql.DB, rm *fakeRepoManager) *AuthService {
	t.Helper()
	cfg := &config.Config{
		JwtKey:                       testSecret,
		AccessTokenValidityDuration:  15 * time.Minute,
		RefreshTokenValidityDuration: 2 * time.Hour,
	}
	return NewAuthService(db, rm, cfg)
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt error: %v", err)
	}
	return string(h)
}

// fakeUsersRepo backs the credential-store side of the tests.
type fakeUsersRepo struct {
	byUserName map[string]*models.User
	byEmail    map[string]*models.User
	err        error
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	return u, nil
}
func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return nil, common.ErrorNotFound
}
func (f *fakeUsersRepo) GetByUserName(ctx context.Context, userName string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.byUserName[userName]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}
func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}
func (f *fakeUsersRepo) GetAll(ctx context.Context) ([]*models.User, error)    { return nil, nil }
func (f *fakeUsersRepo) Search(ctx context.Context, _ string) ([]*models.User, error) {
	return nil, nil
}
func (f *fakeUsersRepo) Update(ctx context.Context, u *models.User) (*models.User, error) {
	return u, nil
}
func (f *fakeUsersRepo) SoftDelete(ctx context.Context, id string) error { return nil }

// memRefreshRepo is an in-memory refresh-token store whose RevokeIfActive is
// a mutex-guarded compare-and-swap, mirroring the single-statement UPDATE of
// the postgres implementation.
type memRefreshRepo struct {
	mu          sync.Mutex
	tokens      map[string]*models.RefreshToken
	failCreates int // fail the first N creates with ErrorAlreadyExists
	createErr   error
	revokeErr   error
	creates     int
}

func newMemRefreshRepo() *memRefreshRepo {
	return &memRefreshRepo{tokens: map[string]*models.RefreshToken{}}
}

func (f *memRefreshRepo) Create(ctx context.Context, userID string, token string, validity time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if f.failCreates > 0 {
		f.failCreates--
		return common.ErrorAlreadyExists
	}
	if _, ok := f.tokens[token]; ok {
		return common.ErrorAlreadyExists
	}
	f.creates++
	f.tokens[token] = &models.RefreshToken{
		Token:     token,
		UserID:    userID,
		ExpiresAt: time.Now().Add(validity),
		CreatedAt: time.Now(),
	}
	return nil
}

func (f *memRefreshRepo) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	copied := *t
	return &copied, nil
}

func (f *memRefreshRepo) RevokeIfActive(ctx context.Context, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revokeErr != nil {
		return "", f.revokeErr
	}
	t, ok := f.tokens[token]
	if !ok || !t.Active(time.Now()) {
		return "", common.ErrorNotFound
	}
	t.Revoked = true
	return t.UserID, nil
}

func (f *memRefreshRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, t := range f.tokens {
		if !t.ExpiresAt.After(now) {
			delete(f.tokens, k)
			n++
		}
	}
	return n, nil
}

func (f *memRefreshRepo) seed(userID, token string, validity time.Duration) {
	f.tokens[token] = &models.RefreshToken{
		Token:     token,
		UserID:    userID,
		ExpiresAt: time.Now().Add(validity),
		CreatedAt: time.Now(),
	}
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *memRefreshRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository      { return m.u }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository {
	return m.r
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	user := &models.User{ID: "u1", UserName: "thong.smith", Email: "thong.smith@test.com",
		PasswordHash: hashOf(t, "P@55w0rd!")}
	rm := &fakeRepoManager{
		u: &fakeUsersRepo{byUserName: map[string]*models.User{"thong.smith": user}},
		r: newMemRefreshRepo(),
	}
	s := newAuthService(t, db, rm)

	resp, err := s.Login(context.Background(), "thong.smith", "P@55w0rd!")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatalf("empty tokens: %+v", resp)
	}
	if resp.ExpiresIn != int64((15 * time.Minute).Seconds()) {
		t.Fatalf("want 900 seconds, got %d", resp.ExpiresIn)
	}

	// access token is verifiable and carries the subject
	userID, err := auth.GetUserIDFromToken(resp.AccessToken, []byte(testSecret))
	if err != nil || userID != "u1" {
		t.Fatalf("access token does not verify: %q, %v", userID, err)
	}

	// refresh token persisted with the configured lifetime
	stored, err := rm.r.Find(context.Background(), resp.RefreshToken)
	if err != nil {
		t.Fatalf("refresh token not persisted: %v", err)
	}
	if stored.UserID != "u1" {
		t.Fatalf("refresh token bound to %q, want u1", stored.UserID)
	}
	wantExpiry := time.Now().Add(2 * time.Hour)
	if d := stored.ExpiresAt.Sub(wantExpiry); d < -time.Minute || d > time.Minute {
		t.Fatalf("refresh expiry %v too far from %v", stored.ExpiresAt, wantExpiry)
	}
}

func TestLogin_FallsBackToEmail(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	user := &models.User{ID: "u1", Email: "thong.smith@test.com", PasswordHash: hashOf(t, "P@55w0rd!")}
	rm := &fakeRepoManager{
		u: &fakeUsersRepo{byEmail: map[string]*models.User{"thong.smith@test.com": user}},
		r: newMemRefreshRepo(),
	}
	s := newAuthService(t, db, rm)

	resp, err := s.Login(context.Background(), "thong.smith@test.com", "P@55w0rd!")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatalf("empty access token")
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{}, r: newMemRefreshRepo()}
	s := newAuthService(t, db, rm)

	_, err := s.Login(context.Background(), "nobody", "whatever")
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("want ErrorUnauthorized, got %v", err)
	}
	if rm.r.creates != 0 {
		t.Fatalf("failed login must not write refresh tokens, got %d writes", rm.r.creates)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	user := &models.User{ID: "u1", UserName: "thong.smith", PasswordHash: hashOf(t, "P@55w0rd!")}
	rm := &fakeRepoManager{
		u: &fakeUsersRepo{byUserName: map[string]*models.User{"thong.smith": user}},
		r: newMemRefreshRepo(),
	}
	s := newAuthService(t, db, rm)

	_, err := s.Login(context.Background(), "thong.smith", "wrong")
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("want ErrorUnauthorized, got %v", err)
	}
	if rm.r.creates != 0 {
		t.Fatalf("failed login must not write refresh tokens, got %d writes", rm.r.creates)
	}
}

func TestLogin_StoreFailureIsNotUnauthorized(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{err: errors.New("db down")}, r: newMemRefreshRepo()}
	s := newAuthService(t, db, rm)

	_, err := s.Login(context.Background(), "thong.smith", "P@55w0rd!")
	if err == nil || errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("store failure must not be reported as unauthorized, got %v", err)
	}
	if !errors.Is(err, common.ErrorInternal) {
		t.Fatalf("want ErrorInternal, got %v", err)
	}
}

func TestLogin_RetriesOnTokenCollision(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	user := &models.User{ID: "u1", UserName: "thong.smith", PasswordHash: hashOf(t, "P@55w0rd!")}
	repo := newMemRefreshRepo()
	repo.failCreates = 1
	rm := &fakeRepoManager{
		u: &fakeUsersRepo{byUserName: map[string]*models.User{"thong.smith": user}},
		r: repo,
	}
	s := newAuthService(t, db, rm)

	resp, err := s.Login(context.Background(), "thong.smith", "P@55w0rd!")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if resp.RefreshToken == "" {
		t.Fatalf("expected a token after retry")
	}
}

// --- Refresh ---

func TestRefresh_Success(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	repo := newMemRefreshRepo()
	repo.seed("u1", "refresh-xyz", 10*time.Minute)
	rm := &fakeRepoManager{u: &fakeUsersRepo{}, r: repo}
	s := newAuthService(t, db, rm)

	resp, err := s.Refresh(context.Background(), "refresh-xyz")
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatalf("empty tokens: %+v", resp)
	}
	if resp.RefreshToken == "refresh-xyz" {
		t.Fatalf("rotation must issue a new token value")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestRefresh_SecondUseRejected(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.MatchExpectationsInOrder(false)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectRollback()

	repo := newMemRefreshRepo()
	repo.seed("u1", "refresh-xyz", 10*time.Minute)
	rm := &fakeRepoManager{u: &fakeUsersRepo{}, r: repo}
	s := newAuthService(t, db, rm)

	if _, err := s.Refresh(context.Background(), "refresh-xyz"); err != nil {
		t.Fatalf("first Refresh error: %v", err)
	}
	_, err := s.Refresh(context.Background(), "refresh-xyz")
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("superseded token must be rejected, got %v", err)
	}
}

func TestRefresh_Expired(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	repo := newMemRefreshRepo()
	repo.seed("u1", "old-token", -time.Minute)
	rm := &fakeRepoManager{u: &fakeUsersRepo{}, r: repo}
	s := newAuthService(t, db, rm)

	_, err := s.Refresh(context.Background(), "old-token")
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("expired token must be rejected, got %v", err)
	}
}

func TestRefresh_Unknown(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	rm := &fakeRepoManager{u: &fakeUsersRepo{}, r: newMemRefreshRepo()}
	s := newAuthService(t, db, rm)

	_, err := s.Refresh(context.Background(), "never-issued")
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("want ErrorUnauthorized, got %v", err)
	}
}

func TestRefresh_StoreFailureIsNotUnauthorized(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	repo := newMemRefreshRepo()
	repo.revokeErr = errors.New("db down")
	rm := &fakeRepoManager{u: &fakeUsersRepo{}, r: repo}
	s := newAuthService(t, db, rm)

	_, err := s.Refresh(context.Background(), "whatever")
	if err == nil || errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("store failure must not be reported as unauthorized, got %v", err)
	}
}

func TestRefresh_ConcurrentSingleWinner(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.MatchExpectationsInOrder(false)
	mock.ExpectBegin()
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectRollback()

	repo := newMemRefreshRepo()
	repo.seed("u1", "contested", 10*time.Minute)
	rm := &fakeRepoManager{u: &fakeUsersRepo{}, r: repo}
	s := newAuthService(t, db, rm)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = s.Refresh(context.Background(), "contested")
		}(i)
	}
	wg.Wait()

	var successes, unauthorized int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, common.ErrorUnauthorized):
			unauthorized++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || unauthorized != 1 {
		t.Fatalf("want exactly one winner, got %d successes and %d rejections", successes, unauthorized)
	}
}

func TestGenerateTokenPair_UniqueValues(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := newMemRefreshRepo()
	rm := &fakeRepoManager{u: &fakeUsersRepo{}, r: repo}
	s := newAuthService(t, db, rm)

	const n = 10000
	for i := 0; i < n; i++ {
		if _, err := s.generateTokenPair(context.Background(), "u1", db); err != nil {
			t.Fatalf("generateTokenPair error on iteration %d: %v", i, err)
		}
	}
	// the in-memory store rejects duplicate values, so reaching n proves
	// all generated tokens were distinct
	if repo.creates != n {
		t.Fatalf("want %d stored tokens, got %d", n, repo.creates)
	}
}
