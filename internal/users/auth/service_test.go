// Copyright (c) 2026 Gatekeep. All rights reserved.
// Author: minh.vo.sg@gmail.com

package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvo/gatekeep/internal/platform/apperr"
	"github.com/minhvo/gatekeep/internal/platform/dberr"
	"github.com/minhvo/gatekeep/internal/platform/sec"
	"github.com/minhvo/gatekeep/internal/users/audit"
	"github.com/minhvo/gatekeep/internal/users/auth"
)

// # In-Memory Fakes

// fakeUserRepository mimics the Postgres repository, including the
// unique-constraint behavior on Create and UpdateEmail.
type fakeUserRepository struct {
	mu    sync.Mutex
	users map[string]*auth.User // keyed by ID
}

func newFakeUserRepository() *fakeUserRepository {
	return &fakeUserRepository{users: make(map[string]*auth.User)}
}

func (repo *fakeUserRepository) FindByID(_ context.Context, id string) (*auth.User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if user, ok := repo.users[id]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, dberr.ErrNotFound
}

func (repo *fakeUserRepository) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, user := range repo.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, dberr.ErrNotFound
}

func (repo *fakeUserRepository) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, user := range repo.users {
		if user.Username == username {
			clone := *user
			return &clone, nil
		}
	}
	return nil, dberr.ErrNotFound
}

func (repo *fakeUserRepository) Create(_ context.Context, newUser *auth.User) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, user := range repo.users {
		if user.Email == newUser.Email || user.Username == newUser.Username {
			return apperr.Conflict("Email or username already registered")
		}
	}
	clone := *newUser
	repo.users[newUser.ID] = &clone
	return nil
}

func (repo *fakeUserRepository) UpdateEmail(_ context.Context, id, email string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, user := range repo.users {
		if user.Email == email && user.ID != id {
			return apperr.Conflict("Email already registered")
		}
	}
	user, ok := repo.users[id]
	if !ok {
		return dberr.ErrNotFound
	}
	user.Email = email
	return nil
}

func (repo *fakeUserRepository) UpdatePassword(_ context.Context, id, passwordHash string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	user, ok := repo.users[id]
	if !ok {
		return dberr.ErrNotFound
	}
	user.PasswordHash = passwordHash
	return nil
}

func (repo *fakeUserRepository) UpdateAvatarPath(_ context.Context, id, avatarURL string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	user, ok := repo.users[id]
	if !ok {
		return dberr.ErrNotFound
	}
	user.AvatarURL = avatarURL
	return nil
}

func (repo *fakeUserRepository) delete(id string) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	delete(repo.users, id)
}

// fakeSessionStore mimics the Redis-backed store.
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]string // token hash -> userID
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]string)}
}

func (store *fakeSessionStore) Create(_ context.Context, userID string) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	token, err := sec.GenerateSecureToken(auth.SessionTokenLength)
	if err != nil {
		return "", err
	}
	store.sessions[sec.HashToken(token)] = userID
	return token, nil
}

func (store *fakeSessionStore) Resolve(_ context.Context, token string) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if userID, ok := store.sessions[sec.HashToken(token)]; ok {
		return userID, nil
	}
	return "", apperr.Unauthorized("Invalid or expired session")
}

func (store *fakeSessionStore) Destroy(_ context.Context, token string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.sessions, sec.HashToken(token))
	return nil
}

func (store *fakeSessionStore) count() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.sessions)
}

// fakeAuditLog records entries in memory.
type fakeAuditLog struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (log *fakeAuditLog) Record(_ context.Context, entry *audit.Entry) error {
	log.mu.Lock()
	defer log.mu.Unlock()
	log.entries = append(log.entries, *entry)
	return nil
}

func (log *fakeAuditLog) actions() []audit.Action {
	log.mu.Lock()
	defer log.mu.Unlock()
	actions := make([]audit.Action, 0, len(log.entries))
	for _, entry := range log.entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

// # Test Fixture

type fixture struct {
	service  *auth.Service
	users    *fakeUserRepository
	sessions *fakeSessionStore
	auditLog *fakeAuditLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	users := newFakeUserRepository()
	sessions := newFakeSessionStore()
	auditLog := &fakeAuditLog{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &fixture{
		service:  auth.NewService(users, sessions, auditLog, logger, 8),
		users:    users,
		sessions: sessions,
		auditLog: auditLog,
	}
}

var testMeta = audit.RequestMeta{IPAddress: "203.0.113.7", UserAgent: "test-agent"}

func (f *fixture) register(t *testing.T, username, email, password string) *auth.User {
	t.Helper()
	user, err := f.service.Register(context.Background(), auth.RegisterInput{
		Username: username,
		Email:    email,
		Password: password,
	}, testMeta)
	require.NoError(t, err)
	return user
}

// # Registration

/*
TestRegister_Success verifies canonicalization, hashing, and the audit trail.
*/
func TestRegister_Success(t *testing.T) {
	f := newFixture(t)

	user, err := f.service.Register(context.Background(), auth.RegisterInput{
		Username: "  Alice  ",
		Email:    "Alice@Example.COM",
		Password: "s3cret-pass",
	}, testMeta)
	require.NoError(t, err)

	// Identifiers are stored canonicalized.
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)

	// The stored credential is a hash, never the plain text.
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)
	assert.True(t, sec.CheckPasswordHash("s3cret-pass", user.PasswordHash))

	// Registration never side-creates a session.
	assert.Zero(t, f.sessions.count())

	assert.Equal(t, []audit.Action{audit.ActionRegistered}, f.auditLog.actions())
}

/*
TestRegister_Validation rejects malformed input before any storage access.
*/
func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"empty_username", "", "a@example.com", "long-enough"},
		{"short_username", "ab", "a@example.com", "long-enough"},
		{"bad_username_chars", "a b c", "a@example.com", "long-enough"},
		{"bad_email", "alice", "not-an-email", "long-enough"},
		{"short_password", "alice", "a@example.com", "short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.service.Register(context.Background(), auth.RegisterInput{
				Username: tt.username,
				Email:    tt.email,
				Password: tt.password,
			}, testMeta)

			require.Error(t, err)
			ae := apperr.As(err)
			require.NotNil(t, ae)
			assert.Equal(t, "VALIDATION_ERROR", ae.Code)
			assert.Empty(t, f.auditLog.actions())
		})
	}
}

/*
TestRegister_DuplicateIdentity verifies both duplicate paths report Conflict.
*/
func TestRegister_DuplicateIdentity(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "s3cret-pass")

	// Same email (case differences collapse during canonicalization).
	_, err := f.service.Register(context.Background(), auth.RegisterInput{
		Username: "alice2",
		Email:    "ALICE@example.com",
		Password: "s3cret-pass",
	}, testMeta)
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "CONFLICT", ae.Code)
	assert.Equal(t, "Email already registered", ae.Message)

	// Same username.
	_, err = f.service.Register(context.Background(), auth.RegisterInput{
		Username: "Alice",
		Email:    "other@example.com",
		Password: "s3cret-pass",
	}, testMeta)
	ae = apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "CONFLICT", ae.Code)
	assert.Equal(t, "Username is already taken", ae.Message)
}

/*
TestRegister_ConcurrentDuplicates verifies that when racing registrations
slip past the advisory pre-check, the storage constraint still admits at
most one winner.
*/
func TestRegister_ConcurrentDuplicates(t *testing.T) {
	f := newFixture(t)

	const attempts = 8
	results := make(chan error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Register(context.Background(), auth.RegisterInput{
				Username: "racer",
				Email:    "racer@example.com",
				Password: "s3cret-pass",
			}, testMeta)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		ae := apperr.As(err)
		require.NotNil(t, ae)
		assert.Equal(t, "CONFLICT", ae.Code)
	}
	assert.Equal(t, 1, succeeded)
}

// # Login

/*
TestLogin_Success verifies the register-then-login round trip.
*/
func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	registered := f.register(t, "alice", "alice@example.com", "s3cret-pass")

	session, err := f.service.Login(context.Background(), auth.LoginInput{
		Email:    "Alice@Example.com",
		Password: "s3cret-pass",
	}, testMeta)
	require.NoError(t, err)

	assert.NotEmpty(t, session.Token)
	assert.Equal(t, registered.ID, session.User.ID)

	// The minted token resolves back to the user.
	userID, err := f.sessions.Resolve(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, userID)

	assert.Contains(t, f.auditLog.actions(), audit.ActionLoggedIn)
}

/*
TestLogin_IndistinguishableFailures verifies that an unknown email and a
wrong password produce byte-identical errors.
*/
func TestLogin_IndistinguishableFailures(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "s3cret-pass")

	_, unknownErr := f.service.Login(context.Background(), auth.LoginInput{
		Email:    "nobody@example.com",
		Password: "s3cret-pass",
	}, testMeta)
	_, wrongErr := f.service.Login(context.Background(), auth.LoginInput{
		Email:    "alice@example.com",
		Password: "wrong-password",
	}, testMeta)

	require.Error(t, unknownErr)
	require.Error(t, wrongErr)

	unknownAE := apperr.As(unknownErr)
	wrongAE := apperr.As(wrongErr)
	require.NotNil(t, unknownAE)
	require.NotNil(t, wrongAE)

	assert.Equal(t, unknownAE.Code, wrongAE.Code)
	assert.Equal(t, unknownAE.Message, wrongAE.Message)
	assert.Equal(t, unknownAE.HTTPStatus, wrongAE.HTTPStatus)

	// Failed logins mint no session and leave no login audit entry.
	assert.Zero(t, f.sessions.count())
	assert.NotContains(t, f.auditLog.actions(), audit.ActionLoggedIn)
}

/*
TestLogin_DistinctTokens verifies that concurrent logins get independent sessions.
*/
func TestLogin_DistinctTokens(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "s3cret-pass")

	first, err := f.service.Login(context.Background(), auth.LoginInput{Email: "alice@example.com", Password: "s3cret-pass"}, testMeta)
	require.NoError(t, err)
	second, err := f.service.Login(context.Background(), auth.LoginInput{Email: "alice@example.com", Password: "s3cret-pass"}, testMeta)
	require.NoError(t, err)

	assert.NotEqual(t, first.Token, second.Token)

	// Destroying one leaves the other valid.
	require.NoError(t, f.service.Logout(context.Background(), first.Token))
	_, err = f.sessions.Resolve(context.Background(), second.Token)
	assert.NoError(t, err)
}

/*
TestLogin_MissingFields verifies that blank credentials are rejected as
malformed input before any account lookup, distinct from the 401 used for
real credential failures.
*/
func TestLogin_MissingFields(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "s3cret-pass")

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"empty_email", "", "s3cret-pass"},
		{"empty_password", "alice@example.com", ""},
		{"both_empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Login(context.Background(), auth.LoginInput{
				Email:    tt.email,
				Password: tt.password,
			}, testMeta)

			require.Error(t, err)
			ae := apperr.As(err)
			require.NotNil(t, ae)
			assert.Equal(t, "VALIDATION_ERROR", ae.Code)
			assert.Equal(t, 400, ae.HTTPStatus)
		})
	}

	assert.Zero(t, f.sessions.count())
}

// # Logout

/*
TestLogout verifies session destruction and idempotency.
*/
func TestLogout(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "s3cret-pass")

	session, err := f.service.Login(context.Background(), auth.LoginInput{Email: "alice@example.com", Password: "s3cret-pass"}, testMeta)
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(context.Background(), session.Token))

	// The destroyed token no longer resolves.
	_, err = f.sessions.Resolve(context.Background(), session.Token)
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)

	// Logging out again is a success, not an error.
	assert.NoError(t, f.service.Logout(context.Background(), session.Token))
}

// # Change Password

/*
TestChangePassword_Success verifies the full credential rotation flow.
*/
func TestChangePassword_Success(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "alice", "alice@example.com", "old-password")

	err := f.service.ChangePassword(context.Background(), user.ID, "old-password", "new-password-1", testMeta)
	require.NoError(t, err)

	// Old credential is dead, new one works.
	_, err = f.service.Login(context.Background(), auth.LoginInput{Email: "alice@example.com", Password: "old-password"}, testMeta)
	assert.Error(t, err)
	_, err = f.service.Login(context.Background(), auth.LoginInput{Email: "alice@example.com", Password: "new-password-1"}, testMeta)
	assert.NoError(t, err)

	assert.Contains(t, f.auditLog.actions(), audit.ActionPasswordChanged)
}

/*
TestChangePassword_Failures covers rejected rotations; none may mutate the hash.
*/
func TestChangePassword_Failures(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "alice", "alice@example.com", "old-password")

	tests := []struct {
		name     string
		current  string
		next     string
		wantCode string
	}{
		{"wrong_current", "not-the-password", "new-password-1", "UNAUTHORIZED"},
		{"too_short", "old-password", "short", "VALIDATION_ERROR"},
		{"same_as_current", "old-password", "old-password", "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.service.ChangePassword(context.Background(), user.ID, tt.current, tt.next, testMeta)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperr.As(err).Code)

			// The original credential still works.
			_, err = f.service.Login(context.Background(), auth.LoginInput{Email: "alice@example.com", Password: "old-password"}, testMeta)
			assert.NoError(t, err)
		})
	}
}

// # Current User

/*
TestCurrentUser_RoundTrip verifies that the identity a login establishes
resolves back to the very same account, and that the serialized user exposes
no password material.
*/
func TestCurrentUser_RoundTrip(t *testing.T) {
	f := newFixture(t)
	registered := f.register(t, "alice", "alice@example.com", "s3cret-pass")

	session, err := f.service.Login(context.Background(), auth.LoginInput{
		Email:    "alice@example.com",
		Password: "s3cret-pass",
	}, testMeta)
	require.NoError(t, err)

	current, err := f.service.CurrentUser(context.Background(), &sec.Identity{
		UserID:       registered.ID,
		SessionToken: session.Token,
	})
	require.NoError(t, err)

	assert.Equal(t, registered.ID, current.ID)
	assert.Equal(t, "alice", current.Username)
	assert.Equal(t, "alice@example.com", current.Email)

	// The JSON the API would emit must carry no trace of the credential.
	serialized, err := json.Marshal(current)
	require.NoError(t, err)
	assert.NotContains(t, string(serialized), current.PasswordHash)
	assert.NotContains(t, strings.ToLower(string(serialized)), "password")
	assert.NotContains(t, string(serialized), "$2a$")
}

/*
TestCurrentUser_OrphanedSession verifies that a session whose account is gone
is destroyed and reported as NotFound.
*/
func TestCurrentUser_OrphanedSession(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "alice", "alice@example.com", "s3cret-pass")

	session, err := f.service.Login(context.Background(), auth.LoginInput{Email: "alice@example.com", Password: "s3cret-pass"}, testMeta)
	require.NoError(t, err)

	// Simulate the account disappearing out from under the session.
	f.users.delete(user.ID)

	_, err = f.service.CurrentUser(context.Background(), &sec.Identity{
		UserID:       user.ID,
		SessionToken: session.Token,
	})
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", apperr.As(err).Code)

	// The orphaned session was cleaned up.
	_, err = f.sessions.Resolve(context.Background(), session.Token)
	assert.Error(t, err)
}
