// Copyright (c) 2026 Gatekeep. All rights reserved.
// Author: minh.vo.sg@gmail.com

package profile_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvo/gatekeep/internal/platform/apperr"
	"github.com/minhvo/gatekeep/internal/platform/dberr"
	"github.com/minhvo/gatekeep/internal/platform/upload"
	"github.com/minhvo/gatekeep/internal/users/audit"
	"github.com/minhvo/gatekeep/internal/users/auth"
	"github.com/minhvo/gatekeep/internal/users/profile"
	"github.com/minhvo/gatekeep/pkg/pagination"
)

// # In-Memory Fakes

// memoryUsers is a minimal [auth.UserRepository] with switchable failures.
type memoryUsers struct {
	mu               sync.Mutex
	users            map[string]*auth.User
	failAvatarUpdate bool
}

func newMemoryUsers(seed ...*auth.User) *memoryUsers {
	repo := &memoryUsers{users: make(map[string]*auth.User)}
	for _, user := range seed {
		clone := *user
		repo.users[user.ID] = &clone
	}
	return repo
}

func (repo *memoryUsers) FindByID(_ context.Context, id string) (*auth.User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if user, ok := repo.users[id]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, dberr.ErrNotFound
}

func (repo *memoryUsers) FindByEmail(_ context.Context, email string) (*auth.User, error) {
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

func (repo *memoryUsers) FindByUsername(_ context.Context, username string) (*auth.User, error) {
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

func (repo *memoryUsers) Create(_ context.Context, user *auth.User) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	clone := *user
	repo.users[user.ID] = &clone
	return nil
}

func (repo *memoryUsers) UpdateEmail(_ context.Context, id, email string) error {
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

func (repo *memoryUsers) UpdatePassword(_ context.Context, id, passwordHash string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	user, ok := repo.users[id]
	if !ok {
		return dberr.ErrNotFound
	}
	user.PasswordHash = passwordHash
	return nil
}

func (repo *memoryUsers) UpdateAvatarPath(_ context.Context, id, avatarURL string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if repo.failAvatarUpdate {
		return errors.New("storage unavailable")
	}
	user, ok := repo.users[id]
	if !ok {
		return dberr.ErrNotFound
	}
	user.AvatarURL = avatarURL
	return nil
}

// memoryAudit implements [audit.Recorder] and [audit.Reader].
type memoryAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (log *memoryAudit) Record(_ context.Context, entry *audit.Entry) error {
	log.mu.Lock()
	defer log.mu.Unlock()
	log.entries = append(log.entries, *entry)
	return nil
}

func (log *memoryAudit) ListByUser(_ context.Context, userID string, limit, offset int) ([]audit.Entry, int, error) {
	log.mu.Lock()
	defer log.mu.Unlock()

	var owned []audit.Entry
	for _, entry := range log.entries {
		if entry.UserID == userID {
			owned = append(owned, entry)
		}
	}

	total := len(owned)
	if offset >= total {
		return nil, total, nil
	}
	end := min(offset+limit, total)
	return owned[offset:end], total, nil
}

// # Test Fixture

type fixture struct {
	service  *profile.Service
	users    *memoryUsers
	auditLog *memoryAudit
	gate     *upload.Gate
}

func newFixture(t *testing.T, seed ...*auth.User) *fixture {
	t.Helper()
	users := newMemoryUsers(seed...)
	auditLog := &memoryAudit{}
	gate := upload.NewGate(t.TempDir(), "/uploads/avatars", 1024)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &fixture{
		service:  profile.NewService(users, auditLog, auditLog, gate, logger),
		users:    users,
		auditLog: auditLog,
		gate:     gate,
	}
}

func seedUser() *auth.User {
	return &auth.User{
		ID:           "user-1",
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "$2a$10$irrelevant",
	}
}

var testMeta = audit.RequestMeta{IPAddress: "203.0.113.7", UserAgent: "test-agent"}

func pngBytes() []byte {
	header := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	return append(header, bytes.Repeat([]byte{0x00}, 64)...)
}

// # Email Change

/*
TestChangeEmail_Success verifies canonicalization, persistence, and auditing.
*/
func TestChangeEmail_Success(t *testing.T) {
	f := newFixture(t, seedUser())

	user, err := f.service.ChangeEmail(context.Background(), "user-1", "  New@Example.COM ", testMeta)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", user.Email)

	persisted, err := f.users.FindByID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", persisted.Email)

	require.Len(t, f.auditLog.entries, 1)
	assert.Equal(t, audit.ActionEmailChanged, f.auditLog.entries[0].Action)
}

/*
TestChangeEmail_SameAddress verifies the no-op path emits no audit entry.
*/
func TestChangeEmail_SameAddress(t *testing.T) {
	f := newFixture(t, seedUser())

	user, err := f.service.ChangeEmail(context.Background(), "user-1", "ALICE@example.com", testMeta)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Empty(t, f.auditLog.entries)
}

/*
TestChangeEmail_Conflict verifies that another account's address is rejected.
*/
func TestChangeEmail_Conflict(t *testing.T) {
	other := &auth.User{ID: "user-2", Username: "bob", Email: "bob@example.com"}
	f := newFixture(t, seedUser(), other)

	_, err := f.service.ChangeEmail(context.Background(), "user-1", "bob@example.com", testMeta)
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperr.As(err).Code)

	// The caller's address is unchanged.
	persisted, err := f.users.FindByID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", persisted.Email)
}

/*
TestChangeEmail_Invalid verifies address validation.
*/
func TestChangeEmail_Invalid(t *testing.T) {
	f := newFixture(t, seedUser())

	for _, bad := range []string{"", "not-an-email", "missing@"} {
		_, err := f.service.ChangeEmail(context.Background(), "user-1", bad, testMeta)
		require.Error(t, err, "input %q", bad)
		assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)
	}
}

// # Avatar Change

/*
TestChangeAvatar_Success verifies storage, URL persistence, and auditing.
*/
func TestChangeAvatar_Success(t *testing.T) {
	f := newFixture(t, seedUser())

	user, err := f.service.ChangeAvatar(context.Background(), "user-1", bytes.NewReader(pngBytes()), "selfie.png", "image/png", testMeta)
	require.NoError(t, err)

	assert.Regexp(t, `^/uploads/avatars/useruser-1_[0-9a-f]{16}\.png$`, user.AvatarURL)

	persisted, err := f.users.FindByID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, user.AvatarURL, persisted.AvatarURL)

	require.Len(t, f.auditLog.entries, 1)
	assert.Equal(t, audit.ActionAvatarChanged, f.auditLog.entries[0].Action)
}

/*
TestChangeAvatar_ReplacesPrevious verifies that the old file is removed once
the new one is in place.
*/
func TestChangeAvatar_ReplacesPrevious(t *testing.T) {
	f := newFixture(t, seedUser())

	first, err := f.service.ChangeAvatar(context.Background(), "user-1", bytes.NewReader(pngBytes()), "a.png", "", testMeta)
	require.NoError(t, err)

	entries, err := os.ReadDir(f.gate.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	firstName := entries[0].Name()

	second, err := f.service.ChangeAvatar(context.Background(), "user-1", bytes.NewReader(pngBytes()), "b.png", "", testMeta)
	require.NoError(t, err)
	assert.NotEqual(t, first.AvatarURL, second.AvatarURL)

	// Only the replacement survives on disk.
	entries, err = os.ReadDir(f.gate.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEqual(t, firstName, entries[0].Name())
}

/*
TestChangeAvatar_CompensatesOnStoreFailure verifies that a failed database
update deletes the freshly stored file.
*/
func TestChangeAvatar_CompensatesOnStoreFailure(t *testing.T) {
	f := newFixture(t, seedUser())
	f.users.failAvatarUpdate = true

	_, err := f.service.ChangeAvatar(context.Background(), "user-1", bytes.NewReader(pngBytes()), "a.png", "", testMeta)
	require.Error(t, err)

	// No orphaned file and no audit entry.
	entries, readErr := os.ReadDir(f.gate.Dir())
	require.NoError(t, readErr)
	assert.Empty(t, entries)
	assert.Empty(t, f.auditLog.entries)
}

/*
TestChangeAvatar_RejectsForgedContent verifies the gate decision propagates
and nothing is persisted.
*/
func TestChangeAvatar_RejectsForgedContent(t *testing.T) {
	f := newFixture(t, seedUser())

	payload := []byte("<html>not an image</html>")
	_, err := f.service.ChangeAvatar(context.Background(), "user-1", bytes.NewReader(payload), "image.png", "image/png", testMeta)
	require.Error(t, err)
	assert.Equal(t, "UNSUPPORTED_TYPE", apperr.As(err).Code)

	persisted, findErr := f.users.FindByID(context.Background(), "user-1")
	require.NoError(t, findErr)
	assert.Empty(t, persisted.AvatarURL)
}

// # Activity

/*
TestActivity verifies ordering metadata and pagination math.
*/
func TestActivity(t *testing.T) {
	f := newFixture(t, seedUser())

	for i := 0; i < 5; i++ {
		require.NoError(t, f.auditLog.Record(context.Background(), &audit.Entry{
			UserID: "user-1",
			Action: audit.ActionLoggedIn,
		}))
	}
	// Another user's entries must not leak into the page.
	require.NoError(t, f.auditLog.Record(context.Background(), &audit.Entry{
		UserID: "user-2",
		Action: audit.ActionRegistered,
	}))

	entries, meta, err := f.service.Activity(context.Background(), "user-1", pagination.Params{Page: 1, Limit: 2})
	require.NoError(t, err)

	assert.Len(t, entries, 2)
	assert.Equal(t, 5, meta.Total)
	assert.Equal(t, 3, meta.TotalPages)
	for _, entry := range entries {
		assert.Equal(t, "user-1", entry.UserID)
	}
}
