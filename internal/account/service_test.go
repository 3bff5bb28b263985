// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Skylog Contributors

package account_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylog/skylog/internal/account"
)

// fakeDirectory is an in-memory CredentialDirectory.
type fakeDirectory struct {
	accounts  map[int64]*account.Account
	nextID    int64
	insertErr error
	updateErr error
	lookupErr error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{accounts: make(map[int64]*account.Account), nextID: 1}
}

func (f *fakeDirectory) FindByUsername(_ context.Context, username string) (*account.Account, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	for _, a := range f.accounts {
		if a.Username == username {
			copied := *a
			return &copied, nil
		}
	}
	return nil, account.ErrNotFound
}

func (f *fakeDirectory) FindByEmail(_ context.Context, email string) (*account.Account, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	for _, a := range f.accounts {
		if a.Email == email {
			copied := *a
			return &copied, nil
		}
	}
	return nil, account.ErrNotFound
}

func (f *fakeDirectory) FindByID(_ context.Context, id int64) (*account.Account, error) {
	a, ok := f.accounts[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (f *fakeDirectory) Insert(_ context.Context, acct *account.Account) (*account.Account, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	for _, a := range f.accounts {
		if a.Username == acct.Username {
			return nil, account.ErrUsernameTaken
		}
		if a.Email == acct.Email {
			return nil, account.ErrEmailTaken
		}
	}
	copied := *acct
	copied.ID = f.nextID
	f.nextID++
	f.accounts[copied.ID] = &copied
	result := copied
	return &result, nil
}

func (f *fakeDirectory) UpdatePasswordHash(_ context.Context, id int64, passwordHash string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	a, ok := f.accounts[id]
	if !ok {
		return account.ErrNotFound
	}
	a.PasswordHash = passwordHash
	a.UpdatedAt = time.Now()
	return nil
}

// stubHasher avoids argon2 cost in orchestration tests. Hash prefixes the
// password; Verify checks the prefix and applies the legacy rule.
type stubHasher struct {
	hashErr error
}

func (s *stubHasher) Hash(password string) (string, error) {
	if s.hashErr != nil {
		return "", s.hashErr
	}
	return "hashed:" + password, nil
}

func (s *stubHasher) Verify(password, hash string) bool {
	if account.IsLegacyHash(hash) {
		return false
	}
	return hash == "hashed:"+password
}

// scoreByLength is a deterministic scorer: passwords shorter than 12 runes
// score 1, everything else 4.
type scoreByLength struct{}

func (scoreByLength) Score(password string, _ []string) (account.ScoreResult, error) {
	if len(password) < 12 {
		return account.ScoreResult{Score: 1}, nil
	}
	return account.ScoreResult{Score: 4}, nil
}

// newTestService assembles a service over in-memory fakes.
func newTestService(t *testing.T, dir *fakeDirectory, repo *fakeResetRepo) *account.Service {
	t.Helper()

	eval, err := account.NewStrengthEvaluator(scoreByLength{}, account.MinStrengthScore)
	require.NoError(t, err)
	resets, err := account.NewResetTokenStore(repo, account.DefaultResetTokenLifetime)
	require.NoError(t, err)
	svc, err := account.NewService(dir, &stubHasher{}, eval, resets)
	require.NoError(t, err)
	return svc
}

func TestNewService_NilDependencies(t *testing.T) {
	dir := newFakeDirectory()
	eval, err := account.NewStrengthEvaluator(scoreByLength{}, account.MinStrengthScore)
	require.NoError(t, err)
	resets, err := account.NewResetTokenStore(newFakeResetRepo(), account.DefaultResetTokenLifetime)
	require.NoError(t, err)

	tests := []struct {
		name string
		call func() (*account.Service, error)
	}{
		{"nil directory", func() (*account.Service, error) {
			return account.NewService(nil, &stubHasher{}, eval, resets)
		}},
		{"nil hasher", func() (*account.Service, error) {
			return account.NewService(dir, nil, eval, resets)
		}},
		{"nil evaluator", func() (*account.Service, error) {
			return account.NewService(dir, &stubHasher{}, nil, resets)
		}},
		{"nil reset store", func() (*account.Service, error) {
			return account.NewService(dir, &stubHasher{}, eval, nil)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := tt.call()
			require.Error(t, err)
			assert.Nil(t, svc)
		})
	}
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("creates account with hashed password", func(t *testing.T) {
		dir := newFakeDirectory()
		svc := newTestService(t, dir, newFakeResetRepo())

		result, err := svc.Register(ctx, "alice", "Tr0ub4dor&3xyz!", "a@x.com")
		require.NoError(t, err)
		require.Equal(t, account.RegisterSuccess, result.Status)
		require.NotNil(t, result.Account)
		assert.NotZero(t, result.Account.ID)
		assert.NotEqual(t, "Tr0ub4dor&3xyz!", result.Account.PasswordHash)
		assert.False(t, account.IsLegacyHash(result.Account.PasswordHash))
	})

	t.Run("weak password is rejected and nothing persisted", func(t *testing.T) {
		dir := newFakeDirectory()
		svc := newTestService(t, dir, newFakeResetRepo())

		result, err := svc.Register(ctx, "alice", "weak123?", "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, account.RegisterWeakPassword, result.Status)
		require.NotNil(t, result.Validation)
		assert.False(t, result.Validation.Valid)
		assert.Empty(t, dir.accounts)
	})

	t.Run("duplicate username reported before duplicate email", func(t *testing.T) {
		dir := newFakeDirectory()
		svc := newTestService(t, dir, newFakeResetRepo())

		first, err := svc.Register(ctx, "alice", "Tr0ub4dor&3xyz!", "a@x.com")
		require.NoError(t, err)
		require.Equal(t, account.RegisterSuccess, first.Status)

		// Same username AND same email: username-taken wins.
		result, err := svc.Register(ctx, "alice", "Other$tr0ng9!xx", "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, account.RegisterUsernameTaken, result.Status)
	})

	t.Run("duplicate email reported before weak password", func(t *testing.T) {
		dir := newFakeDirectory()
		svc := newTestService(t, dir, newFakeResetRepo())

		first, err := svc.Register(ctx, "alice", "Tr0ub4dor&3xyz!", "a@x.com")
		require.NoError(t, err)
		require.Equal(t, account.RegisterSuccess, first.Status)

		// Different username, same email, weak password: email-taken wins.
		result, err := svc.Register(ctx, "bob", "weak", "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, account.RegisterEmailTaken, result.Status)
	})

	t.Run("insert-time unique violation maps to taken result", func(t *testing.T) {
		// Simulates a concurrent registration landing between the
		// fast-path lookup and the insert.
		dir := newFakeDirectory()
		dir.insertErr = account.ErrUsernameTaken
		svc := newTestService(t, dir, newFakeResetRepo())

		result, err := svc.Register(ctx, "alice", "Tr0ub4dor&3xyz!", "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, account.RegisterUsernameTaken, result.Status)

		dir.insertErr = account.ErrEmailTaken
		result, err = svc.Register(ctx, "alice", "Tr0ub4dor&3xyz!", "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, account.RegisterEmailTaken, result.Status)
	})

	t.Run("lookup failure surfaces as error", func(t *testing.T) {
		dir := newFakeDirectory()
		dir.lookupErr = errors.New("connection refused")
		svc := newTestService(t, dir, newFakeResetRepo())

		_, err := svc.Register(ctx, "alice", "Tr0ub4dor&3xyz!", "a@x.com")
		assert.Error(t, err)
	})
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()

	register := func(t *testing.T) (*account.Service, *fakeDirectory) {
		t.Helper()
		dir := newFakeDirectory()
		svc := newTestService(t, dir, newFakeResetRepo())
		result, err := svc.Register(ctx, "alice", "Tr0ub4dor&3xyz!", "a@x.com")
		require.NoError(t, err)
		require.Equal(t, account.RegisterSuccess, result.Status)
		return svc, dir
	}

	t.Run("login by username succeeds with correct password", func(t *testing.T) {
		svc, _ := register(t)

		acct, err := svc.LoginByUsername(ctx, "alice", "Tr0ub4dor&3xyz!")
		require.NoError(t, err)
		assert.Equal(t, "alice", acct.Username)

		session := account.NewSession(acct)
		assert.Equal(t, acct.ID, session.AccountID)
		assert.Equal(t, "alice", session.Username)
	})

	t.Run("login by email succeeds with correct password", func(t *testing.T) {
		svc, _ := register(t)

		acct, err := svc.LoginByEmail(ctx, "a@x.com", "Tr0ub4dor&3xyz!")
		require.NoError(t, err)
		assert.Equal(t, "alice", acct.Username)
	})

	t.Run("wrong password and unknown account are indistinguishable", func(t *testing.T) {
		svc, _ := register(t)

		_, wrongPwErr := svc.LoginByUsername(ctx, "alice", "incorrect-pass")
		_, unknownErr := svc.LoginByUsername(ctx, "mallory", "incorrect-pass")

		assert.ErrorIs(t, wrongPwErr, account.ErrInvalidCredentials)
		assert.ErrorIs(t, unknownErr, account.ErrInvalidCredentials)
		assert.Equal(t, wrongPwErr.Error(), unknownErr.Error())
	})

	t.Run("legacy hash never verifies", func(t *testing.T) {
		svc, dir := register(t)

		// Simulate an account carried over from the deprecated scheme.
		for _, a := range dir.accounts {
			a.PasswordHash = "123456789"
		}

		_, err := svc.LoginByUsername(ctx, "alice", "Tr0ub4dor&3xyz!")
		assert.ErrorIs(t, err, account.ErrInvalidCredentials)
	})

	t.Run("lookup failure surfaces as error, not invalid credentials", func(t *testing.T) {
		svc, dir := register(t)
		dir.lookupErr = errors.New("connection refused")

		_, err := svc.LoginByUsername(ctx, "alice", "Tr0ub4dor&3xyz!")
		require.Error(t, err)
		assert.NotErrorIs(t, err, account.ErrInvalidCredentials)
	})
}

func TestService_RequestPasswordReset(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a token for a known email", func(t *testing.T) {
		dir := newFakeDirectory()
		repo := newFakeResetRepo()
		svc := newTestService(t, dir, repo)
		_, err := svc.Register(ctx, "alice", "Tr0ub4dor&3xyz!", "a@x.com")
		require.NoError(t, err)

		token, err := svc.RequestPasswordReset(ctx, "a@x.com")
		require.NoError(t, err)
		require.NotEmpty(t, token)
		assert.Equal(t, "a@x.com", repo.rows[token].Email)
	})

	t.Run("unknown email yields empty token, not an error", func(t *testing.T) {
		dir := newFakeDirectory()
		repo := newFakeResetRepo()
		svc := newTestService(t, dir, repo)

		token, err := svc.RequestPasswordReset(ctx, "nobody@x.com")
		require.NoError(t, err)
		assert.Empty(t, token)
		assert.Empty(t, repo.rows)
	})
}

func TestService_ResetPassword(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*account.Service, *fakeDirectory, *fakeResetRepo, string) {
		t.Helper()
		dir := newFakeDirectory()
		repo := newFakeResetRepo()
		svc := newTestService(t, dir, repo)
		_, err := svc.Register(ctx, "alice", "Tr0ub4dor&3xyz!", "a@x.com")
		require.NoError(t, err)
		token, err := svc.RequestPasswordReset(ctx, "a@x.com")
		require.NoError(t, err)
		return svc, dir, repo, token
	}

	t.Run("changes password and consumes token", func(t *testing.T) {
		svc, _, repo, token := setup(t)

		result, err := svc.ResetPassword(ctx, token, "New$tr0ngPass9!")
		require.NoError(t, err)
		assert.Equal(t, account.ResetSuccess, result.Status)
		assert.True(t, repo.rows[token].Used)

		// Old password no longer works, new one does.
		_, err = svc.LoginByUsername(ctx, "alice", "Tr0ub4dor&3xyz!")
		assert.ErrorIs(t, err, account.ErrInvalidCredentials)
		_, err = svc.LoginByUsername(ctx, "alice", "New$tr0ngPass9!")
		assert.NoError(t, err)
	})

	t.Run("consumed token is rejected on reuse", func(t *testing.T) {
		svc, _, _, token := setup(t)

		first, err := svc.ResetPassword(ctx, token, "New$tr0ngPass9!")
		require.NoError(t, err)
		require.Equal(t, account.ResetSuccess, first.Status)

		second, err := svc.ResetPassword(ctx, token, "Another$trong1!")
		require.NoError(t, err)
		assert.Equal(t, account.ResetInvalidToken, second.Status)
	})

	t.Run("unknown token is invalid", func(t *testing.T) {
		svc, _, _, _ := setup(t)

		result, err := svc.ResetPassword(ctx, "no-such-token", "New$tr0ngPass9!")
		require.NoError(t, err)
		assert.Equal(t, account.ResetInvalidToken, result.Status)
	})

	t.Run("expired token is invalid even when unused", func(t *testing.T) {
		svc, _, repo, token := setup(t)
		repo.rows[token].ExpiresAt = time.Now().Add(-25 * time.Hour)

		result, err := svc.ResetPassword(ctx, token, "New$tr0ngPass9!")
		require.NoError(t, err)
		assert.Equal(t, account.ResetInvalidToken, result.Status)
	})

	t.Run("weak new password is rejected and token not burned", func(t *testing.T) {
		svc, dir, repo, token := setup(t)
		before := dirHash(t, dir, "alice")

		result, err := svc.ResetPassword(ctx, token, "weak")
		require.NoError(t, err)
		assert.Equal(t, account.ResetWeakPassword, result.Status)
		require.NotNil(t, result.Validation)

		assert.Equal(t, before, dirHash(t, dir, "alice"))
		assert.False(t, repo.rows[token].Used)
	})

	t.Run("persistence failure reports failure and token stays valid", func(t *testing.T) {
		svc, dir, repo, token := setup(t)
		dir.updateErr = errors.New("write failed")

		result, err := svc.ResetPassword(ctx, token, "New$tr0ngPass9!")
		require.Error(t, err)
		assert.Equal(t, account.ResetFailed, result.Status)
		assert.False(t, repo.rows[token].Used)

		// Retry succeeds once the store recovers.
		dir.updateErr = nil
		result, err = svc.ResetPassword(ctx, token, "New$tr0ngPass9!")
		require.NoError(t, err)
		assert.Equal(t, account.ResetSuccess, result.Status)
	})

	t.Run("account vanished after validation maps to invalid token", func(t *testing.T) {
		svc, dir, _, token := setup(t)
		dir.accounts = map[int64]*account.Account{}

		result, err := svc.ResetPassword(ctx, token, "New$tr0ngPass9!")
		require.NoError(t, err)
		assert.Equal(t, account.ResetInvalidToken, result.Status)
	})

	t.Run("double-submit loses the mark-used race and reports failure", func(t *testing.T) {
		svc, _, repo, token := setup(t)

		// The other submission consumed the token after our validation.
		repo.markUsedHook = func() {
			repo.rows[token].Used = true
		}

		result, err := svc.ResetPassword(ctx, token, "New$tr0ngPass9!")
		require.NoError(t, err)
		assert.Equal(t, account.ResetFailed, result.Status)
	})
}

// dirHash fetches the stored hash for a username from the fake directory.
func dirHash(t *testing.T, dir *fakeDirectory, username string) string {
	t.Helper()
	for _, a := range dir.accounts {
		if a.Username == username {
			return a.PasswordHash
		}
	}
	t.Fatalf("no account %q", username)
	return ""
}

// Round-trip through the real hasher to pin the register/login contract end
// to end with argon2id.
func TestService_RegisterLoginRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("argon2id is slow")
	}

	ctx := context.Background()
	dir := newFakeDirectory()
	eval, err := account.NewStrengthEvaluator(scoreByLength{}, account.MinStrengthScore)
	require.NoError(t, err)
	resets, err := account.NewResetTokenStore(newFakeResetRepo(), account.DefaultResetTokenLifetime)
	require.NoError(t, err)
	svc, err := account.NewService(dir, account.NewArgon2idHasher(), eval, resets)
	require.NoError(t, err)

	result, err := svc.Register(ctx, "alice", "Tr0ub4dor&3xyz!", "a@x.com")
	require.NoError(t, err)
	require.Equal(t, account.RegisterSuccess, result.Status)
	assert.True(t, strings.HasPrefix(result.Account.PasswordHash, "$argon2id$"))

	_, err = svc.LoginByUsername(ctx, "alice", "Tr0ub4dor&3xyz!")
	assert.NoError(t, err)
	_, err = svc.LoginByUsername(ctx, "alice", "not-the-password")
	assert.ErrorIs(t, err, account.ErrInvalidCredentials)
}
