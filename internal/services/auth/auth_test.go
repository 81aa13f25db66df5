// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/aura/internal/models"
	"codeberg.org/oliverandrich/aura/internal/repository"
	"codeberg.org/oliverandrich/aura/internal/services/auth"
	"codeberg.org/oliverandrich/aura/internal/services/token"
	"codeberg.org/oliverandrich/aura/internal/services/verification"
	"codeberg.org/oliverandrich/aura/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const strongPassword = "Secret123"

type sentMail struct {
	To    string
	Name  string
	Token string
}

type fakeMailer struct {
	mu            sync.Mutex
	fail          error
	verifications []sentMail
	resets        []sentMail
}

func (m *fakeMailer) SendVerification(_ context.Context, to, name, tok string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.verifications = append(m.verifications, sentMail{To: to, Name: name, Token: tok})
	return nil
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, to, name, tok string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.resets = append(m.resets, sentMail{To: to, Name: name, Token: tok})
	return nil
}

type env struct {
	svc    *auth.Service
	repo   *repository.Repository
	signer *token.Signer
	store  *verification.Store
	mailer *fakeMailer
}

func newEnv(t *testing.T, opts ...auth.Option) *env {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	signer, err := token.NewSigner(token.Config{Secret: "test-secret", Issuer: "aura"})
	require.NoError(t, err)
	store := verification.NewStore(repo)
	mailer := &fakeMailer{}
	svc := auth.NewService(repo, signer, store, mailer, auth.NewBcryptHasher(auth.MinBcryptCost), opts...)
	return &env{svc: svc, repo: repo, signer: signer, store: store, mailer: mailer}
}

func (e *env) register(t *testing.T, email string) *auth.Session {
	t.Helper()
	session, err := e.svc.Register(context.Background(), auth.RegisterParams{Email: email, Password: strongPassword})
	require.NoError(t, err)
	return session
}

func TestRegister(t *testing.T) {
	e := newEnv(t)

	session, err := e.svc.Register(context.Background(), auth.RegisterParams{
		Email:    "  lan@example.com ",
		Password: strongPassword,
		FullName: " Nguyen Thi Lan ",
	})

	require.NoError(t, err)
	assert.Equal(t, "lan@example.com", session.Account.Email)
	assert.Equal(t, "Nguyen Thi Lan", session.Account.FullName)
	assert.False(t, session.Account.EmailVerified)
	assert.Equal(t, []models.Role{models.RolePatient}, session.Roles)
	assert.NotEqual(t, strongPassword, session.Account.PasswordHash)

	claims, err := e.signer.VerifyKind(session.Tokens.AccessToken, token.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, session.Account.ID, claims.UserID)
	assert.Equal(t, "lan@example.com", claims.Email)

	_, err = e.signer.VerifyKind(session.Tokens.RefreshToken, token.KindRefresh)
	assert.NoError(t, err)

	roles, err := e.repo.GetAccountRoles(context.Background(), session.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.Role{models.RolePatient}, roles)

	assert.Empty(t, e.mailer.verifications, "register does not send mail")
}

func TestRegister_DefaultFullName(t *testing.T) {
	e := newEnv(t)

	session := e.register(t, "minh.tran@example.com")

	assert.Equal(t, "minh.tran", session.Account.FullName)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	e := newEnv(t)
	e.register(t, "a@example.com")

	_, err := e.svc.Register(context.Background(), auth.RegisterParams{Email: "a@example.com", Password: strongPassword})

	assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
}

func TestRegister_ConcurrentDuplicates(t *testing.T) {
	e := newEnv(t)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, dups int
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.svc.Register(context.Background(), auth.RegisterParams{Email: "race@example.com", Password: strongPassword})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, auth.ErrDuplicateEmail):
				dups++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 3, dups)
}

func TestRegister_Validation(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name   string
		params auth.RegisterParams
	}{
		{"invalid email", auth.RegisterParams{Email: "nope", Password: strongPassword}},
		{"weak password", auth.RegisterParams{Email: "a@example.com", Password: "password"}},
		{"short full name", auth.RegisterParams{Email: "a@example.com", Password: strongPassword, FullName: "X"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Register(context.Background(), tt.params)
			assert.ErrorIs(t, err, auth.ErrValidation)
		})
	}

	count, err := e.repo.CountAccounts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestLogin(t *testing.T) {
	e := newEnv(t)
	registered := e.register(t, "a@example.com")

	session, err := e.svc.Login(context.Background(), " a@example.com ", strongPassword)

	require.NoError(t, err)
	assert.Equal(t, registered.Account.ID, session.Account.ID)
	assert.Equal(t, []models.Role{models.RolePatient}, session.Roles)
	assert.NotEmpty(t, session.Tokens.AccessToken)
	assert.NotEmpty(t, session.Tokens.RefreshToken)
}

func TestLogin_DefaultsToPatientRole(t *testing.T) {
	e := newEnv(t)
	testutil.NewTestAccount(t, e.repo, "legacy@example.com")

	session, err := e.svc.Login(context.Background(), "legacy@example.com", testutil.TestPassword)

	require.NoError(t, err)
	assert.Equal(t, []models.Role{models.RolePatient}, session.Roles)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	e := newEnv(t)
	account := e.register(t, "a@example.com").Account
	inactive := e.register(t, "b@example.com").Account
	_, err := e.repo.SetAccountActive(context.Background(), inactive.ID, false)
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", account.Email, "Wrong1234"},
		{"unknown email", "nobody@example.com", strongPassword},
		{"case differs", "A@example.com", strongPassword},
		{"inactive", inactive.Email, strongPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Login(context.Background(), tt.email, tt.password)
			assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		})
	}
}

func TestLogin_MissingFields(t *testing.T) {
	e := newEnv(t)

	_, err := e.svc.Login(context.Background(), "", strongPassword)
	assert.ErrorIs(t, err, auth.ErrValidation)

	_, err = e.svc.Login(context.Background(), "a@example.com", "")
	assert.ErrorIs(t, err, auth.ErrValidation)
}

func TestRefresh(t *testing.T) {
	e := newEnv(t)
	session := e.register(t, "a@example.com")

	result, err := e.svc.Refresh(context.Background(), session.Tokens.RefreshToken)

	require.NoError(t, err)
	assert.Equal(t, int64(86400), result.ExpiresIn)
	claims, err := e.svc.VerifyToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, session.Account.ID, claims.UserID)
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	e := newEnv(t)
	session := e.register(t, "a@example.com")

	_, err := e.svc.Refresh(context.Background(), session.Tokens.AccessToken)

	assert.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestRefresh_InvalidAndExpired(t *testing.T) {
	e := newEnv(t)

	_, err := e.svc.Refresh(context.Background(), "garbage")
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)

	past, err := token.NewSigner(token.Config{
		Secret: "test-secret",
		Clock:  func() time.Time { return time.Now().Add(-30 * 24 * time.Hour) },
	})
	require.NoError(t, err)
	pair, err := past.IssuePair("u1", "a@example.com")
	require.NoError(t, err)

	_, err = e.svc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestRefresh_AccountGone(t *testing.T) {
	e := newEnv(t)
	pair, err := e.signer.IssuePair("ghost", "ghost@example.com")
	require.NoError(t, err)

	_, err = e.svc.Refresh(context.Background(), pair.RefreshToken)

	assert.ErrorIs(t, err, auth.ErrAccountNotFound)
}

func TestVerifyToken(t *testing.T) {
	e := newEnv(t)
	session := e.register(t, "a@example.com")

	claims, err := e.svc.VerifyToken(session.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", claims.Email)

	_, err = e.svc.VerifyToken(session.Tokens.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)

	_, err = e.svc.VerifyToken("")
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestSendVerification(t *testing.T) {
	e := newEnv(t)
	account := e.register(t, "lan@example.com").Account

	require.NoError(t, e.svc.SendVerification(context.Background(), account.ID))

	require.Len(t, e.mailer.verifications, 1)
	sent := e.mailer.verifications[0]
	assert.Equal(t, "lan@example.com", sent.To)
	assert.Equal(t, "lan", sent.Name)
	assert.GreaterOrEqual(t, len(sent.Token), auth.MinTokenLength)

	tok, err := e.store.Lookup(context.Background(), sent.Token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, tok.AccountID)
	assert.Equal(t, models.PurposeEmailVerification, tok.Purpose)
}

func TestSendVerification_Errors(t *testing.T) {
	e := newEnv(t)
	account := e.register(t, "a@example.com").Account

	err := e.svc.SendVerification(context.Background(), "missing")
	assert.ErrorIs(t, err, auth.ErrAccountNotFound)

	e.mailer.fail = errors.New("smtp down")
	err = e.svc.SendVerification(context.Background(), account.ID)
	assert.ErrorIs(t, err, auth.ErrEmailDeliveryFailed)

	e.mailer.fail = nil
	_, err = e.repo.MarkEmailVerified(context.Background(), account.ID)
	require.NoError(t, err)
	err = e.svc.SendVerification(context.Background(), account.ID)
	assert.ErrorIs(t, err, auth.ErrAlreadyVerified)
}

func TestResendVerification(t *testing.T) {
	e := newEnv(t)
	e.register(t, "a@example.com")

	require.NoError(t, e.svc.ResendVerification(context.Background(), "a@example.com"))
	require.NoError(t, e.svc.ResendVerification(context.Background(), "a@example.com"))

	require.Len(t, e.mailer.verifications, 2)
	_, err := e.svc.VerifyEmail(context.Background(), e.mailer.verifications[0].Token)
	assert.ErrorIs(t, err, auth.ErrTokenAlreadyUsed, "resend invalidates the earlier link")
	_, err = e.svc.VerifyEmail(context.Background(), e.mailer.verifications[1].Token)
	assert.NoError(t, err)
}

func TestResendVerification_RevealsNothing(t *testing.T) {
	e := newEnv(t)
	verified := e.register(t, "v@example.com").Account
	_, err := e.repo.MarkEmailVerified(context.Background(), verified.ID)
	require.NoError(t, err)
	e.register(t, "u@example.com")

	assert.NoError(t, e.svc.ResendVerification(context.Background(), "nobody@example.com"))
	assert.NoError(t, e.svc.ResendVerification(context.Background(), "v@example.com"))
	assert.Empty(t, e.mailer.verifications)

	e.mailer.fail = errors.New("smtp down")
	assert.NoError(t, e.svc.ResendVerification(context.Background(), "u@example.com"))

	err = e.svc.ResendVerification(context.Background(), "not-an-email")
	assert.ErrorIs(t, err, auth.ErrValidation)
}

func TestVerifyEmail(t *testing.T) {
	e := newEnv(t)
	account := e.register(t, "a@example.com").Account
	require.NoError(t, e.svc.SendVerification(context.Background(), account.ID))
	tok := e.mailer.verifications[0].Token

	verified, err := e.svc.VerifyEmail(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, account.ID, verified.ID)
	assert.True(t, verified.EmailVerified)
	assert.NotNil(t, verified.EmailVerifiedAt)

	_, err = e.svc.VerifyEmail(context.Background(), tok)
	assert.ErrorIs(t, err, auth.ErrTokenAlreadyUsed)
}

func TestVerifyEmail_Errors(t *testing.T) {
	e := newEnv(t)
	account := e.register(t, "a@example.com").Account

	_, err := e.svc.VerifyEmail(context.Background(), "")
	assert.ErrorIs(t, err, auth.ErrValidation)

	_, err = e.svc.VerifyEmail(context.Background(), "short")
	assert.ErrorIs(t, err, auth.ErrValidation)

	_, err = e.svc.VerifyEmail(context.Background(), "this-token-was-never-issued")
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)

	past := verification.NewStore(e.repo, verification.WithClock(func() time.Time {
		return time.Now().Add(-48 * time.Hour)
	}))
	expired, err := past.Issue(context.Background(), account.ID, models.PurposeEmailVerification, 0)
	require.NoError(t, err)
	_, err = e.svc.VerifyEmail(context.Background(), expired)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)

	reset, err := e.store.Issue(context.Background(), account.ID, models.PurposePasswordReset, 0)
	require.NoError(t, err)
	_, err = e.svc.VerifyEmail(context.Background(), reset)
	assert.ErrorIs(t, err, auth.ErrTokenInvalid, "reset tokens cannot verify email")

	stored, err := e.repo.GetAccountByID(context.Background(), account.ID)
	require.NoError(t, err)
	assert.False(t, stored.EmailVerified)
}

func TestChangePassword(t *testing.T) {
	e := newEnv(t)
	account := e.register(t, "a@example.com").Account

	err := e.svc.ChangePassword(context.Background(), account.ID, auth.ChangePasswordParams{
		CurrentPassword: strongPassword,
		NewPassword:     "Changed456",
		ConfirmPassword: "Changed456",
	})
	require.NoError(t, err)

	_, err = e.svc.Login(context.Background(), "a@example.com", strongPassword)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = e.svc.Login(context.Background(), "a@example.com", "Changed456")
	assert.NoError(t, err)
}

func TestChangePassword_Errors(t *testing.T) {
	e := newEnv(t)
	account := e.register(t, "a@example.com").Account

	tests := []struct {
		name      string
		accountID string
		params    auth.ChangePasswordParams
		want      error
	}{
		{"wrong current", account.ID, auth.ChangePasswordParams{CurrentPassword: "Wrong1234", NewPassword: "Changed456", ConfirmPassword: "Changed456"}, auth.ErrInvalidCredentials},
		{"missing current", account.ID, auth.ChangePasswordParams{CurrentPassword: "", NewPassword: "Changed456", ConfirmPassword: "Changed456"}, auth.ErrValidation},
		{"mismatch", account.ID, auth.ChangePasswordParams{CurrentPassword: strongPassword, NewPassword: "Changed456", ConfirmPassword: "Changed457"}, auth.ErrValidation},
		{"weak", account.ID, auth.ChangePasswordParams{CurrentPassword: strongPassword, NewPassword: "weak", ConfirmPassword: "weak"}, auth.ErrValidation},
		{"unknown account", "missing", auth.ChangePasswordParams{CurrentPassword: strongPassword, NewPassword: "Changed456", ConfirmPassword: "Changed456"}, auth.ErrAccountNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.svc.ChangePassword(context.Background(), tt.accountID, tt.params)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := e.svc.Login(context.Background(), "a@example.com", strongPassword)
	assert.NoError(t, err, "failed changes keep the old password")
}

func TestForgotPassword(t *testing.T) {
	e := newEnv(t)
	account := e.register(t, "a@example.com").Account

	require.NoError(t, e.svc.ForgotPassword(context.Background(), "a@example.com"))

	require.Len(t, e.mailer.resets, 1)
	tok, err := e.store.Lookup(context.Background(), e.mailer.resets[0].Token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, tok.AccountID)
	assert.Equal(t, models.PurposePasswordReset, tok.Purpose)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.ExpiresAt, 5*time.Second)
}

func TestForgotPassword_RevealsNothing(t *testing.T) {
	e := newEnv(t)
	e.register(t, "a@example.com")

	assert.NoError(t, e.svc.ForgotPassword(context.Background(), "nobody@example.com"))
	assert.Empty(t, e.mailer.resets)

	e.mailer.fail = errors.New("smtp down")
	assert.NoError(t, e.svc.ForgotPassword(context.Background(), "a@example.com"))

	assert.ErrorIs(t, e.svc.ForgotPassword(context.Background(), "bad"), auth.ErrValidation)
}

func TestResetPassword_WithoutToken(t *testing.T) {
	e := newEnv(t)
	account := e.register(t, "a@example.com").Account
	require.NoError(t, e.svc.ForgotPassword(context.Background(), "a@example.com"))
	outstanding := e.mailer.resets[0].Token

	err := e.svc.ResetPassword(context.Background(), auth.ResetPasswordParams{
		Email:           "a@example.com",
		NewPassword:     "Changed456",
		ConfirmPassword: "Changed456",
	})
	require.NoError(t, err)

	_, err = e.svc.Login(context.Background(), "a@example.com", "Changed456")
	assert.NoError(t, err)

	tok, err := e.store.Lookup(context.Background(), outstanding)
	require.NoError(t, err)
	assert.True(t, tok.Used, "outstanding reset links are invalidated")
	assert.Equal(t, account.ID, tok.AccountID)
}

func TestResetPassword_WithoutToken_UnknownEmail(t *testing.T) {
	e := newEnv(t)

	err := e.svc.ResetPassword(context.Background(), auth.ResetPasswordParams{
		Email:           "nobody@example.com",
		NewPassword:     "Changed456",
		ConfirmPassword: "Changed456",
	})

	assert.NoError(t, err)
}

func TestResetPassword_Validation(t *testing.T) {
	e := newEnv(t)

	err := e.svc.ResetPassword(context.Background(), auth.ResetPasswordParams{
		Email:           "a@example.com",
		NewPassword:     "Changed456",
		ConfirmPassword: "Different456",
	})
	assert.ErrorIs(t, err, auth.ErrValidation)

	err = e.svc.ResetPassword(context.Background(), auth.ResetPasswordParams{
		Email:           "invalid",
		NewPassword:     "Changed456",
		ConfirmPassword: "Changed456",
	})
	assert.ErrorIs(t, err, auth.ErrValidation)
}

func TestResetPassword_WithToken(t *testing.T) {
	e := newEnv(t, auth.WithResetRequiresToken(true))
	assert.True(t, e.svc.ResetRequiresToken())
	e.register(t, "a@example.com")
	require.NoError(t, e.svc.ForgotPassword(context.Background(), "a@example.com"))
	tok := e.mailer.resets[0].Token

	params := auth.ResetPasswordParams{
		Email:           "a@example.com",
		NewPassword:     "Changed456",
		ConfirmPassword: "Changed456",
	}

	err := e.svc.ResetPassword(context.Background(), params)
	assert.ErrorIs(t, err, auth.ErrValidation, "token is required")

	params.Token = tok
	require.NoError(t, e.svc.ResetPassword(context.Background(), params))

	_, err = e.svc.Login(context.Background(), "a@example.com", "Changed456")
	assert.NoError(t, err)

	err = e.svc.ResetPassword(context.Background(), params)
	assert.ErrorIs(t, err, auth.ErrTokenAlreadyUsed)
}

func TestResetPassword_WithToken_OtherAccount(t *testing.T) {
	e := newEnv(t, auth.WithResetRequiresToken(true))
	e.register(t, "a@example.com")
	e.register(t, "b@example.com")
	require.NoError(t, e.svc.ForgotPassword(context.Background(), "b@example.com"))
	tok := e.mailer.resets[0].Token

	err := e.svc.ResetPassword(context.Background(), auth.ResetPasswordParams{
		Email:           "a@example.com",
		Token:           tok,
		NewPassword:     "Changed456",
		ConfirmPassword: "Changed456",
	})
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)

	stored, err := e.store.Lookup(context.Background(), tok)
	require.NoError(t, err)
	assert.False(t, stored.Used, "a mismatched token is not burned")

	err = e.svc.ResetPassword(context.Background(), auth.ResetPasswordParams{
		Email:           "nobody@example.com",
		Token:           tok,
		NewPassword:     "Changed456",
		ConfirmPassword: "Changed456",
	})
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestResetPassword_WithToken_Expired(t *testing.T) {
	e := newEnv(t, auth.WithResetRequiresToken(true))
	account := e.register(t, "a@example.com").Account
	past := verification.NewStore(e.repo, verification.WithClock(func() time.Time {
		return time.Now().Add(-2 * time.Hour)
	}))
	tok, err := past.Issue(context.Background(), account.ID, models.PurposePasswordReset, 0)
	require.NoError(t, err)

	err = e.svc.ResetPassword(context.Background(), auth.ResetPasswordParams{
		Email:           "a@example.com",
		Token:           tok,
		NewPassword:     "Changed456",
		ConfirmPassword: "Changed456",
	})

	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestEnsureDemoAccounts(t *testing.T) {
	e := newEnv(t)
	demo := auth.DefaultDemoAccounts("Demo12345")

	created, err := e.svc.EnsureDemoAccounts(context.Background(), demo)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	created, err = e.svc.EnsureDemoAccounts(context.Background(), demo)
	require.NoError(t, err)
	assert.Zero(t, created)

	session, err := e.svc.Login(context.Background(), "doctor@example.com", "Demo12345")
	require.NoError(t, err)
	assert.Equal(t, []models.Role{models.RoleDoctor}, session.Roles)
	assert.True(t, session.Account.EmailVerified)

	session, err = e.svc.Login(context.Background(), "patient@example.com", "Demo12345")
	require.NoError(t, err)
	assert.Equal(t, []models.Role{models.RolePatient}, session.Roles)
}

func TestEnsureDemoAccounts_WeakPassword(t *testing.T) {
	e := newEnv(t)

	_, err := e.svc.EnsureDemoAccounts(context.Background(), auth.DefaultDemoAccounts("demo"))

	assert.ErrorIs(t, err, auth.ErrValidation)
}

func TestLogout(t *testing.T) {
	e := newEnv(t)

	assert.NotPanics(t, func() { e.svc.Logout(context.Background(), "u1") })
}
