// Copyright (c) 2025 ysam020
//
// This file is part of hrms-sub000.
//
// hrms-sub000 is licensed under the GNU Affero General Public License v3.0
// (AGPL-3.0). See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package webauthn

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ysam020/hrms-sub000/pkg/storage"
	"github.com/ysam020/hrms-sub000/pkg/user"
)

const (
	testRPID   = "hrms.example.com"
	testOrigin = "https://hrms.example.com"
)

func validTestConfig() *Config {
	return &Config{
		RPID:          testRPID,
		RPDisplayName: "HRMS",
		RPOrigins:     []string{testOrigin},
	}
}

func newTestService(t *testing.T) (*Service, user.Store, *MemoryChallengeStore) {
	t.Helper()

	users, err := user.NewFileStore(storage.NewMemory())
	require.NoError(t, err)
	challenges := NewMemoryChallengeStore()
	t.Cleanup(func() { _ = challenges.Close() })

	svc, err := NewService(ServiceParams{
		Config:     validTestConfig(),
		Users:      users,
		Challenges: challenges,
	})
	require.NoError(t, err)
	return svc, users, challenges
}

// registerCredential runs a full registration ceremony for the username and
// returns the authenticator holding the credential.
func registerCredential(t *testing.T, svc *Service, username string) *MockAuthenticator {
	t.Helper()
	ctx := context.Background()

	options, err := svc.BeginRegistration(ctx, username)
	require.NoError(t, err)

	mock, err := NewMockAuthenticator(testRPID)
	require.NoError(t, err)

	resp, err := mock.CreateAttestationResponse(options.Challenge, testOrigin)
	require.NoError(t, err)
	require.NoError(t, svc.FinishRegistration(ctx, username, resp))
	return mock
}

func setStoredSignCount(t *testing.T, users user.Store, username string, credID []byte, count uint32) {
	t.Helper()
	ctx := context.Background()

	u, err := users.GetByUsername(ctx, username)
	require.NoError(t, err)
	cred := u.GetCredential(credID)
	require.NotNil(t, cred)
	cred.SignCount = count
	require.NoError(t, users.Update(ctx, u))
}

func TestNewService(t *testing.T) {
	users, err := user.NewFileStore(storage.NewMemory())
	require.NoError(t, err)
	challenges := NewMemoryChallengeStore()
	defer challenges.Close()

	tests := []struct {
		name    string
		params  ServiceParams
		wantErr string
	}{
		{
			name:    "nil config",
			params:  ServiceParams{},
			wantErr: "config is required",
		},
		{
			name:    "nil user store",
			params:  ServiceParams{Config: validTestConfig()},
			wantErr: "user store is required",
		},
		{
			name: "nil challenge store",
			params: ServiceParams{
				Config: validTestConfig(),
				Users:  users,
			},
			wantErr: "challenge store is required",
		},
		{
			name: "invalid config",
			params: ServiceParams{
				Config:     &Config{},
				Users:      users,
				Challenges: challenges,
			},
			wantErr: "invalid config",
		},
		{
			name: "valid params",
			params: ServiceParams{
				Config:     validTestConfig(),
				Users:      users,
				Challenges: challenges,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewService(tt.params)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, svc)
		})
	}
}

func TestBeginRegistrationCreatesUser(t *testing.T) {
	svc, users, _ := newTestService(t)
	ctx := context.Background()

	options, err := svc.BeginRegistration(ctx, "alice")
	require.NoError(t, err)

	assert.NotEmpty(t, options.Challenge)
	assert.Equal(t, testRPID, options.RPID)
	assert.Equal(t, "HRMS", options.RP.Name)
	assert.Equal(t, "direct", options.Attestation)
	assert.Equal(t, int64(60000), options.Timeout)
	assert.Empty(t, options.ExcludeCredentials)
	require.NotEmpty(t, options.PubKeyCredParams)
	assert.Equal(t, AlgES256, options.PubKeyCredParams[0].Alg)

	u, err := users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, EncodeBase64(u.ID), options.User.ID)
	assert.Equal(t, "alice", options.User.Name)
}

func TestBeginRegistrationDeterministicUserHandle(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.BeginRegistration(ctx, "alice")
	require.NoError(t, err)
	second, err := svc.BeginRegistration(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, first.User.ID, second.User.ID)
	assert.NotEqual(t, first.Challenge, second.Challenge, "each ceremony gets a fresh challenge")
}

func TestBeginRegistrationExcludesExistingCredentials(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	mock := registerCredential(t, svc, "alice")

	options, err := svc.BeginRegistration(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, options.ExcludeCredentials, 1)
	assert.Equal(t, EncodeBase64(mock.CredentialID), options.ExcludeCredentials[0].ID)
	assert.Equal(t, "public-key", options.ExcludeCredentials[0].Type)
}

func TestFinishRegistration(t *testing.T) {
	svc, users, _ := newTestService(t)
	ctx := context.Background()

	mock := registerCredential(t, svc, "alice")

	u, err := users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, u.Credentials, 1)

	cred := u.Credentials[0]
	assert.Equal(t, mock.CredentialID, cred.ID)
	assert.Equal(t, uint32(0), cred.SignCount, "new credentials start at counter zero")
	assert.Equal(t, "none", cred.AttestationType)
	assert.Equal(t, []string{"usb"}, cred.Transports)
	assert.NotEmpty(t, cred.PublicKey)
}

func TestFinishRegistrationDuplicateCredential(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	mock := registerCredential(t, svc, "alice")

	// Re-register the same authenticator.
	options, err := svc.BeginRegistration(ctx, "alice")
	require.NoError(t, err)
	resp, err := mock.CreateAttestationResponse(options.Challenge, testOrigin)
	require.NoError(t, err)

	err = svc.FinishRegistration(ctx, "alice", resp)
	assert.ErrorIs(t, err, ErrCredentialAlreadyExists)
}

func TestFinishRegistrationRenamedCredentialID(t *testing.T) {
	svc, users, _ := newTestService(t)
	ctx := context.Background()

	mock := registerCredential(t, svc, "alice")

	// Same authenticator, but the top-level id claims a different
	// credential than the one the attestation object carries. Accepting
	// it would store a second copy of the attested credential ID.
	options, err := svc.BeginRegistration(ctx, "alice")
	require.NoError(t, err)
	resp, err := mock.CreateAttestationResponse(options.Challenge, testOrigin)
	require.NoError(t, err)
	resp.ID = EncodeBase64([]byte("some-other-credential-id"))

	err = svc.FinishRegistration(ctx, "alice", resp)
	assert.ErrorIs(t, err, ErrMalformedAuthenticatorData)

	u, err := users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, u.Credentials, 1)
}

func TestFinishRegistrationRejectsLoginCeremonyType(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	options, err := svc.BeginRegistration(ctx, "alice")
	require.NoError(t, err)

	mock, err := NewMockAuthenticator(testRPID)
	require.NoError(t, err)
	resp, err := mock.CreateAttestationResponse(options.Challenge, testOrigin)
	require.NoError(t, err)

	// Swap the client data for a login-type payload.
	resp.Response.ClientDataJSON = mock.buildClientDataJSON(options.Challenge, testOrigin, CeremonyGet)

	err = svc.FinishRegistration(ctx, "alice", resp)
	assert.ErrorIs(t, err, ErrInvalidCeremonyType)
}

func TestFinishRegistrationChallengeBinding(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.BeginRegistration(ctx, "alice")
	require.NoError(t, err)

	mock, err := NewMockAuthenticator(testRPID)
	require.NoError(t, err)
	resp, err := mock.CreateAttestationResponse("some-other-challenge", testOrigin)
	require.NoError(t, err)

	err = svc.FinishRegistration(ctx, "alice", resp)
	assert.ErrorIs(t, err, ErrChallengeMismatch)

	// The challenge was consumed by the failed attempt.
	resp2, err := mock.CreateAttestationResponse("whatever", testOrigin)
	require.NoError(t, err)
	err = svc.FinishRegistration(ctx, "alice", resp2)
	assert.ErrorIs(t, err, ErrNoChallenge)
}

func TestFinishRegistrationOriginMismatch(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	options, err := svc.BeginRegistration(ctx, "alice")
	require.NoError(t, err)

	mock, err := NewMockAuthenticator(testRPID)
	require.NoError(t, err)
	resp, err := mock.CreateAttestationResponse(options.Challenge, "https://evil.example.com")
	require.NoError(t, err)

	err = svc.FinishRegistration(ctx, "alice", resp)
	assert.ErrorIs(t, err, ErrOriginMismatch)
}

func TestFinishRegistrationPermissiveOrigin(t *testing.T) {
	users, err := user.NewFileStore(storage.NewMemory())
	require.NoError(t, err)
	challenges := NewMemoryChallengeStore()
	defer challenges.Close()

	config := validTestConfig()
	config.AllowOriginMismatch = true
	svc, err := NewService(ServiceParams{
		Config:     config,
		Users:      users,
		Challenges: challenges,
	})
	require.NoError(t, err)
	ctx := context.Background()

	options, err := svc.BeginRegistration(ctx, "alice")
	require.NoError(t, err)

	mock, err := NewMockAuthenticator(testRPID)
	require.NoError(t, err)
	resp, err := mock.CreateAttestationResponse(options.Challenge, "https://staging.example.com")
	require.NoError(t, err)

	assert.NoError(t, svc.FinishRegistration(ctx, "alice", resp))
}

func TestFinishRegistrationRPIDHashMismatch(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	options, err := svc.BeginRegistration(ctx, "alice")
	require.NoError(t, err)

	// Authenticator scoped to a different RP.
	mock, err := NewMockAuthenticator("other.example.com")
	require.NoError(t, err)
	resp, err := mock.CreateAttestationResponse(options.Challenge, testOrigin)
	require.NoError(t, err)

	err = svc.FinishRegistration(ctx, "alice", resp)
	assert.ErrorIs(t, err, ErrRPIDHashMismatch)
}

func TestBeginLogin(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	mock := registerCredential(t, svc, "alice")

	options, err := svc.BeginLogin(ctx, "alice")
	require.NoError(t, err)

	assert.NotEmpty(t, options.Challenge)
	assert.Equal(t, testRPID, options.RPID)
	assert.Equal(t, "required", options.UserVerification)
	require.Len(t, options.AllowCredentials, 1)
	assert.Equal(t, EncodeBase64(mock.CredentialID), options.AllowCredentials[0].ID)
}

func TestBeginLoginUnknownUser(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.BeginLogin(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestBeginLoginDisabledAccount(t *testing.T) {
	svc, users, _ := newTestService(t)
	ctx := context.Background()

	registerCredential(t, svc, "alice")

	for _, status := range []user.EmploymentStatus{
		user.StatusTerminated,
		user.StatusAbsconded,
		user.StatusResigned,
	} {
		t.Run(string(status), func(t *testing.T) {
			u, err := users.GetByUsername(ctx, "alice")
			require.NoError(t, err)
			u.EmploymentStatus = status
			require.NoError(t, users.Update(ctx, u))

			_, err = svc.BeginLogin(ctx, "alice")
			assert.ErrorIs(t, err, ErrAccountDisabled)

			var disabled *AccountDisabledError
			require.True(t, errors.As(err, &disabled))
			assert.Equal(t, status, disabled.Status)
		})
	}
}

func TestBeginLoginOnNoticeAllowed(t *testing.T) {
	svc, users, _ := newTestService(t)
	ctx := context.Background()

	registerCredential(t, svc, "alice")

	u, err := users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	u.EmploymentStatus = user.StatusOnNotice
	require.NoError(t, users.Update(ctx, u))

	_, err = svc.BeginLogin(ctx, "alice")
	assert.NoError(t, err, "notice period does not block login")
}

func TestBeginLoginNoCredentials(t *testing.T) {
	svc, users, _ := newTestService(t)
	ctx := context.Background()

	u, err := users.Upsert(ctx, "bob")
	require.NoError(t, err)
	u.TwoFactorEnabled = true
	require.NoError(t, users.Update(ctx, u))

	_, err = svc.BeginLogin(ctx, "bob")
	assert.ErrorIs(t, err, ErrNoCredentials)

	var noCreds *NoCredentialsError
	require.True(t, errors.As(err, &noCreds))
	assert.True(t, noCreds.TwoFactorEnabled)
}

func TestBeginLoginDisabledCheckedBeforeCredentials(t *testing.T) {
	svc, users, _ := newTestService(t)
	ctx := context.Background()

	// Disabled account with zero credentials: the status check wins.
	u, err := users.Upsert(ctx, "carol")
	require.NoError(t, err)
	u.EmploymentStatus = user.StatusTerminated
	require.NoError(t, users.Update(ctx, u))

	_, err = svc.BeginLogin(ctx, "carol")
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func loginOnce(t *testing.T, svc *Service, mock *MockAuthenticator, username string) (*UserSnapshot, error) {
	t.Helper()
	ctx := context.Background()

	options, err := svc.BeginLogin(ctx, username)
	require.NoError(t, err)
	resp, err := mock.CreateAssertionResponse(options.Challenge, testOrigin)
	require.NoError(t, err)
	return svc.FinishLogin(ctx, username, resp)
}

func TestFinishLogin(t *testing.T) {
	svc, users, _ := newTestService(t)
	ctx := context.Background()

	mock := registerCredential(t, svc, "alice")

	snapshot, err := loginOnce(t, svc, mock, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", snapshot.Username)

	u, err := users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	cred := u.GetCredential(mock.CredentialID)
	require.NotNil(t, cred)
	assert.Equal(t, uint32(1), cred.SignCount)
	assert.NotNil(t, cred.LastUsedAt)
}

func TestFinishLoginCounterPolicy(t *testing.T) {
	tests := []struct {
		name       string
		stored     uint32
		reported   uint32
		wantErr    bool
		wantStored uint32
	}{
		{name: "equal counter rejected", stored: 5, reported: 5, wantErr: true},
		{name: "lower counter rejected", stored: 5, reported: 3, wantErr: true},
		{name: "higher counter accepted", stored: 5, reported: 6, wantStored: 6},
		{name: "zero stored accepts zero", stored: 0, reported: 0, wantStored: 0},
		{name: "zero stored accepts any", stored: 0, reported: 7, wantStored: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, users, _ := newTestService(t)
			ctx := context.Background()

			mock := registerCredential(t, svc, "alice")
			setStoredSignCount(t, users, "alice", mock.CredentialID, tt.stored)

			options, err := svc.BeginLogin(ctx, "alice")
			require.NoError(t, err)

			resp, err := assertionWithCounter(mock, options.Challenge, testOrigin, tt.reported)
			require.NoError(t, err)

			_, err = svc.FinishLogin(ctx, "alice", resp)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrCounterReplay)
				return
			}
			require.NoError(t, err)

			u, err := users.GetByUsername(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStored, u.GetCredential(mock.CredentialID).SignCount)
		})
	}
}

func TestFinishLoginZeroCounterRepeatedly(t *testing.T) {
	svc, users, _ := newTestService(t)
	ctx := context.Background()

	mock := registerCredential(t, svc, "alice")

	// Counterless authenticators report zero forever.
	for i := 0; i < 3; i++ {
		options, err := svc.BeginLogin(ctx, "alice")
		require.NoError(t, err)
		resp, err := assertionWithCounter(mock, options.Challenge, testOrigin, 0)
		require.NoError(t, err)

		_, err = svc.FinishLogin(ctx, "alice", resp)
		require.NoError(t, err, "attempt %d", i)
	}

	u, err := users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint32(0), u.GetCredential(mock.CredentialID).SignCount)
}

func TestFinishLoginChallengeSingleUse(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	mock := registerCredential(t, svc, "alice")

	options, err := svc.BeginLogin(ctx, "alice")
	require.NoError(t, err)
	resp, err := mock.CreateAssertionResponse(options.Challenge, testOrigin)
	require.NoError(t, err)

	_, err = svc.FinishLogin(ctx, "alice", resp)
	require.NoError(t, err)

	// Replaying the captured response finds no challenge.
	_, err = svc.FinishLogin(ctx, "alice", resp)
	assert.ErrorIs(t, err, ErrNoChallenge)
}

func TestFinishLoginChallengeMismatch(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	mock := registerCredential(t, svc, "alice")

	_, err := svc.BeginLogin(ctx, "alice")
	require.NoError(t, err)

	// Well-signed response over the wrong challenge.
	resp, err := mock.CreateAssertionResponse("attacker-chosen", testOrigin)
	require.NoError(t, err)

	_, err = svc.FinishLogin(ctx, "alice", resp)
	assert.ErrorIs(t, err, ErrChallengeMismatch)
}

func TestFinishLoginRejectsRegistrationCeremonyType(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	mock := registerCredential(t, svc, "alice")

	options, err := svc.BeginLogin(ctx, "alice")
	require.NoError(t, err)
	resp, err := mock.CreateAssertionResponse(options.Challenge, testOrigin)
	require.NoError(t, err)
	resp.Response.ClientDataJSON = mock.buildClientDataJSON(options.Challenge, testOrigin, CeremonyCreate)

	_, err = svc.FinishLogin(ctx, "alice", resp)
	assert.ErrorIs(t, err, ErrInvalidCeremonyType)
}

func TestFinishLoginUserPresenceRequired(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	mock := registerCredential(t, svc, "alice")
	mock.UserPresent = false

	options, err := svc.BeginLogin(ctx, "alice")
	require.NoError(t, err)
	resp, err := mock.CreateAssertionResponse(options.Challenge, testOrigin)
	require.NoError(t, err)

	_, err = svc.FinishLogin(ctx, "alice", resp)
	assert.ErrorIs(t, err, ErrUserNotPresent)
}

func TestFinishLoginUserVerificationRequired(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	mock := registerCredential(t, svc, "alice")
	mock.UserVerified = false

	options, err := svc.BeginLogin(ctx, "alice")
	require.NoError(t, err)
	resp, err := mock.CreateAssertionResponse(options.Challenge, testOrigin)
	require.NoError(t, err)

	_, err = svc.FinishLogin(ctx, "alice", resp)
	assert.ErrorIs(t, err, ErrUserNotVerified)
}

func TestFinishLoginUnknownCredential(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	registerCredential(t, svc, "alice")

	// A different authenticator the user never registered.
	stranger, err := NewMockAuthenticator(testRPID)
	require.NoError(t, err)

	options, err := svc.BeginLogin(ctx, "alice")
	require.NoError(t, err)
	resp, err := stranger.CreateAssertionResponse(options.Challenge, testOrigin)
	require.NoError(t, err)

	_, err = svc.FinishLogin(ctx, "alice", resp)
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestFinishLoginTamperedSignature(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	mock := registerCredential(t, svc, "alice")

	options, err := svc.BeginLogin(ctx, "alice")
	require.NoError(t, err)
	resp, err := mock.CreateAssertionResponse(options.Challenge, testOrigin)
	require.NoError(t, err)
	resp.Response.Signature[4] ^= 0xFF

	_, err = svc.FinishLogin(ctx, "alice", resp)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestFinishLoginMalformedClientData(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	mock := registerCredential(t, svc, "alice")

	options, err := svc.BeginLogin(ctx, "alice")
	require.NoError(t, err)
	resp, err := mock.CreateAssertionResponse(options.Challenge, testOrigin)
	require.NoError(t, err)
	resp.Response.ClientDataJSON = []byte("{not json")

	_, err = svc.FinishLogin(ctx, "alice", resp)
	assert.ErrorIs(t, err, ErrMalformedClientData)
}

func TestCredentialsAndDelete(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	mock := registerCredential(t, svc, "alice")

	creds, err := svc.Credentials(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, creds, 1)

	require.NoError(t, svc.DeleteCredential(ctx, "alice", mock.CredentialID))

	creds, err = svc.Credentials(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, creds)

	err = svc.DeleteCredential(ctx, "alice", mock.CredentialID)
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

// assertionWithCounter builds an assertion reporting an exact counter value,
// bypassing the mock's auto-increment.
func assertionWithCounter(m *MockAuthenticator, challenge, origin string, counter uint32) (*CredentialAssertionResponse, error) {
	saved := m.SignCount
	m.SignCount = counter
	resp, err := m.signAssertion(challenge, origin)
	m.SignCount = saved
	return resp, err
}
