// Copyright (c) 2025 ysam020
//
// This file is part of hrms-sub000.
//
// hrms-sub000 is licensed under the GNU Affero General Public License v3.0
// (AGPL-3.0). See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ysam020/hrms-sub000/pkg/audit"
	"github.com/ysam020/hrms-sub000/pkg/storage"
	"github.com/ysam020/hrms-sub000/pkg/user"
	"github.com/ysam020/hrms-sub000/pkg/webauthn"
)

const (
	testRPID   = "hrms.example.com"
	testOrigin = "https://hrms.example.com"
)

type recordingAuditor struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (a *recordingAuditor) Record(ctx context.Context, e *audit.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *recordingAuditor) byType(eventType audit.EventType) []*audit.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	var matched []*audit.Event
	for _, e := range a.events {
		if e.Type == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

type testEnv struct {
	router  http.Handler
	users   user.Store
	svc     *webauthn.Service
	tokens  *webauthn.DefaultJWTGenerator
	auditor *recordingAuditor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users, err := user.NewFileStore(storage.NewMemory())
	require.NoError(t, err)
	store := webauthn.NewMemoryChallengeStore()
	t.Cleanup(func() { _ = store.Close() })

	svc, err := webauthn.NewService(webauthn.ServiceParams{
		Config: &webauthn.Config{
			RPID:          testRPID,
			RPDisplayName: "HRMS",
			RPOrigins:     []string{testOrigin},
		},
		Users:      users,
		Challenges: store,
	})
	require.NoError(t, err)

	tokens, err := webauthn.NewDefaultJWTGenerator(&webauthn.JWTGeneratorConfig{
		Secret: []byte("handler-test-secret"),
	})
	require.NoError(t, err)

	bridge, err := webauthn.NewBridge(webauthn.BridgeParams{
		Handoff: store,
		Users:   users,
		Tokens:  tokens,
	})
	require.NoError(t, err)

	auditor := &recordingAuditor{}
	r := chi.NewRouter()
	MountChi(r, NewHandler(svc, bridge).WithAuditor(auditor), tokens)

	return &testEnv{router: r, users: users, svc: svc, tokens: tokens, auditor: auditor}
}

func (e *testEnv) bearerToken(t *testing.T, username string) string {
	t.Helper()
	u, err := e.users.Upsert(context.Background(), username)
	require.NoError(t, err)
	token, err := e.tokens.GenerateToken(context.Background(), u)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

// register runs a full registration ceremony through the HTTP surface and
// returns the authenticator holding the new credential.
func (e *testEnv) register(t *testing.T, username string) *webauthn.MockAuthenticator {
	t.Helper()

	token := e.bearerToken(t, username)
	rec := e.do(t, http.MethodGet, "/webauthn-register", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	options := decodeBody[webauthn.CredentialCreationOptions](t, rec)

	mock, err := webauthn.NewMockAuthenticator(testRPID)
	require.NoError(t, err)
	resp, err := mock.CreateAttestationResponse(options.Challenge, testOrigin)
	require.NoError(t, err)

	rec = e.do(t, http.MethodPost, "/webauthn-verify-registration", token, VerifyRegistrationRequest{
		Username:   username,
		Credential: *resp,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[VerifyRegistrationResponse](t, rec)
	require.True(t, body.Verified)
	return mock
}

func TestLoginOptionsUnknownUser(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/webauthn-login-options", "", LoginOptionsRequest{Username: "nobody"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	body := decodeBody[OptionsErrorResponse](t, rec)
	assert.True(t, body.Error)
	assert.Equal(t, MsgUserNotFound, body.Message)
	assert.False(t, body.FallbackToPassword)
}

func TestLoginOptionsDisabledAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.register(t, "alice")
	u, err := env.users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	u.EmploymentStatus = user.StatusTerminated
	require.NoError(t, env.users.Update(ctx, u))

	rec := env.do(t, http.MethodPost, "/webauthn-login-options", "", LoginOptionsRequest{Username: "alice"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	body := decodeBody[OptionsErrorResponse](t, rec)
	assert.True(t, body.Error)
	assert.Equal(t, "Account disabled: employment terminated", body.Message)
}

func TestLoginOptionsPasswordFallback(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, err := env.users.Upsert(ctx, "bob")
	require.NoError(t, err)
	u.TwoFactorEnabled = true
	require.NoError(t, env.users.Update(ctx, u))

	rec := env.do(t, http.MethodPost, "/webauthn-login-options", "", LoginOptionsRequest{Username: "bob"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	body := decodeBody[OptionsErrorResponse](t, rec)
	assert.True(t, body.Error)
	assert.True(t, body.FallbackToPassword)
	require.NotNil(t, body.IsTwoFactorEnabled)
	assert.True(t, *body.IsTwoFactorEnabled)
}

func TestLoginOptionsSuccess(t *testing.T) {
	env := newTestEnv(t)

	mock := env.register(t, "alice")

	rec := env.do(t, http.MethodPost, "/webauthn-login-options", "", LoginOptionsRequest{Username: "alice"})
	require.Equal(t, http.StatusOK, rec.Code)

	options := decodeBody[webauthn.CredentialRequestOptions](t, rec)
	assert.NotEmpty(t, options.Challenge)
	assert.Equal(t, testRPID, options.RPID)
	assert.Equal(t, "required", options.UserVerification)
	require.Len(t, options.AllowCredentials, 1)
	assert.Equal(t, webauthn.EncodeBase64(mock.CredentialID), options.AllowCredentials[0].ID)
	assert.Equal(t, "public-key", options.AllowCredentials[0].Type)
}

func TestLoginOptionsBadRequest(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/webauthn-login-options", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterOptionsRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/webauthn-register", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/webauthn-register", "bogus-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterOptionsShape(t *testing.T) {
	env := newTestEnv(t)

	token := env.bearerToken(t, "alice")
	rec := env.do(t, http.MethodGet, "/webauthn-register", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	options := decodeBody[webauthn.CredentialCreationOptions](t, rec)
	assert.NotEmpty(t, options.Challenge)
	assert.Equal(t, "HRMS", options.RP.Name)
	assert.Equal(t, testRPID, options.RPID)
	assert.Equal(t, "alice", options.User.Name)
	assert.NotEmpty(t, options.User.ID)
	assert.Equal(t, "direct", options.Attestation)
	assert.NotEmpty(t, options.PubKeyCredParams)
	assert.Empty(t, options.ExcludeCredentials)
}

func TestRegisterOptionsExcludesExisting(t *testing.T) {
	env := newTestEnv(t)

	mock := env.register(t, "alice")

	token := env.bearerToken(t, "alice")
	rec := env.do(t, http.MethodGet, "/webauthn-register", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	options := decodeBody[webauthn.CredentialCreationOptions](t, rec)
	require.Len(t, options.ExcludeCredentials, 1)
	assert.Equal(t, webauthn.EncodeBase64(mock.CredentialID), options.ExcludeCredentials[0].ID)
}

func TestVerifyRegistrationUsernameMismatch(t *testing.T) {
	env := newTestEnv(t)

	token := env.bearerToken(t, "alice")
	env.bearerToken(t, "mallory")

	rec := env.do(t, http.MethodPost, "/webauthn-verify-registration", token, VerifyRegistrationRequest{
		Username: "mallory",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestVerifyRegistrationFailureIsGeneric(t *testing.T) {
	env := newTestEnv(t)

	token := env.bearerToken(t, "alice")
	rec := env.do(t, http.MethodGet, "/webauthn-register", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	mock, err := webauthn.NewMockAuthenticator(testRPID)
	require.NoError(t, err)
	// Wrong challenge: verification fails server-side.
	resp, err := mock.CreateAttestationResponse("wrong-challenge", testOrigin)
	require.NoError(t, err)

	rec = env.do(t, http.MethodPost, "/webauthn-verify-registration", token, VerifyRegistrationRequest{
		Username:   "alice",
		Credential: *resp,
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	body := decodeBody[MessageResponse](t, rec)
	assert.Equal(t, MsgRegistrationFailed, body.Message, "clients never learn which step failed")
}

func TestVerifyRegistrationRecordsAuditEvent(t *testing.T) {
	env := newTestEnv(t)

	env.register(t, "alice")

	events := env.auditor.byType(audit.EventRegistration)
	require.Len(t, events, 1)
	assert.Equal(t, "alice", events[0].Username)

	// Failed registrations never produce a registration event.
	token := env.bearerToken(t, "bob")
	mock, err := webauthn.NewMockAuthenticator(testRPID)
	require.NoError(t, err)
	resp, err := mock.CreateAttestationResponse("wrong-challenge", testOrigin)
	require.NoError(t, err)
	rec := env.do(t, http.MethodPost, "/webauthn-verify-registration", token, VerifyRegistrationRequest{
		Username:   "bob",
		Credential: *resp,
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Len(t, env.auditor.byType(audit.EventRegistration), 1)
}

func TestVerifyLoginAndLogin(t *testing.T) {
	env := newTestEnv(t)

	mock := env.register(t, "alice")

	rec := env.do(t, http.MethodPost, "/webauthn-login-options", "", LoginOptionsRequest{Username: "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	options := decodeBody[webauthn.CredentialRequestOptions](t, rec)

	resp, err := mock.CreateAssertionResponse(options.Challenge, testOrigin)
	require.NoError(t, err)

	rec = env.do(t, http.MethodPost, "/webauthn-verify-login", "", VerifyLoginRequest{
		Username:   "alice",
		Credential: *resp,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	verifyBody := decodeBody[VerifyLoginResponse](t, rec)
	assert.True(t, verifyBody.Success)
	require.NotNil(t, verifyBody.User)
	assert.Equal(t, "alice", verifyBody.User.Username)

	rec = env.do(t, http.MethodPost, "/webauthn-login", "", LoginRequest{
		Username:    "alice",
		Geolocation: "12.97,77.59",
		UserAgent:   "test-agent",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	loginBody := decodeBody[LoginResponse](t, rec)
	assert.Equal(t, MsgLoginSuccessful, loginBody.Message)
	assert.NotEmpty(t, loginBody.Token)
	require.NotNil(t, loginBody.User)
	assert.Equal(t, "alice", loginBody.User.Username)
	assert.NotEmpty(t, loginBody.User.LastLoginAt)

	claims, err := env.tokens.VerifyToken(loginBody.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims["username"])
}

func TestVerifyLoginFailureIsGeneric(t *testing.T) {
	env := newTestEnv(t)

	mock := env.register(t, "alice")

	rec := env.do(t, http.MethodPost, "/webauthn-login-options", "", LoginOptionsRequest{Username: "alice"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Response bound to the wrong challenge.
	resp, err := mock.CreateAssertionResponse("attacker-challenge", testOrigin)
	require.NoError(t, err)

	rec = env.do(t, http.MethodPost, "/webauthn-verify-login", "", VerifyLoginRequest{
		Username:   "alice",
		Credential: *resp,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	body := decodeBody[VerifyLoginResponse](t, rec)
	assert.False(t, body.Success)
	assert.Equal(t, MsgAuthFailed, body.Message)
	assert.Nil(t, body.User)
}

func TestLoginWithoutVerification(t *testing.T) {
	env := newTestEnv(t)

	env.register(t, "alice")

	rec := env.do(t, http.MethodPost, "/webauthn-login", "", LoginRequest{Username: "alice"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	body := decodeBody[MessageResponse](t, rec)
	assert.Equal(t, MsgAuthFailed, body.Message)
}

func TestLoginResultSingleUse(t *testing.T) {
	env := newTestEnv(t)

	mock := env.register(t, "alice")

	rec := env.do(t, http.MethodPost, "/webauthn-login-options", "", LoginOptionsRequest{Username: "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	options := decodeBody[webauthn.CredentialRequestOptions](t, rec)

	resp, err := mock.CreateAssertionResponse(options.Challenge, testOrigin)
	require.NoError(t, err)
	rec = env.do(t, http.MethodPost, "/webauthn-verify-login", "", VerifyLoginRequest{
		Username:   "alice",
		Credential: *resp,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/webauthn-login", "", LoginRequest{Username: "alice"})
	require.Equal(t, http.StatusOK, rec.Code)

	// A second login finds the mailbox empty.
	rec = env.do(t, http.MethodPost, "/webauthn-login", "", LoginRequest{Username: "alice"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListAndDeleteCredentials(t *testing.T) {
	env := newTestEnv(t)

	mock := env.register(t, "alice")
	token := env.bearerToken(t, "alice")

	rec := env.do(t, http.MethodGet, "/webauthn-credentials", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	creds := decodeBody[[]CredentialSummary](t, rec)
	require.Len(t, creds, 1)
	assert.Equal(t, webauthn.EncodeBase64(mock.CredentialID), creds[0].ID)
	assert.Equal(t, uint32(0), creds[0].SignCount)

	rec = env.do(t, http.MethodDelete, "/webauthn-credentials/"+creds[0].ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/webauthn-credentials", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	creds = decodeBody[[]CredentialSummary](t, rec)
	assert.Empty(t, creds)

	rec = env.do(t, http.MethodDelete, "/webauthn-credentials/"+webauthn.EncodeBase64(mock.CredentialID), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUsernameFromContext(t *testing.T) {
	ctx := context.Background()

	_, ok := UsernameFromContext(ctx)
	assert.False(t, ok)

	ctx = ContextWithUsername(ctx, "alice")
	username, ok := UsernameFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "alice", username)
}

func TestRoutesTable(t *testing.T) {
	h := NewHandler(nil, nil)
	routes := h.Routes()
	require.Len(t, routes, 7)

	authenticated := 0
	for _, route := range routes {
		require.NotNil(t, route.Handler)
		if route.Authenticated {
			authenticated++
		}
	}
	assert.Equal(t, 4, authenticated)
}
