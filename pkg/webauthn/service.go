// Copyright (c) 2025 ysam020
//
// This file is part of hrms-sub000.
//
// hrms-sub000 is licensed under the GNU Affero General Public License v3.0
// (AGPL-3.0). See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package webauthn

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ysam020/hrms-sub000/pkg/user"
)

const challengeLength = 32

// Service provides WebAuthn registration and authentication operations.
type Service struct {
	config     *Config
	users      user.Store
	challenges ChallengeStore
	logger     *slog.Logger
	configured bool
}

// ServiceParams contains dependencies for creating a WebAuthn service.
type ServiceParams struct {
	// Config is the WebAuthn configuration (required).
	Config *Config

	// Users is the account persistence layer (required).
	Users user.Store

	// Challenges is the challenge persistence layer (required).
	Challenges ChallengeStore

	// Logger is optional; slog.Default() is used when nil.
	Logger *slog.Logger
}

// NewService creates a new WebAuthn service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if params.Challenges == nil {
		return nil, fmt.Errorf("challenge store is required")
	}

	params.Config.SetDefaults()
	if err := params.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		config:     params.Config,
		users:      params.Users,
		challenges: params.Challenges,
		logger:     logger,
		configured: true,
	}, nil
}

// Config returns the service configuration.
func (s *Service) Config() *Config {
	return s.config
}

// BeginRegistration builds attestation options for a username, creating the
// account if it does not exist. Any pending challenge for the username is
// replaced.
func (s *Service) BeginRegistration(ctx context.Context, username string) (*CredentialCreationOptions, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	u, err := s.users.Upsert(ctx, username)
	if err != nil {
		return nil, WrapError("upsert user", err)
	}

	challenge, err := s.issueChallenge(ctx, u.Username, PurposeRegistration)
	if err != nil {
		return nil, err
	}

	exclude := make([]CredentialDescriptor, len(u.Credentials))
	for i, cred := range u.Credentials {
		exclude[i] = CredentialDescriptor{
			Type:       "public-key",
			ID:         EncodeBase64(cred.ID),
			Transports: cred.Transports,
		}
	}

	return &CredentialCreationOptions{
		Challenge: challenge,
		RP:        RelyingParty{Name: s.config.RPDisplayName},
		RPID:      s.config.RPID,
		User: UserEntity{
			ID:          EncodeBase64(u.ID),
			Name:        u.Username,
			DisplayName: u.WebAuthnDisplayName(),
		},
		PubKeyCredParams:   DefaultCredentialParameters(),
		Timeout:            s.config.CeremonyTimeout.Milliseconds(),
		Attestation:        s.config.AttestationPreference,
		ExcludeCredentials: exclude,
	}, nil
}

// BeginLogin builds assertion options for a username. The precondition
// checks short-circuit in order: unknown user, disabled employment status,
// then no registered credentials (which directs the client to fall back to
// password login).
func (s *Service) BeginLogin(ctx context.Context, username string) (*CredentialRequestOptions, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, WrapError("get user", err)
	}

	if u.EmploymentStatus.Disabled() {
		return nil, &AccountDisabledError{Status: u.EmploymentStatus}
	}

	if len(u.Credentials) == 0 {
		return nil, &NoCredentialsError{TwoFactorEnabled: u.TwoFactorEnabled}
	}

	challenge, err := s.issueChallenge(ctx, u.Username, PurposeLogin)
	if err != nil {
		return nil, err
	}

	allow := make([]CredentialDescriptor, len(u.Credentials))
	for i, cred := range u.Credentials {
		allow[i] = CredentialDescriptor{
			Type:       "public-key",
			ID:         EncodeBase64(cred.ID),
			Transports: cred.Transports,
		}
	}

	return &CredentialRequestOptions{
		Challenge:        challenge,
		RPID:             s.config.RPID,
		Timeout:          s.config.CeremonyTimeout.Milliseconds(),
		UserVerification: s.config.UserVerification,
		AllowCredentials: allow,
	}, nil
}

// FinishRegistration validates an attestation ceremony response and stores
// the new credential with a zero signature counter. No session results from
// registration.
func (s *Service) FinishRegistration(ctx context.Context, username string, response *CredentialCreationResponse) error {
	if !s.configured {
		return ErrNotConfigured
	}
	if response == nil {
		return ErrMalformedClientData
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return WrapError("get user", err)
	}

	clientData, err := s.consumeChallenge(ctx, u.Username, PurposeRegistration, response.Response.ClientDataJSON)
	if err != nil {
		return err
	}

	if clientData.Type != CeremonyCreate {
		return NewError("finish registration", ErrInvalidCeremonyType)
	}

	if err := s.checkOrigin(u.Username, clientData.Origin); err != nil {
		return err
	}

	credID, err := DecodeFlexibleBase64(response.ID)
	if err != nil || len(credID) == 0 {
		return NewError("finish registration", ErrMalformedClientData)
	}

	attObj, err := ParseAttestationObject(response.Response.AttestationObject)
	if err != nil {
		return NewError("finish registration", err)
	}
	authData, err := ParseAuthenticatorData(attObj.AuthData)
	if err != nil {
		return NewError("finish registration", err)
	}
	if !authData.HasAttestedCredential() {
		return NewError("finish registration", fmt.Errorf("%w: no attested credential data", ErrMalformedAuthenticatorData))
	}

	// The top-level id must name the credential the authenticator attested,
	// and uniqueness is enforced on the attested ID, which is what gets
	// stored.
	if !bytes.Equal(credID, authData.CredentialID) {
		return NewError("finish registration", fmt.Errorf("%w: credential id does not match attested credential", ErrMalformedAuthenticatorData))
	}
	if u.GetCredential(authData.CredentialID) != nil {
		return NewError("finish registration", ErrCredentialAlreadyExists)
	}

	expectedHash := sha256.Sum256([]byte(s.config.RPID))
	if subtle.ConstantTimeCompare(authData.RPIDHash, expectedHash[:]) != 1 {
		return NewError("finish registration", ErrRPIDHashMismatch)
	}

	u.AddCredential(&user.Credential{
		ID:              authData.CredentialID,
		PublicKey:       authData.CredentialPublicKey,
		AttestationType: attObj.Format,
		Transports:      response.Response.Transports,
		SignCount:       0,
		CreatedAt:       time.Now().UTC(),
	})
	if err := s.users.Update(ctx, u); err != nil {
		return WrapError("save credential", err)
	}

	s.logger.Info("passkey registered",
		"username", u.Username,
		"credential_id", EncodeBase64(authData.CredentialID))
	return nil
}

// FinishLogin validates an assertion ceremony response. On success the
// stored signature counter and last-used time are updated and a minimal
// identity snapshot is returned. Establishing the session is the bridge's
// job, not this method's.
func (s *Service) FinishLogin(ctx context.Context, username string, response *CredentialAssertionResponse) (*UserSnapshot, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}
	if response == nil {
		return nil, ErrMalformedClientData
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, WrapError("get user", err)
	}

	clientData, err := s.consumeChallenge(ctx, u.Username, PurposeLogin, response.Response.ClientDataJSON)
	if err != nil {
		return nil, err
	}

	if clientData.Type != CeremonyGet {
		return nil, NewError("finish login", ErrInvalidCeremonyType)
	}

	if err := s.checkOrigin(u.Username, clientData.Origin); err != nil {
		return nil, err
	}

	credID, err := DecodeFlexibleBase64(response.ID)
	if err != nil || len(credID) == 0 {
		return nil, NewError("finish login", ErrMalformedClientData)
	}
	cred := u.GetCredential(credID)
	if cred == nil {
		return nil, NewError("finish login", ErrCredentialNotFound)
	}

	authData, err := ParseAuthenticatorData(response.Response.AuthenticatorData)
	if err != nil {
		return nil, NewError("finish login", err)
	}

	expectedHash := sha256.Sum256([]byte(s.config.RPID))
	if subtle.ConstantTimeCompare(authData.RPIDHash, expectedHash[:]) != 1 {
		return nil, NewError("finish login", ErrRPIDHashMismatch)
	}

	if !authData.UserPresent() {
		return nil, NewError("finish login", ErrUserNotPresent)
	}
	if s.config.UserVerification == "required" && !authData.UserVerified() {
		return nil, NewError("finish login", ErrUserNotVerified)
	}

	// A stored counter of zero marks an authenticator that never
	// increments; any reported value is accepted for it. A non-zero
	// stored counter must strictly increase.
	if cred.SignCount > 0 && authData.SignCount <= cred.SignCount {
		s.logger.Warn("signature counter replay",
			"username", u.Username,
			"stored", cred.SignCount,
			"reported", authData.SignCount)
		return nil, NewError("finish login", ErrCounterReplay)
	}

	clientDataHash := sha256.Sum256(response.Response.ClientDataJSON)
	signedData := append([]byte{}, response.Response.AuthenticatorData...)
	signedData = append(signedData, clientDataHash[:]...)
	if err := VerifySignature(cred.PublicKey, signedData, response.Response.Signature); err != nil {
		return nil, NewError("finish login", err)
	}

	u.UpdateCredential(credID, authData.SignCount)
	if err := s.users.Update(ctx, u); err != nil {
		return nil, WrapError("update credential", err)
	}

	return &UserSnapshot{
		ID:          EncodeBase64(u.ID),
		Username:    u.Username,
		DisplayName: u.WebAuthnDisplayName(),
	}, nil
}

// Credentials returns the registered credentials for a username.
func (s *Service) Credentials(ctx context.Context, username string) ([]user.Credential, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, WrapError("get user", err)
	}
	return u.Credentials, nil
}

// DeleteCredential removes a registered credential from a user.
func (s *Service) DeleteCredential(ctx context.Context, username string, credID []byte) error {
	if !s.configured {
		return ErrNotConfigured
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return WrapError("get user", err)
	}
	if !u.RemoveCredential(credID) {
		return ErrCredentialNotFound
	}
	return WrapError("save user", s.users.Update(ctx, u))
}

// issueChallenge generates, stores, and returns a fresh challenge value.
func (s *Service) issueChallenge(ctx context.Context, username string, purpose Purpose) (string, error) {
	raw := make([]byte, challengeLength)
	if _, err := rand.Read(raw); err != nil {
		return "", WrapError("generate challenge", err)
	}
	value := EncodeBase64(raw)

	err := s.challenges.StoreChallenge(ctx, username, &Challenge{
		Value:     value,
		Purpose:   purpose,
		ExpiresAt: time.Now().Add(s.config.ChallengeTTL),
	})
	if err != nil {
		return "", WrapError("store challenge", err)
	}
	return value, nil
}

// consumeChallenge atomically consumes the stored challenge and validates
// the client data against it. The challenge is gone after this call whether
// or not validation succeeds; any failure forces a ceremony restart.
func (s *Service) consumeChallenge(ctx context.Context, username string, purpose Purpose, clientDataJSON []byte) (*CollectedClientData, error) {
	stored, err := s.challenges.FetchAndDeleteChallenge(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNoChallenge) {
			return nil, ErrNoChallenge
		}
		return nil, WrapError("fetch challenge", err)
	}

	if len(clientDataJSON) == 0 {
		return nil, ErrMalformedClientData
	}
	var clientData CollectedClientData
	if err := json.Unmarshal(clientDataJSON, &clientData); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedClientData, err)
	}

	if subtle.ConstantTimeCompare([]byte(clientData.Challenge), []byte(stored.Value)) != 1 {
		return nil, ErrChallengeMismatch
	}
	if stored.Purpose != purpose {
		return nil, ErrChallengeMismatch
	}

	return &clientData, nil
}

// checkOrigin enforces the origin allow-list. With AllowOriginMismatch set
// the mismatch is logged and the ceremony continues.
func (s *Service) checkOrigin(username, origin string) error {
	if s.config.OriginAllowed(origin) {
		return nil
	}
	if s.config.AllowOriginMismatch {
		s.logger.Warn("ceremony origin not in allow-list",
			"username", username,
			"origin", origin)
		return nil
	}
	return NewError("check origin", ErrOriginMismatch)
}
