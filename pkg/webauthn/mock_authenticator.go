// Copyright (c) 2025 ysam020
//
// This file is part of hrms-sub000.
//
// hrms-sub000 is licensed under the GNU Affero General Public License v3.0
// (AGPL-3.0). See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package webauthn

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
)

// MockAuthenticator simulates a WebAuthn authenticator for testing. It
// produces raw wire-format attestation and assertion responses that the
// service verifies the same way it verifies real ceremony responses.
type MockAuthenticator struct {
	// AAGUID is the authenticator's unique identifier (16 bytes).
	AAGUID []byte

	// privateKey is the authenticator's signing key (P-256).
	privateKey *ecdsa.PrivateKey

	// CredentialID is the credential identifier.
	CredentialID []byte

	// SignCount is the current signature counter.
	SignCount uint32

	// UserPresent indicates whether the UP flag should be set.
	UserPresent bool

	// UserVerified indicates whether the UV flag should be set.
	UserVerified bool

	// rpIDHash is the SHA-256 hash of the RP ID.
	rpIDHash []byte
}

// MockAuthenticatorOption is a functional option for configuring a MockAuthenticator.
type MockAuthenticatorOption func(*MockAuthenticator)

// WithCredentialID sets a custom credential ID.
func WithCredentialID(credID []byte) MockAuthenticatorOption {
	return func(m *MockAuthenticator) {
		m.CredentialID = credID
	}
}

// WithSignCount sets the initial sign count.
func WithSignCount(count uint32) MockAuthenticatorOption {
	return func(m *MockAuthenticator) {
		m.SignCount = count
	}
}

// WithUserPresent sets the UP flag.
func WithUserPresent(up bool) MockAuthenticatorOption {
	return func(m *MockAuthenticator) {
		m.UserPresent = up
	}
}

// WithUserVerified sets the UV flag.
func WithUserVerified(uv bool) MockAuthenticatorOption {
	return func(m *MockAuthenticator) {
		m.UserVerified = uv
	}
}

// NewMockAuthenticator creates a new mock authenticator for testing.
func NewMockAuthenticator(rpID string, opts ...MockAuthenticatorOption) (*MockAuthenticator, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	aaguid := make([]byte, 16)
	if _, err := rand.Read(aaguid); err != nil {
		return nil, err
	}

	credID := make([]byte, 32)
	if _, err := rand.Read(credID); err != nil {
		return nil, err
	}

	rpIDHash := sha256.Sum256([]byte(rpID))

	m := &MockAuthenticator{
		AAGUID:       aaguid,
		privateKey:   privateKey,
		CredentialID: credID,
		SignCount:    0,
		UserPresent:  true,
		UserVerified: true,
		rpIDHash:     rpIDHash[:],
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// PublicKeyBytes returns the public key in COSE EC2 format.
func (m *MockAuthenticator) PublicKeyBytes() ([]byte, error) {
	pubKey := m.privateKey.Public().(*ecdsa.PublicKey)

	coseKey := map[int]any{
		1:  coseKeyTypeEC2,
		3:  AlgES256,
		-1: coseCurveP256,
		-2: pubKey.X.Bytes(),
		-3: pubKey.Y.Bytes(),
	}

	return cbor.Marshal(coseKey)
}

// SetSignCount sets the counter reported by the next assertion (useful for
// replay tests).
func (m *MockAuthenticator) SetSignCount(count uint32) {
	m.SignCount = count
}

// CreateAttestationResponse builds a registration ceremony response for the
// given challenge value, as the browser would submit it.
func (m *MockAuthenticator) CreateAttestationResponse(challenge, origin string) (*CredentialCreationResponse, error) {
	authData, err := m.buildAuthenticatorData(true)
	if err != nil {
		return nil, err
	}

	attObj, err := cbor.Marshal(map[string]any{
		"fmt":      "none",
		"attStmt":  map[string]any{},
		"authData": authData,
	})
	if err != nil {
		return nil, err
	}

	return &CredentialCreationResponse{
		ID:   EncodeBase64(m.CredentialID),
		Type: "public-key",
		Response: AttestationResponse{
			ClientDataJSON:    m.buildClientDataJSON(challenge, origin, CeremonyCreate),
			AttestationObject: attObj,
			Transports:        []string{"usb"},
		},
	}, nil
}

// CreateAssertionResponse builds a login ceremony response for the given
// challenge value. The signature counter is incremented first, matching
// real counter-bearing authenticators.
func (m *MockAuthenticator) CreateAssertionResponse(challenge, origin string) (*CredentialAssertionResponse, error) {
	m.SignCount++
	return m.signAssertion(challenge, origin)
}

// signAssertion signs an assertion reporting the current counter as-is.
func (m *MockAuthenticator) signAssertion(challenge, origin string) (*CredentialAssertionResponse, error) {
	authData, err := m.buildAuthenticatorData(false)
	if err != nil {
		return nil, err
	}

	clientDataJSON := m.buildClientDataJSON(challenge, origin, CeremonyGet)
	clientDataHash := sha256.Sum256(clientDataJSON)

	signedData := append(append([]byte{}, authData...), clientDataHash[:]...)
	digest := sha256.Sum256(signedData)
	signature, err := ecdsa.SignASN1(rand.Reader, m.privateKey, digest[:])
	if err != nil {
		return nil, err
	}

	return &CredentialAssertionResponse{
		ID:   EncodeBase64(m.CredentialID),
		Type: "public-key",
		Response: AssertionResponse{
			ClientDataJSON:    clientDataJSON,
			AuthenticatorData: authData,
			Signature:         signature,
		},
	}, nil
}

// buildFlags builds the authenticator flags byte.
func (m *MockAuthenticator) buildFlags(includeCredential bool) byte {
	var flags byte
	if m.UserPresent {
		flags |= FlagUserPresent
	}
	if m.UserVerified {
		flags |= FlagUserVerified
	}
	if includeCredential {
		flags |= FlagAttestedCredential
	}
	return flags
}

// buildAuthenticatorData builds the binary authenticator data structure.
// Attested credential data is appended only for registration.
func (m *MockAuthenticator) buildAuthenticatorData(includeCredential bool) ([]byte, error) {
	var buf bytes.Buffer

	buf.Write(m.rpIDHash)
	buf.WriteByte(m.buildFlags(includeCredential))

	counter := make([]byte, 4)
	binary.BigEndian.PutUint32(counter, m.SignCount)
	buf.Write(counter)

	if includeCredential {
		buf.Write(m.AAGUID)

		credIDLen := make([]byte, 2)
		binary.BigEndian.PutUint16(credIDLen, uint16(len(m.CredentialID)))
		buf.Write(credIDLen)
		buf.Write(m.CredentialID)

		pubKeyBytes, err := m.PublicKeyBytes()
		if err != nil {
			return nil, err
		}
		buf.Write(pubKeyBytes)
	}

	return buf.Bytes(), nil
}

// buildClientDataJSON builds the client data payload echoing the challenge.
func (m *MockAuthenticator) buildClientDataJSON(challenge, origin, ceremonyType string) []byte {
	jsonBytes, _ := json.Marshal(CollectedClientData{
		Type:      ceremonyType,
		Challenge: challenge,
		Origin:    origin,
	})
	return jsonBytes
}
