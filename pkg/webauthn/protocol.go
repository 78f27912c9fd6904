// Copyright (c) 2025 ysam020
//
// This file is part of hrms-sub000.
//
// hrms-sub000 is licensed under the GNU Affero General Public License v3.0
// (AGPL-3.0). See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package webauthn

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"hash"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// Authenticator data flag bits.
const (
	FlagUserPresent        = 0x01
	FlagUserVerified       = 0x04
	FlagAttestedCredential = 0x40
)

// Authenticator data layout offsets. The fixed header is
// rpIdHash[0:32] | flags[32] | signCount[33:37] big-endian.
const (
	rpIDHashLength       = 32
	flagsOffset          = 32
	counterOffset        = 33
	minAuthDataLength    = 37
	aaguidLength         = 16
	credentialIDLenBytes = 2
)

// AuthenticatorData is the parsed binary authenticator data structure.
// The attested credential fields are populated only when the AT flag is set
// (registration ceremonies).
type AuthenticatorData struct {
	RPIDHash  []byte
	Flags     byte
	SignCount uint32

	AAGUID              []byte
	CredentialID        []byte
	CredentialPublicKey []byte // raw COSE key bytes
}

// UserPresent reports whether the UP flag is set.
func (a *AuthenticatorData) UserPresent() bool {
	return a.Flags&FlagUserPresent != 0
}

// UserVerified reports whether the UV flag is set.
func (a *AuthenticatorData) UserVerified() bool {
	return a.Flags&FlagUserVerified != 0
}

// HasAttestedCredential reports whether the AT flag is set.
func (a *AuthenticatorData) HasAttestedCredential() bool {
	return a.Flags&FlagAttestedCredential != 0
}

// ParseAuthenticatorData parses the raw authenticator data bytes.
func ParseAuthenticatorData(raw []byte) (*AuthenticatorData, error) {
	if len(raw) < minAuthDataLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedAuthenticatorData, len(raw))
	}

	data := &AuthenticatorData{
		RPIDHash:  raw[:rpIDHashLength],
		Flags:     raw[flagsOffset],
		SignCount: binary.BigEndian.Uint32(raw[counterOffset : counterOffset+4]),
	}

	if !data.HasAttestedCredential() {
		return data, nil
	}

	rest := raw[minAuthDataLength:]
	if len(rest) < aaguidLength+credentialIDLenBytes {
		return nil, fmt.Errorf("%w: truncated attested credential data", ErrMalformedAuthenticatorData)
	}
	data.AAGUID = rest[:aaguidLength]
	rest = rest[aaguidLength:]

	credIDLen := int(binary.BigEndian.Uint16(rest[:credentialIDLenBytes]))
	rest = rest[credentialIDLenBytes:]
	if len(rest) < credIDLen {
		return nil, fmt.Errorf("%w: credential ID length %d exceeds data", ErrMalformedAuthenticatorData, credIDLen)
	}
	data.CredentialID = rest[:credIDLen]
	rest = rest[credIDLen:]

	// The COSE key is a single CBOR value; extensions may follow it.
	dec := cbor.NewDecoder(bytes.NewReader(rest))
	var key cbor.RawMessage
	if err := dec.Decode(&key); err != nil {
		return nil, fmt.Errorf("%w: invalid credential public key: %v", ErrMalformedAuthenticatorData, err)
	}
	data.CredentialPublicKey = []byte(key)

	return data, nil
}

// AttestationObject is the decoded CBOR attestation object.
type AttestationObject struct {
	Format       string          `cbor:"fmt"`
	AttStatement cbor.RawMessage `cbor:"attStmt"`
	AuthData     []byte          `cbor:"authData"`
}

// ParseAttestationObject decodes the CBOR attestation object produced at
// registration.
func ParseAttestationObject(raw []byte) (*AttestationObject, error) {
	var obj AttestationObject
	if err := cbor.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAttestation, err)
	}
	if len(obj.AuthData) == 0 {
		return nil, fmt.Errorf("%w: missing authData", ErrMalformedAttestation)
	}
	return &obj, nil
}

// COSE key types.
const (
	coseKeyTypeOKP = 1
	coseKeyTypeEC2 = 2
	coseKeyTypeRSA = 3
)

// COSE elliptic curves.
const (
	coseCurveP256    = 1
	coseCurveP384    = 2
	coseCurveP521    = 3
	coseCurveEd25519 = 6
)

type coseKeyHeader struct {
	KeyType   int `cbor:"1,keyasint"`
	Algorithm int `cbor:"3,keyasint"`
}

type coseEC2Key struct {
	Curve int    `cbor:"-1,keyasint"`
	X     []byte `cbor:"-2,keyasint"`
	Y     []byte `cbor:"-3,keyasint"`
}

type coseOKPKey struct {
	Curve int    `cbor:"-1,keyasint"`
	X     []byte `cbor:"-2,keyasint"`
}

type coseRSAKey struct {
	Modulus  []byte `cbor:"-1,keyasint"`
	Exponent []byte `cbor:"-2,keyasint"`
}

// VerifySignature checks an assertion signature against a raw COSE public
// key. signedData is authenticatorData || SHA256(clientDataJSON).
func VerifySignature(coseKey, signedData, signature []byte) error {
	var header coseKeyHeader
	if err := cbor.Unmarshal(coseKey, &header); err != nil {
		return fmt.Errorf("%w: invalid COSE key: %v", ErrInvalidSignature, err)
	}

	switch header.KeyType {
	case coseKeyTypeEC2:
		return verifyEC2(coseKey, signedData, signature)
	case coseKeyTypeOKP:
		return verifyOKP(coseKey, signedData, signature)
	case coseKeyTypeRSA:
		return verifyRSA(coseKey, signedData, signature)
	}
	return fmt.Errorf("%w: unsupported COSE key type %d", ErrInvalidSignature, header.KeyType)
}

func verifyEC2(coseKey, signedData, signature []byte) error {
	var key coseEC2Key
	if err := cbor.Unmarshal(coseKey, &key); err != nil {
		return fmt.Errorf("%w: invalid EC2 key: %v", ErrInvalidSignature, err)
	}

	var curve elliptic.Curve
	var digest hash.Hash
	switch key.Curve {
	case coseCurveP256:
		curve, digest = elliptic.P256(), sha256.New()
	case coseCurveP384:
		curve, digest = elliptic.P384(), sha512.New384()
	case coseCurveP521:
		curve, digest = elliptic.P521(), sha512.New()
	default:
		return fmt.Errorf("%w: unsupported curve %d", ErrInvalidSignature, key.Curve)
	}

	pub := &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(key.X),
		Y:     new(big.Int).SetBytes(key.Y),
	}
	if !pub.Curve.IsOnCurve(pub.X, pub.Y) {
		return fmt.Errorf("%w: public key not on curve", ErrInvalidSignature)
	}

	digest.Write(signedData)
	if !ecdsa.VerifyASN1(pub, digest.Sum(nil), signature) {
		return ErrInvalidSignature
	}
	return nil
}

func verifyOKP(coseKey, signedData, signature []byte) error {
	var key coseOKPKey
	if err := cbor.Unmarshal(coseKey, &key); err != nil {
		return fmt.Errorf("%w: invalid OKP key: %v", ErrInvalidSignature, err)
	}
	if key.Curve != coseCurveEd25519 {
		return fmt.Errorf("%w: unsupported OKP curve %d", ErrInvalidSignature, key.Curve)
	}
	if len(key.X) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: bad Ed25519 key length %d", ErrInvalidSignature, len(key.X))
	}
	if !ed25519.Verify(ed25519.PublicKey(key.X), signedData, signature) {
		return ErrInvalidSignature
	}
	return nil
}

func verifyRSA(coseKey, signedData, signature []byte) error {
	var key coseRSAKey
	if err := cbor.Unmarshal(coseKey, &key); err != nil {
		return fmt.Errorf("%w: invalid RSA key: %v", ErrInvalidSignature, err)
	}

	pub := &rsa.PublicKey{
		N: new(big.Int).SetBytes(key.Modulus),
		E: int(new(big.Int).SetBytes(key.Exponent).Int64()),
	}
	digest := sha256.Sum256(signedData)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], signature); err != nil {
		return ErrInvalidSignature
	}
	return nil
}
