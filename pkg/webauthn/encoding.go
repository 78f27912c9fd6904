// Copyright (c) 2025 ysam020
//
// This file is part of hrms-sub000.
//
// hrms-sub000 is licensed under the GNU Affero General Public License v3.0
// (AGPL-3.0). See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package webauthn

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// BinaryData is a byte slice that accepts the formats browsers and client
// shims actually send: a base64url (or base64) string, a JSON array of byte
// values, or a serialized Node Buffer ({"type":"Buffer","data":[...]}).
// It marshals back out as a base64url string without padding.
type BinaryData []byte

// UnmarshalJSON implements json.Unmarshaler.
func (b *BinaryData) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*b = nil
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		decoded, err := DecodeFlexibleBase64(s)
		if err != nil {
			return err
		}
		*b = decoded
		return nil
	case '[':
		// encoding/json maps a JSON array onto []uint8 only via a base64
		// string, so decode through []uint16 with explicit range checks.
		var nums []uint16
		if err := json.Unmarshal(data, &nums); err != nil {
			return err
		}
		raw := make([]byte, len(nums))
		for i, n := range nums {
			if n > 0xFF {
				return fmt.Errorf("byte array element %d out of range: %d", i, n)
			}
			raw[i] = byte(n)
		}
		*b = raw
		return nil
	case '{':
		var buf struct {
			Data []uint16 `json:"data"`
		}
		if err := json.Unmarshal(data, &buf); err != nil {
			return err
		}
		raw := make([]byte, len(buf.Data))
		for i, n := range buf.Data {
			if n > 0xFF {
				return fmt.Errorf("buffer element %d out of range: %d", i, n)
			}
			raw[i] = byte(n)
		}
		*b = raw
		return nil
	}
	return fmt.Errorf("unsupported binary encoding")
}

// MarshalJSON implements json.Marshaler.
func (b BinaryData) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.RawURLEncoding.EncodeToString(b))
}

// DecodeFlexibleBase64 decodes a base64 string regardless of which of the
// four standard alphabets/padding variants produced it.
func DecodeFlexibleBase64(s string) ([]byte, error) {
	if decoded, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return decoded, nil
	}
	if decoded, err := base64.URLEncoding.DecodeString(s); err == nil {
		return decoded, nil
	}
	if decoded, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(s)
}

// EncodeBase64 returns the canonical base64url (no padding) encoding used in
// challenges, credential IDs, and user handles on the wire.
func EncodeBase64(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
