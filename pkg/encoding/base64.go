// Package encoding provides the text and bit-level codecs used to serialize
// fingerprints: a URL-safe, unpadded base64 variant, packed little-endian bit
// streams, and JSON-serializable byte types built on them.
package encoding

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// Alphabet is the 64-symbol fingerprint alphabet. It is URL safe and never
// padded.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

var fingerprintEncoding = base64.NewEncoding(Alphabet).WithPadding(base64.NoPadding)

// reverseTable maps ASCII bytes back to their 6-bit value. Bytes outside the
// alphabet map to 0.
var reverseTable = func() [128]byte {
	var t [128]byte
	for i := 0; i < len(Alphabet); i++ {
		t[Alphabet[i]] = byte(i)
	}
	return t
}()

func reverse(c byte) byte {
	if c >= 128 {
		return 0
	}
	return reverseTable[c]
}

// EncodedLen returns the length of the text form of n bytes: ceil(n*4/3).
func EncodedLen(n int) int {
	return (n*4 + 2) / 3
}

// DecodedLen returns the number of bytes decoded from n symbols: floor(3*n/4).
func DecodedLen(n int) int {
	return n * 3 / 4
}

// EncodeFingerprint encodes src with the fingerprint alphabet. A trailing
// group of 1 or 2 bytes produces 2 or 3 symbols.
func EncodeFingerprint(src []byte) string {
	return fingerprintEncoding.EncodeToString(src)
}

// DecodeFingerprint decodes text produced by EncodeFingerprint.
//
// Decoding is lenient: symbols outside the alphabet decode as zero and a
// dangling single symbol is ignored. This keeps existing fingerprints
// decodable bit-for-bit. New call sites should use DecodeFingerprintStrict.
func DecodeFingerprint(text string) []byte {
	n := len(text)
	out := make([]byte, DecodedLen(n))

	i, j := 0, 0
	for ; i+4 <= n; i += 4 {
		b0 := reverse(text[i])
		b1 := reverse(text[i+1])
		b2 := reverse(text[i+2])
		b3 := reverse(text[i+3])
		out[j] = b0<<2 | b1>>4
		out[j+1] = b1<<4 | b2>>2
		out[j+2] = b2<<6 | b3
		j += 3
	}

	switch n - i {
	case 2:
		b0 := reverse(text[i])
		b1 := reverse(text[i+1])
		out[j] = b0<<2 | b1>>4
	case 3:
		b0 := reverse(text[i])
		b1 := reverse(text[i+1])
		b2 := reverse(text[i+2])
		out[j] = b0<<2 | b1>>4
		out[j+1] = b1<<4 | b2>>2
	}
	return out
}

// DecodeFingerprintStrict decodes text and rejects symbols outside the
// alphabet and lengths that no encoding can produce.
func DecodeFingerprintStrict(text string) ([]byte, error) {
	b, err := fingerprintEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("encoding: decode fingerprint: %w", err)
	}
	return b, nil
}

// Base64Data is a byte slice that serializes to/from the fingerprint alphabet
// in JSON.
type Base64Data []byte

// MarshalJSON implements json.Marshaler.
func (b Base64Data) MarshalJSON() ([]byte, error) {
	return []byte(`"` + EncodeFingerprint(b) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Base64Data) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return errors.New("unmarshal json base64 data: empty data")
	}
	switch data[0] {
	case 'n': // null
		return nil
	case '"':
		if len(data) < 2 || data[len(data)-1] != '"' {
			return errors.New("unmarshal json base64 data: invalid string")
		}
		decoded, err := DecodeFingerprintStrict(string(data[1 : len(data)-1]))
		if err != nil {
			return err
		}
		*b = decoded
		return nil
	default:
		return fmt.Errorf("invalid base64 data: %s", string(data))
	}
}

// String returns the encoded text.
func (b Base64Data) String() string {
	return EncodeFingerprint(b)
}

// HexData is a byte slice that serializes to/from hexadecimal in JSON.
type HexData []byte

// MarshalJSON implements json.Marshaler.
func (h HexData) MarshalJSON() ([]byte, error) {
	return []byte(`"` + hex.EncodeToString(h) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (h *HexData) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return errors.New("unmarshal json hex data: empty data")
	}
	switch data[0] {
	case 'n': // null
		return nil
	case '"':
		if len(data) < 2 || data[len(data)-1] != '"' {
			return errors.New("unmarshal json hex data: invalid string")
		}
		decoded, err := hex.DecodeString(string(data[1 : len(data)-1]))
		if err != nil {
			return err
		}
		*h = decoded
		return nil
	default:
		return fmt.Errorf("invalid hex data: %s", string(data))
	}
}

// String returns the hex-encoded string representation.
func (h HexData) String() string {
	return hex.EncodeToString(h)
}
