package credential

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"checkin/internal/roster"
)

// ErrInvalidPayload is returned for scanned text that is not a credential.
var ErrInvalidPayload = errors.New("invalid credential payload")

// guestClaims is the signed form of a credential.
type guestClaims struct {
	roster.Guest
	jwt.RegisteredClaims
}

// Codec turns guests into QR payloads and back. With a key the payload is an
// HS256 token; without one it is base64 JSON and anyone can mint it.
type Codec struct {
	key []byte
}

// NewCodec creates a codec; an empty key selects plain payloads.
func NewCodec(key string) *Codec {
	return &Codec{key: []byte(key)}
}

// Signed reports whether payloads carry a signature.
func (c *Codec) Signed() bool { return len(c.key) > 0 }

// Encode builds the payload embedded in a guest's QR code.
func (c *Codec) Encode(g roster.Guest) (string, error) {
	if c.Signed() {
		claims := guestClaims{Guest: g, RegisteredClaims: jwt.RegisteredClaims{Subject: g.ID}}
		if !g.QRGenerated.IsZero() {
			claims.IssuedAt = jwt.NewNumericDate(g.QRGenerated)
		}
		return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	}

	raw, err := json.Marshal(g)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode reads a scanned payload. Plain payloads are refused when the codec signs.
func (c *Codec) Decode(payload string) (roster.Guest, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return roster.Guest{}, ErrInvalidPayload
	}
	if c.Signed() {
		return c.decodeSigned(payload)
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return roster.Guest{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	var g roster.Guest
	if err := json.Unmarshal(raw, &g); err != nil {
		return roster.Guest{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if g.ID == "" {
		return roster.Guest{}, fmt.Errorf("%w: missing id", ErrInvalidPayload)
	}
	return g, nil
}

func (c *Codec) decodeSigned(payload string) (roster.Guest, error) {
	var claims guestClaims
	_, err := jwt.ParseWithClaims(payload, &claims, func(token *jwt.Token) (interface{}, error) {
		return c.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return roster.Guest{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if claims.Guest.ID == "" || claims.Subject != claims.Guest.ID {
		return roster.Guest{}, fmt.Errorf("%w: subject mismatch", ErrInvalidPayload)
	}
	return claims.Guest, nil
}
