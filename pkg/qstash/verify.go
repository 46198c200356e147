package qstash

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidSignature = errors.New("invalid qstash signature")

const issuer = "Upstash"

type signatureClaims struct {
	Body string `json:"body"`
	jwt.RegisteredClaims
}

// Verifier checks the Upstash-Signature header of callback requests. A
// token signed by either the current or the next key is accepted so keys
// can be rotated.
type Verifier struct {
	keys   []string
	leeway time.Duration
	now    func() time.Time
}

func NewVerifier(currentKey string, nextKey string) *Verifier {
	v := &Verifier{leeway: 5 * time.Second, now: time.Now}
	for _, k := range []string{currentKey, nextKey} {
		if k = strings.TrimSpace(k); k != "" {
			v.keys = append(v.keys, k)
		}
	}
	return v
}

// Verify validates signature against body. destination, when set, must
// match the token subject.
func (v *Verifier) Verify(signature string, body []byte, destination string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return fmt.Errorf("%w: missing signature", ErrInvalidSignature)
	}
	if len(v.keys) == 0 {
		return fmt.Errorf("%w: no signing keys configured", ErrInvalidSignature)
	}

	var lastErr error
	for _, key := range v.keys {
		if err := v.verifyWithKey(signature, body, destination, key); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrInvalidSignature, lastErr)
}

func (v *Verifier) verifyWithKey(signature string, body []byte, destination string, key string) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if destination != "" {
		opts = append(opts, jwt.WithSubject(destination))
	}

	claims := &signatureClaims{}
	_, err := jwt.ParseWithClaims(signature, claims, func(*jwt.Token) (any, error) {
		return []byte(key), nil
	}, opts...)
	if err != nil {
		return err
	}

	want := bodyHash(body)
	if strings.TrimRight(claims.Body, "=") != want {
		return errors.New("body hash mismatch")
	}
	return nil
}

func bodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
