// Package auth issues and verifies the HMAC bearer tokens that identify the
// actor behind a request.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"yunmun/api/internal/rbac"
	"yunmun/api/internal/util"
)

type Claims struct {
	Sub  string `json:"sub"`
	Name string `json:"name"`
	Role string `json:"role"`
	JTI  string `json:"jti"`
	Exp  int64  `json:"exp"`
}

// Actor is the resolved caller of an operation.
type Actor struct {
	UserID string
	Name   string
	Role   rbac.Role
}

func (a Actor) Authenticated() bool {
	return a.UserID != "" && a.Role != ""
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

func IssueToken(secret []byte, claims Claims) (string, error) {
	payloadBytes, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(payloadBytes)
	signature := sign(secret, payload)
	return payload + "." + signature, nil
}

// IssueForActor mints a token for the actor valid for ttl from now.
func IssueForActor(secret []byte, actor Actor, ttl time.Duration, now time.Time) (string, error) {
	if !actor.Authenticated() {
		return "", ErrInvalidToken
	}
	name := actor.Name
	if name == "" {
		name = actor.UserID
	}
	return IssueToken(secret, Claims{
		Sub:  actor.UserID,
		Name: name,
		Role: string(actor.Role),
		JTI:  util.NewID("tok"),
		Exp:  now.Add(ttl).Unix(),
	})
}

func ParseToken(secret []byte, token string) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return Claims{}, ErrInvalidToken
	}
	payload := parts[0]
	signature := parts[1]

	expected := sign(secret, payload)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return Claims{}, ErrInvalidToken
	}

	decoded, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	var claims Claims
	if err := json.Unmarshal(decoded, &claims); err != nil {
		return Claims{}, ErrInvalidToken
	}
	if claims.Sub == "" || claims.Name == "" || claims.JTI == "" || claims.Exp == 0 {
		return Claims{}, ErrInvalidToken
	}
	if time.Now().Unix() >= claims.Exp {
		return Claims{}, ErrExpiredToken
	}
	return claims, nil
}

// ActorFromToken verifies the token and resolves its role. Tokens carrying
// a role outside rbac.Roles are rejected.
func ActorFromToken(secret []byte, token string) (Actor, error) {
	claims, err := ParseToken(secret, token)
	if err != nil {
		return Actor{}, err
	}
	role, err := rbac.ParseRole(claims.Role)
	if err != nil {
		return Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return Actor{UserID: claims.Sub, Name: claims.Name, Role: role}, nil
}

func sign(secret []byte, payload string) string {
	sum := hmac.New(sha256.New, secret)
	_, _ = sum.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(sum.Sum(nil))
}
