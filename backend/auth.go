// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey struct{}

// userIDKey is the context key for the authenticated user's ID (email).
// The associated value is always a string.
var userIDKey contextKey

// getUserID returns the UserID from the request context, if present.
func getUserID(r *http.Request) string {
	if val := r.Context().Value(userIDKey); val != nil {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return ""
}

// normalizeEmail ensures consistent casing and whitespace for User IDs.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// maskEmail obscures an email address for safe logging.
// e.g. "user@example.com" -> "u***@example.com"
func maskEmail(email string) string {
	if email == "" {
		return "<empty>"
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 || len(parts[0]) < 1 {
		return "****"
	}
	return string(parts[0][0]) + "***@" + parts[1]
}

// sessionKeyFile holds the persisted HMAC signing key for session tokens.
type sessionKeyFile struct {
	Key string `json:"key"`
}

// SessionIssuer mints and verifies the HS256 session tokens carried in the
// auth cookie. The signing key is created on first use and persisted so
// sessions survive restarts.
type SessionIssuer struct {
	CookieName string
	Lifetime   time.Duration
	secret     []byte
}

// NewSessionIssuer loads or creates the signing key.
func NewSessionIssuer(s *storage.Storage, cookieName string, lifetime time.Duration) (*SessionIssuer, error) {
	if cookieName == "" {
		cookieName = "playcall_auth"
	}
	if lifetime <= 0 {
		lifetime = 30 * 24 * time.Hour
	}

	var kf sessionKeyFile
	err := s.ReadDataFile("session.key.json", &kf)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("ReadDataFile: %w", err)
		}
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			return nil, fmt.Errorf("rand: %w", err)
		}
		kf.Key = base64.StdEncoding.EncodeToString(raw)
		if err := s.SaveDataFile("session.key.json", &kf); err != nil {
			return nil, fmt.Errorf("storage.SaveDataFile: %w", err)
		}
	}
	secret, err := base64.StdEncoding.DecodeString(kf.Key)
	if err != nil {
		return nil, fmt.Errorf("corrupt session key: %w", err)
	}
	return &SessionIssuer{CookieName: cookieName, Lifetime: lifetime, secret: secret}, nil
}

// Issue returns a signed session token for the user.
func (si *SessionIssuer) Issue(email string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   normalizeEmail(email),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(si.Lifetime)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(si.secret)
}

// Verify checks a session token and returns the user's email.
func (si *SessionIssuer) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return si.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("invalid session token")
	}
	return claims.Subject, nil
}

// SetCookie writes the session cookie on a response.
func (si *SessionIssuer) SetCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     si.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(si.Lifetime.Seconds()),
	})
}

// ClearCookie removes the session cookie.
func (si *SessionIssuer) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:    si.CookieName,
		Value:   "",
		Path:    "/",
		Expires: time.Unix(0, 0),
		MaxAge:  -1,
	})
}
