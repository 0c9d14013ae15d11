package domain

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/Vovarama1992/hope/internal/ports"
)

// authService guards the control API with one shared password. The token
// is an HMAC of a fixed message, so it stays valid across restarts as
// long as the secret does.
type authService struct {
	password string
	secret   string
}

func NewAuthService(password, secret string) ports.AuthService {
	return &authService{
		password: password,
		secret:   secret,
	}
}

// Enabled is false when no password is configured; the API is then open.
func (s *authService) Enabled() bool {
	return s.password != ""
}

func (s *authService) Login(ctx context.Context, password string) (string, error) {
	if !s.Enabled() {
		return "", nil
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) != 1 {
		return "", ports.ErrUnauthorized
	}
	return s.sign("allowed"), nil
}

func (s *authService) ValidateToken(ctx context.Context, token string) (bool, error) {
	if !s.Enabled() {
		return true, nil
	}
	valid := s.sign("allowed")
	return hmac.Equal([]byte(token), []byte(valid)), nil
}

func (s *authService) sign(msg string) string {
	h := hmac.New(sha256.New, []byte(s.secret))
	h.Write([]byte(msg))
	return hex.EncodeToString(h.Sum(nil))
}
