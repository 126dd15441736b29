package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
)

const sessionCookie = "session"

// signToken produces the session cookie value: the username and an
// HMAC-SHA256 signature over it, both base64.
func signToken(username, secretKey string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(username))
	sig := mac.Sum(nil)
	return base64.StdEncoding.EncodeToString([]byte(username)) + "|" + base64.StdEncoding.EncodeToString(sig)
}

func verifyToken(token, secretKey string) bool {
	parts := strings.Split(token, "|")
	if len(parts) != 2 {
		return false
	}
	username, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}
	gotSig, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write(username)
	return hmac.Equal(gotSig, mac.Sum(nil))
}

func (s *Server) authenticated(r *http.Request) bool {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return false
	}
	return verifyToken(c.Value, s.cfg.SecretKey)
}

// requireAuth gates the API behind the session cookie.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticated(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Authentication required"})
			return
		}
		next(w, r)
	}
}
