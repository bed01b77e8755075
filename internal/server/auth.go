package server

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/matsen/publications/internal/logging"
)

// HashPassword returns a bcrypt hash suitable for server.admin_password_hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// requireAuth checks HTTP basic credentials against the configured admin user
// and bcrypt hash.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminPassword == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok {
			s.unauthorized(w, r, "missing credentials")
			return
		}
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.cfg.AdminUser)) == 1
		passOK := bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminPassword), []byte(pass)) == nil
		if !userOK || !passOK {
			s.unauthorized(w, r, "invalid credentials")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) unauthorized(w http.ResponseWriter, r *http.Request, reason string) {
	logging.SecurityEvent(r.Context(), s.logger, "unauthorized_request", "auth",
		"path", r.URL.Path,
		"reason", reason)
	w.Header().Set("WWW-Authenticate", `Basic realm="pubs"`)
	respondError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
}

// rateLimit rejects requests beyond the global token bucket with 429.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := s.limiter.Reserve()
		if delay := res.Delay(); delay > 0 {
			res.Cancel()
			secs := int(delay.Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			logging.SecurityEvent(r.Context(), s.logger, "rate_limited", "server", "path", r.URL.Path)
			respondError(w, http.StatusTooManyRequests, "rate_limited", "Too many imports, retry later")
			return
		}
		next.ServeHTTP(w, r)
	})
}
