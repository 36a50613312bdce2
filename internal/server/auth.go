package server

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// AuthConfig holds the single admin account. Exactly one of Password or
// PasswordHash (bcrypt) is normally set; if both are, the hash wins.
type AuthConfig struct {
	User         string
	Password     string
	PasswordHash string
	Realm        string
	MaxFailures  int           // failed attempts per client before lockout; 0 disables
	Lockout      time.Duration // lockout length, also the window failures are counted in
}

func (a AuthConfig) realm() string {
	if a.Realm == "" {
		return "Admin Area"
	}
	return a.Realm
}

// verify checks a username and password against the configured account.
// Both comparisons always run so timing does not reveal which one failed.
func (a AuthConfig) verify(user, pass string) bool {
	userOK := digestEqual(user, a.User)

	var passOK bool
	switch {
	case a.PasswordHash != "":
		passOK = bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(pass)) == nil
	case a.Password != "":
		passOK = digestEqual(pass, a.Password)
	}
	return userOK && passOK
}

// digestEqual compares SHA-256 digests in constant time, hiding length.
func digestEqual(got, want string) bool {
	g := sha256.Sum256([]byte(got))
	w := sha256.Sum256([]byte(want))
	return subtle.ConstantTimeCompare(g[:], w[:]) == 1
}

// UserFromContext returns the authenticated admin name, if any.
func UserFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(userKey).(string); ok {
		return s
	}
	return ""
}

// requireBasicAuth challenges requests without valid admin credentials.
func (s *Server) requireBasicAuth(next http.Handler) http.Handler {
	challenge := "Basic realm=" + strconv.Quote(s.cfg.Auth.realm())
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := RequestIDFromContext(r.Context())
		ip := clientIP(r, s.cfg.TrustProxy)

		if s.lockout != nil {
			if d := s.lockout.lockedFor(ip); d > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(d.Seconds()+0.999)))
				writeMessage(w, http.StatusTooManyRequests, "Too many failed login attempts")
				return
			}
		}

		user, pass, ok := r.BasicAuth()
		if !ok || !s.cfg.Auth.verify(user, pass) {
			if ok {
				s.metrics.RecordAuth(false)
				s.log.Warningf("rid=%s msg=\"admin auth failed\" user=%q ip=%s", rid, user, ip)
				if s.lockout != nil {
					if locked, until := s.lockout.recordFailure(ip); locked {
						s.log.Warningf("rid=%s msg=\"admin locked out\" ip=%s until=%s", rid, ip, until.Format(time.RFC3339))
					}
				}
			}
			w.Header().Set("WWW-Authenticate", challenge)
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if s.lockout != nil {
			s.lockout.recordSuccess(ip)
		}
		s.metrics.RecordAuth(true)
		ctx := context.WithValue(r.Context(), userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
