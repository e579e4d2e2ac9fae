package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/AaronLay10/FNOLSimulator/internal/config"
)

// Role represents an authorization role.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

// authenticator checks basic-auth credentials. With no credentials
// configured every request is treated as admin.
type authenticator struct {
	creds config.Credentials
}

func newAuthenticator(creds config.Credentials) *authenticator {
	return &authenticator{creds: creds}
}

func (a *authenticator) enabled() bool {
	return a.creds.Enabled()
}

// authenticate returns the caller's role, or "" if the credentials are
// missing or wrong.
func (a *authenticator) authenticate(r *http.Request) Role {
	if !a.enabled() {
		return RoleAdmin
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return ""
	}
	if matches(a.creds.Admin, user, pass) {
		return RoleAdmin
	}
	if matches(a.creds.Operator, user, pass) {
		return RoleOperator
	}
	return ""
}

func matches(c config.Credential, user, pass string) bool {
	if !c.Set() {
		return false
	}
	// Both comparisons always run.
	u := subtle.ConstantTimeCompare([]byte(user), []byte(c.User))
	p := subtle.ConstantTimeCompare([]byte(pass), []byte(c.Password))
	return u&p == 1
}

// require wraps a handler and admits only the given roles.
func (a *authenticator) require(handler http.HandlerFunc, allowed ...Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := a.authenticate(r)
		if role == "" {
			w.Header().Set("WWW-Authenticate", `Basic realm="FNOL Simulator"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		for _, ok := range allowed {
			if role == ok {
				handler(w, r)
				return
			}
		}
		http.Error(w, "Forbidden", http.StatusForbidden)
	}
}
