package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AaronLay10/FNOLSimulator/internal/config"
)

var testCreds = config.Credentials{
	Admin:    config.Credential{User: "admin", Password: "secret"},
	Operator: config.Credential{User: "operator", Password: "opsecret"},
}

func okHandler(called *bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	}
}

func TestAuthDisabledWithoutCredentials(t *testing.T) {
	a := newAuthenticator(config.Credentials{})
	if a.enabled() {
		t.Fatal("auth should be disabled when no credentials are configured")
	}

	called := false
	handler := a.require(okHandler(&called), RoleAdmin)

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest("GET", "/test", nil))

	if !called {
		t.Error("handler should be called when auth is disabled")
	}
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestAuthEnabledRequiresCredentials(t *testing.T) {
	a := newAuthenticator(testCreds)
	called := false
	handler := a.require(okHandler(&called), RoleAdmin, RoleOperator)

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest("GET", "/test", nil))

	if called {
		t.Error("handler should not be called without credentials")
	}
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", w.Code)
	}
	if got := w.Header().Get("WWW-Authenticate"); got == "" {
		t.Error("expected WWW-Authenticate header")
	}
}

func TestAuthRoles(t *testing.T) {
	a := newAuthenticator(testCreds)

	tests := []struct {
		name     string
		user     string
		pass     string
		allowed  []Role
		wantCode int
	}{
		{name: "admin on admin route", user: "admin", pass: "secret", allowed: []Role{RoleAdmin}, wantCode: http.StatusOK},
		{name: "operator on admin route", user: "operator", pass: "opsecret", allowed: []Role{RoleAdmin}, wantCode: http.StatusForbidden},
		{name: "operator on shared route", user: "operator", pass: "opsecret", allowed: []Role{RoleAdmin, RoleOperator}, wantCode: http.StatusOK},
		{name: "admin on shared route", user: "admin", pass: "secret", allowed: []Role{RoleAdmin, RoleOperator}, wantCode: http.StatusOK},
		{name: "wrong password", user: "admin", pass: "wrong", allowed: []Role{RoleAdmin}, wantCode: http.StatusUnauthorized},
		{name: "unknown user", user: "guest", pass: "secret", allowed: []Role{RoleAdmin, RoleOperator}, wantCode: http.StatusUnauthorized},
		{name: "crossed credentials", user: "admin", pass: "opsecret", allowed: []Role{RoleAdmin, RoleOperator}, wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := a.require(okHandler(&called), tt.allowed...)

			req := httptest.NewRequest("GET", "/test", nil)
			req.SetBasicAuth(tt.user, tt.pass)
			w := httptest.NewRecorder()
			handler(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, w.Code)
			}
			if called != (tt.wantCode == http.StatusOK) {
				t.Errorf("handler called = %v, want %v", called, tt.wantCode == http.StatusOK)
			}
		})
	}
}

func TestAuthOperatorOnly(t *testing.T) {
	a := newAuthenticator(config.Credentials{
		Operator: config.Credential{User: "operator", Password: "opsecret"},
	})
	if !a.enabled() {
		t.Fatal("auth should be enabled with only operator credentials")
	}

	req := httptest.NewRequest("GET", "/test", nil)
	req.SetBasicAuth("admin", "")
	if role := a.authenticate(req); role != "" {
		t.Errorf("unset admin credential must never match, got role %q", role)
	}
}

func TestRoutesEnforceRoles(t *testing.T) {
	srv, _, _ := newTestServer(t, testCreds)
	h := srv.Handler()

	// Health and readiness stay open.
	for _, path := range []string{"/health", "/ready"} {
		w := do(t, h, "GET", path, "")
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200 without credentials, got %d", path, w.Code)
		}
	}

	req := httptest.NewRequest("GET", "/api/status", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status without credentials: expected 401, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/status", nil)
	req.SetBasicAuth("operator", "opsecret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status as operator: expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest("POST", "/api/layout/auto", nil)
	req.SetBasicAuth("operator", "opsecret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("auto layout as operator: expected 403, got %d", w.Code)
	}

	req = httptest.NewRequest("POST", "/api/layout/auto", nil)
	req.SetBasicAuth("admin", "secret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("auto layout as admin: expected 200, got %d", w.Code)
	}
}
