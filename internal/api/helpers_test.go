package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AaronLay10/FNOLSimulator/internal/clock"
	"github.com/AaronLay10/FNOLSimulator/internal/config"
	"github.com/AaronLay10/FNOLSimulator/internal/simulator"
	"github.com/AaronLay10/FNOLSimulator/internal/workflow"
)

func newTestSimulator(t *testing.T) (*simulator.Simulator, *clock.Manual) {
	t.Helper()
	g, err := workflow.Default()
	if err != nil {
		t.Fatalf("default workflow: %v", err)
	}
	clk := clock.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	sim, err := simulator.New(g, simulator.Options{Clock: clk})
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}
	return sim, clk
}

func newTestServer(t *testing.T, creds config.Credentials) (*Server, *simulator.Simulator, *clock.Manual) {
	t.Helper()
	sim, clk := newTestSimulator(t)
	srv := NewServer(sim, Options{Credentials: creds, FrameInterval: time.Hour})
	return srv, sim, clk
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}
