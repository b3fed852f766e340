package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/linkorbit/internal/app"
	"github.com/pscheid92/linkorbit/internal/broadcast"
	"github.com/pscheid92/linkorbit/internal/domain"
	"github.com/pscheid92/linkorbit/internal/platform/config"
)

var testEpoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

const testAdminToken = "admin-token-for-tests"

// --- Mock implementations ---

type mockActions struct {
	reactFn    func(ctx context.Context, userID string, id domain.CandidateID, value int) (domain.ReactResult, error)
	nominateFn func(ctx context.Context, userID string, id domain.CandidateID) (domain.NominateResult, error)
	countFn    func(id domain.CandidateID) (int, error)
}

func (m *mockActions) React(ctx context.Context, userID string, id domain.CandidateID, value int) (domain.ReactResult, error) {
	if m.reactFn != nil {
		return m.reactFn(ctx, userID, id, value)
	}
	return domain.ReactResult{}, errors.New("not implemented")
}

func (m *mockActions) Nominate(ctx context.Context, userID string, id domain.CandidateID) (domain.NominateResult, error) {
	if m.nominateFn != nil {
		return m.nominateFn(ctx, userID, id)
	}
	return domain.NominateResult{}, errors.New("not implemented")
}

func (m *mockActions) NominationCount(id domain.CandidateID) (int, error) {
	if m.countFn != nil {
		return m.countFn(id)
	}
	return 0, domain.ErrNoActiveRotation
}

type mockScheduler struct {
	skipFn func() error
	status app.SchedulerStatus
	skips  int
}

func (m *mockScheduler) RequestSkip() error {
	m.skips++
	if m.skipFn != nil {
		return m.skipFn()
	}
	return nil
}

func (m *mockScheduler) Status() app.SchedulerStatus { return m.status }

type fixedState struct {
	snap domain.Snapshot
}

func (f fixedState) Snapshot(now time.Time) domain.Snapshot {
	snap := f.snap
	snap.TakenAt = now
	return snap
}

type fixedDepth int

func (d fixedDepth) Len() int { return int(d) }

// --- Test helpers ---

func testSnapshot() domain.Snapshot {
	return domain.Snapshot{
		RotationID: 3,
		Featured: &domain.FeaturedSlot{
			Candidate: domain.Candidate{ID: 7, Title: "Seven", URL: "https://example.com/7"},
			StartedAt: testEpoch,
			Duration:  120 * time.Second,
			Remaining: 90 * time.Second,
			Reason:    domain.ReasonFresh,
		},
		Satellites: []domain.Satellite{
			{
				Candidate: domain.Candidate{ID: 8, Title: "Eight", URL: "https://example.com/8"},
				Position:  "top",
				Label:     "deep-dive",
				RevealAt:  testEpoch.Add(20 * time.Second),
				Revealed:  true,
			},
		},
		ViewerCount: 1,
	}
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:        "test",
		Port:          "0",
		AppURL:        "https://linkorbit.example.com",
		SessionSecret: "test-secret-key-32-bytes-long!!!",
		SessionMaxAge: time.Hour,
		AdminToken:    testAdminToken,
		APIRateLimit:  100,
		APIRateBurst:  100,

		MaxStreamsPerIP: 4,
	}
}

type testServerOption func(cfg *config.Config, deps *Deps)

func newTestServer(t *testing.T, opts ...testServerOption) *Server {
	t.Helper()

	cfg := testConfig()
	deps := Deps{
		Actions:   &mockActions{},
		State:     fixedState{snap: testSnapshot()},
		Hub:       broadcast.NewHub(8, 0, nil, nil),
		Scheduler: &mockScheduler{status: app.SchedulerStatus{Running: true, Ticks: 1}},
		Outbox:    fixedDepth(0),
		Clock:     clockwork.NewFakeClockAt(testEpoch.Add(30 * time.Second)),
	}

	for _, opt := range opts {
		opt(cfg, &deps)
	}

	return NewServer(cfg, deps)
}

func withActions(a *mockActions) testServerOption {
	return func(_ *config.Config, deps *Deps) { deps.Actions = a }
}

func withScheduler(s *mockScheduler) testServerOption {
	return func(_ *config.Config, deps *Deps) { deps.Scheduler = s }
}

func withHub(h *broadcast.Hub) testServerOption {
	return func(_ *config.Config, deps *Deps) { deps.Hub = h }
}

func withHealthChecks(checks ...HealthCheck) testServerOption {
	return func(_ *config.Config, deps *Deps) { deps.HealthChecks = checks }
}

func withRealClock() testServerOption {
	return func(_ *config.Config, deps *Deps) { deps.Clock = nil }
}

func withConfig(mutate func(cfg *config.Config)) testServerOption {
	return func(cfg *config.Config, _ *Deps) { mutate(cfg) }
}

// serve runs req through the full middleware stack.
func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

// callHandler wraps a handler with error middleware, matching production behavior
func callHandler(handler echo.HandlerFunc, c echo.Context) error {
	return ErrorHandlingMiddleware()(handler)(c)
}
