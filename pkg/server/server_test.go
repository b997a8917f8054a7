package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-bigpig/observable-agent/pkg/agent"
	"github.com/run-bigpig/observable-agent/pkg/influencer"
	"github.com/run-bigpig/observable-agent/pkg/interfaces"
	"github.com/run-bigpig/observable-agent/pkg/llm/dummy"
	"github.com/run-bigpig/observable-agent/pkg/logging"
	"github.com/run-bigpig/observable-agent/pkg/routing"
	"github.com/run-bigpig/observable-agent/pkg/session"
)

// sessionObserver records the session id each generation was logged under
type sessionObserver struct {
	sessions []string
}

func (o *sessionObserver) LogGeneration(ctx context.Context, _ interfaces.Generation) error {
	id, _ := session.GetSessionID(ctx)
	o.sessions = append(o.sessions, id)
	return nil
}

func (o *sessionObserver) Flush() error { return nil }

func newBase(name string, model interfaces.LLM, observer interfaces.ObservabilityProvider) *agent.BaseAgent {
	opts := []agent.Option{agent.WithLogger(logging.NewNop())}
	if model != nil {
		opts = append(opts, agent.WithLLM(model))
	}
	if observer != nil {
		opts = append(opts, agent.WithObserver(observer))
	}
	return agent.New(name, opts...)
}

func newTestServer(t *testing.T, options ...Option) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(append([]Option{WithLogger(logging.NewNop())}, options...)...).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string, headers ...string) (int, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func scrape(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestIndexAndHealth(t *testing.T) {
	srv := newTestServer(t)

	status, body := do(t, srv, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]interface{}{"service": ServiceName, "status": "ok", "version": Version}, body)

	status, body = do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["agent_ready"])
	assert.Equal(t, ServiceName, body["service"])

	ready := newTestServer(t, WithRouter(routing.NewRoutingAgent(newBase(routing.RoutingObservation, nil, nil))))
	_, body = do(t, ready, http.MethodGet, "/health", "")
	assert.Equal(t, true, body["agent_ready"])
}

func TestRouteWithoutModelUsesPolicy(t *testing.T) {
	srv := newTestServer(t, WithRouter(routing.NewRoutingAgent(newBase(routing.RoutingObservation, nil, nil))))

	status, body := do(t, srv, http.MethodPost, "/route", `{"request": "The invoice shows an extra fee on my account."}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "billing", body["route"])
	assert.Equal(t, "Policy fallback used because no LM is configured.", body["explanation"])
	assert.NotContains(t, body, "FallbackReason")

	metrics := scrape(t, srv)
	assert.Contains(t, metrics, `agent_route_decisions_total{fallback="no_lm",route="billing"} 1`)
	assert.Contains(t, metrics, `agent_http_requests_total{path="/route",status="200"} 1`)
}

func TestRouteUsesModelAnswer(t *testing.T) {
	model := dummy.New(`{"reasoning": "asks about price", "route": "Sales", "rationale": "Pricing question"}`)
	observer := &sessionObserver{}
	srv := newTestServer(t, WithRouter(routing.NewRoutingAgent(newBase(routing.RoutingObservation, model, observer))))

	status, body := do(t, srv, http.MethodPost, "/route", `{"request": "Can I get a quote?"}`, SessionHeader, "sess-42")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "sales", body["route"])
	assert.Equal(t, "Pricing question", body["explanation"])
	assert.Equal(t, []string{"sess-42"}, observer.sessions)

	assert.Contains(t, scrape(t, srv), `agent_route_decisions_total{fallback="none",route="sales"} 1`)
}

func TestRouteValidation(t *testing.T) {
	srv := newTestServer(t, WithRouter(routing.NewRoutingAgent(newBase(routing.RoutingObservation, nil, nil))))

	tests := []struct {
		name     string
		body     string
		wantType string
	}{
		{name: "invalid json", body: `{"request":`, wantType: "json_invalid"},
		{name: "missing request", body: `{"text": "hi"}`, wantType: "missing"},
		{name: "wrong type", body: `{"request": 42}`, wantType: "string_type"},
		{name: "not an object", body: `null`, wantType: "model_attributes_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, srv, http.MethodPost, "/route", tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, status)
			detail, ok := body["detail"].([]interface{})
			require.True(t, ok)
			require.Len(t, detail, 1)
			assert.Equal(t, tt.wantType, detail[0].(map[string]interface{})["type"])
		})
	}

	assert.Contains(t, scrape(t, srv), `agent_http_requests_total{path="/route",status="422"} 4`)
}

func TestRouteWithoutAgent(t *testing.T) {
	srv := newTestServer(t)

	status, body := do(t, srv, http.MethodPost, "/route", `{"request": "hello"}`)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Agent not initialized", body["detail"])
}

func TestProfiles(t *testing.T) {
	srv := newTestServer(t)

	status, body := do(t, srv, http.MethodGet, "/influencer/profiles", "")
	require.Equal(t, http.StatusOK, status)
	profiles, ok := body["profiles"].([]interface{})
	require.True(t, ok)
	require.Len(t, profiles, 3)
	assert.Equal(t, map[string]interface{}{
		"name":  "creator_snapshot.json",
		"label": "Maya Ortiz (@opsforcreators)",
	}, profiles[0])
}

func TestIdeasFallbackWithoutModel(t *testing.T) {
	srv := newTestServer(t, WithIdeaAgent(newBase(influencer.Observation, nil, nil)))

	status, body := do(t, srv, http.MethodPost, "/influencer/ideas", `{"target_count": 3}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, DefaultFixture, body["fixture"])
	assert.Equal(t, "@opsforcreators", body["handle"])
	assert.Equal(t, influencer.DashboardRequest, body["request"])
	assert.Equal(t, influencer.FallbackNoLM, body["fallback_reason"])
	assert.Len(t, body["ideas"], 3)

	assert.Contains(t, scrape(t, srv), `agent_video_idea_requests_total{fallback="no_lm"} 1`)
}

func TestIdeasFromModel(t *testing.T) {
	reply, err := json.Marshal(map[string]string{"response": influencer.OfflineIdeas})
	require.NoError(t, err)
	model := dummy.New(string(reply))
	srv := newTestServer(t, WithIdeaAgent(newBase(influencer.Observation, model, nil)))

	status, body := do(t, srv, http.MethodPost, "/influencer/ideas",
		`{"fixture": "creator_snapshot_growth_guild", "request": "Launch week", "target_count": 3, "variation_token": "v1"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "@growthguild", body["handle"])
	assert.NotContains(t, body, "fallback_reason")

	ideas := body["ideas"].([]interface{})
	require.Len(t, ideas, 3)
	assert.Equal(t, "Systems Sprint Recap", ideas[0].(map[string]interface{})["title"])

	prompts := model.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Launch week")
	assert.Contains(t, prompts[0], "v1")
}

func TestIdeasValidation(t *testing.T) {
	srv := newTestServer(t, WithIdeaAgent(newBase(influencer.Observation, nil, nil)))

	for _, count := range []string{"1", "6"} {
		status, body := do(t, srv, http.MethodPost, "/influencer/ideas", `{"target_count": `+count+`}`)
		assert.Equal(t, http.StatusUnprocessableEntity, status, count)
		detail := body["detail"].([]interface{})
		assert.Equal(t, []interface{}{"body", "target_count"}, detail[0].(map[string]interface{})["loc"])
	}

	status, _ := do(t, srv, http.MethodPost, "/influencer/ideas", `{"target_count": "four"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = do(t, srv, http.MethodPost, "/influencer/ideas", `{"fixture": 7}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, body := do(t, srv, http.MethodPost, "/influencer/ideas", `{"fixture": "nobody"}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body["detail"], "unknown fixture")

	status, _ = do(t, srv, http.MethodPost, "/influencer/ideas", `{"fixture": "../secrets"}`)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestIdeasWithoutAgent(t *testing.T) {
	srv := newTestServer(t)
	status, _ := do(t, srv, http.MethodPost, "/influencer/ideas", `{}`)
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestRequestID(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	_, err = uuid.Parse(resp.Header.Get(RequestHeader))
	assert.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set(RequestHeader, "req-7")
	resp, err = srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "req-7", resp.Header.Get(RequestHeader))
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(WithLogger(logging.NewNop())).ListenAndServe(ctx, "127.0.0.1:0")
	}()
	cancel()
	assert.NoError(t, <-done)
}
