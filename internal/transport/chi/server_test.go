package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/deepresearch/internal/domain"
	"github.com/kailas-cloud/deepresearch/internal/domain/action"
	domres "github.com/kailas-cloud/deepresearch/internal/domain/research"
	"github.com/kailas-cloud/deepresearch/internal/domain/tool"
	"github.com/kailas-cloud/deepresearch/internal/metrics"
	healthuc "github.com/kailas-cloud/deepresearch/internal/usecase/health"
)

func TestMain(m *testing.M) {
	metrics.RegisterAgentMetrics()
	os.Exit(m.Run())
}

// --- Mocks ---

type mockResearcher struct {
	agg     domres.Aggregate
	err     error
	reply   domres.Reply
	lastReq domres.Request
	lastEnv domres.Envelope
}

func (m *mockResearcher) Run(_ context.Context, req domres.Request) (domres.Aggregate, error) {
	m.lastReq = req
	return m.agg, m.err
}

func (m *mockResearcher) Handle(_ context.Context, env domres.Envelope) domres.Reply {
	m.lastEnv = env
	return m.reply
}

type mockTools struct {
	out      action.Output
	err      error
	lastName tool.Name
}

func (m *mockTools) Handle(_ context.Context, name tool.Name, in action.Input) (action.Output, error) {
	m.lastName = name
	if m.err != nil {
		return action.Output{}, m.err
	}
	return action.OK(in, "ok"), nil
}

type mockPinger struct{ err error }

func (m *mockPinger) Ping(context.Context) error { return m.err }

func newTestRouter(res *mockResearcher, tools *mockTools, health *healthuc.Service) http.Handler {
	if health == nil {
		health = healthuc.New(nil, nil)
	}
	r := chi.NewRouter()
	NewServer(res, tools, health, zap.NewNop()).Routes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return e
}

// --- /v1/research ---

func TestResearch_OK(t *testing.T) {
	res := &mockResearcher{agg: domres.NewAggregate("rice", []domres.Outcome{{Query: "a", SearchResult: "A"}})}
	rr := do(t, newTestRouter(res, &mockTools{}, nil), "POST", "/v1/research", `{"query":"rice","max_iterations":2}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	if res.lastReq != (domres.Request{Query: "rice", MaxIterations: 2}) {
		t.Errorf("unexpected request: %+v", res.lastReq)
	}
	var agg domres.Aggregate
	if err := json.NewDecoder(rr.Body).Decode(&agg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if agg.Summary != "Deep research results for: rice" || len(agg.ResearchDetails) != 1 {
		t.Errorf("unexpected aggregate: %+v", agg)
	}
}

func TestResearch_LenientBudget(t *testing.T) {
	cases := []struct {
		body string
		want int
	}{
		{`{"query":"rice","max_iterations":"2"}`, 2},
		{`{"query":"rice","max_iterations":2.5}`, 0},
	}
	for _, tc := range cases {
		res := &mockResearcher{agg: domres.NewAggregate("rice", nil)}
		rr := do(t, newTestRouter(res, &mockTools{}, nil), "POST", "/v1/research", tc.body)

		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, body = %s", tc.body, rr.Code, rr.Body)
		}
		if res.lastReq.MaxIterations != tc.want {
			t.Errorf("%s: max_iterations = %d, want %d", tc.body, res.lastReq.MaxIterations, tc.want)
		}
	}
}

func TestResearch_EmptyQuery400(t *testing.T) {
	rr := do(t, newTestRouter(&mockResearcher{}, &mockTools{}, nil), "POST", "/v1/research", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != ErrorCodeValidationFailed {
		t.Errorf("code = %s", e.Code)
	}
}

func TestResearch_BadJSON400(t *testing.T) {
	rr := do(t, newTestRouter(&mockResearcher{}, &mockTools{}, nil), "POST", "/v1/research", `{`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestResearch_ErrorMapping(t *testing.T) {
	agent := domain.AgentIdentity{AgentID: "A", AliasID: "B"}
	tests := []struct {
		name   string
		err    error
		status int
		code   ErrorCode
	}{
		{"remote", domain.NewRemoteInvocationError(agent, errors.New("boom")), http.StatusBadGateway, ErrorCodeAgentError},
		{"timeout", domain.ErrStreamTimeout, http.StatusGatewayTimeout, ErrorCodeAgentTimeout},
		{"decode", domain.ErrDecode, http.StatusBadGateway, ErrorCodeAgentError},
		{"unknown", errors.New("something internal"), http.StatusInternalServerError, ErrorCodeInternalError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, newTestRouter(&mockResearcher{err: tc.err}, &mockTools{}, nil), "POST", "/v1/research", `{"query":"q"}`)
			if rr.Code != tc.status {
				t.Fatalf("status = %d, want %d", rr.Code, tc.status)
			}
			e := decodeError(t, rr)
			if e.Code != tc.code {
				t.Errorf("code = %s, want %s", e.Code, tc.code)
			}
			if strings.Contains(e.Message, "boom") || strings.Contains(e.Message, "something internal") {
				t.Errorf("internal detail leaked: %q", e.Message)
			}
		})
	}
}

// --- /v1/invoke ---

func TestInvoke_PassesEnvelope(t *testing.T) {
	res := &mockResearcher{reply: domres.Failed()}
	rr := do(t, newTestRouter(res, &mockTools{}, nil), "POST", "/v1/invoke", `{"body":{"query":"rice"}}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if string(res.lastEnv.Body) != `{"query":"rice"}` {
		t.Errorf("envelope body = %s", res.lastEnv.Body)
	}
	var reply domres.Reply
	if err := json.NewDecoder(rr.Body).Decode(&reply); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reply.StatusCode != 500 || reply.Body != `{"error":"An error occurred during the deep research process"}` {
		t.Errorf("unexpected reply: %+v", reply)
	}
}

// --- /v1/tools/{tool} ---

func TestTool_OK(t *testing.T) {
	tools := &mockTools{}
	rr := do(t, newTestRouter(&mockResearcher{}, tools, nil), "POST", "/v1/tools/tavily",
		`{"actionGroup":"ag","apiPath":"/search","httpMethod":"POST","requestBody":{"content":{"application/json":{"properties":[]}}}}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	if tools.lastName != tool.Tavily {
		t.Errorf("tool = %q", tools.lastName)
	}
	var out action.Output
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Response.ActionGroup != "ag" || out.Body() != "ok" {
		t.Errorf("unexpected output: %+v", out)
	}
}

func TestTool_Unknown404(t *testing.T) {
	rr := do(t, newTestRouter(&mockResearcher{}, &mockTools{}, nil), "POST", "/v1/tools/pptx", `{}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestTool_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.ErrInvalidToolInput, http.StatusBadRequest},
		{domain.ErrToolNotConfigured, http.StatusServiceUnavailable},
		{domain.NewUpstreamToolError("tavily", 429, "rate limited"), http.StatusBadGateway},
	}
	for _, tc := range tests {
		rr := do(t, newTestRouter(&mockResearcher{}, &mockTools{err: tc.err}, nil), "POST", "/v1/tools/tavily", `{}`)
		if rr.Code != tc.status {
			t.Errorf("%v: status = %d, want %d", tc.err, rr.Code, tc.status)
		}
	}
}

// --- /health, /metrics, routing ---

func TestHealth(t *testing.T) {
	rr := do(t, newTestRouter(&mockResearcher{}, &mockTools{}, healthuc.New(&mockPinger{}, nil)), "GET", "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Checks["cache"] != "ok" {
		t.Errorf("unexpected health: %+v", resp)
	}
}

func TestHealth_Degraded503(t *testing.T) {
	rr := do(t, newTestRouter(&mockResearcher{}, &mockTools{}, healthuc.New(&mockPinger{err: errors.New("down")}, nil)), "GET", "/health", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rr := do(t, newTestRouter(&mockResearcher{}, &mockTools{}, nil), "GET", "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestUnknownRoute404JSON(t *testing.T) {
	rr := do(t, newTestRouter(&mockResearcher{}, &mockTools{}, nil), "GET", "/collections", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != ErrorCodeNotFound {
		t.Errorf("code = %s", e.Code)
	}
}
