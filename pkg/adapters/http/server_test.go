package http

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sytabaresa/robot"
	"github.com/sytabaresa/robot/pkg/domain"
	"github.com/sytabaresa/robot/pkg/dsl"
	"github.com/sytabaresa/robot/pkg/observability"
)

func checkout() *domain.Definition {
	payment := dsl.New(dsl.WithName("payment")).
		State("card", dsl.Transition("authorize", "paid")).
		Final("paid").
		MustBuild()

	return dsl.New(dsl.WithName("checkout")).
		State("cart", dsl.Transition("checkout", "pay",
			dsl.Reduce(func(c domain.Context, ev domain.Event) domain.Context {
				c["items"] = ev.Data
				return c
			}))).
		InvokeMachine("pay", payment, dsl.Transition(domain.EventDone, "shipped")).
		Final("shipped").
		MustBuild()
}

func start(t *testing.T, opts ...robot.Option) *robot.Service {
	t.Helper()
	svc, err := robot.Interpret(context.Background(), checkout(), nil, opts...)
	require.NoError(t, err)
	return svc
}

func post(t *testing.T, h http.Handler, url, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, url, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) Snapshot {
	t.Helper()
	var snap Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	return snap
}

func TestGetState(t *testing.T) {
	svc := start(t)
	h := NewHandler(svc)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/state", nil))

	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeSnapshot(t, w)
	assert.Equal(t, svc.ID(), snap.ServiceID)
	assert.Equal(t, "checkout", snap.Machine)
	assert.Equal(t, "cart", snap.State)
	assert.Nil(t, snap.Child)
}

func TestPostEvent_NestedDepth(t *testing.T) {
	h := NewHandler(start(t))

	w := post(t, h, "/events", `{"type":"checkout","data":3}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap := decodeSnapshot(t, w)
	assert.Equal(t, "pay", snap.State)
	assert.EqualValues(t, 3, snap.Context["items"])
	require.NotNil(t, snap.Child)
	assert.Equal(t, "payment", snap.Child.Machine)
	assert.Equal(t, "card", snap.Child.State)

	w = post(t, h, "/events?depth=1", `{"type":"authorize"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap = decodeSnapshot(t, w)
	assert.Equal(t, "shipped", snap.State)
	assert.True(t, snap.Final)
}

func TestPostEvent_Errors(t *testing.T) {
	tests := []struct {
		name string
		url  string
		body string
		want int
	}{
		{name: "Malformed Body", url: "/events", body: `{`, want: http.StatusBadRequest},
		{name: "Empty Type", url: "/events", body: `{"type":" "}`, want: http.StatusBadRequest},
		{name: "Oversized Type", url: "/events", body: `{"type":"` + strings.Repeat("x", 300) + `"}`, want: http.StatusBadRequest},
		{name: "Bad Depth", url: "/events?depth=-1", body: `{"type":"checkout"}`, want: http.StatusBadRequest},
		{name: "No Service At Depth", url: "/events?depth=2", body: `{"type":"checkout"}`, want: http.StatusNotFound},
		{name: "Unhandled In Strict Mode", url: "/events", body: `{"type":"bogus"}`, want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(start(t, robot.WithStrictEvents()))
			w := post(t, h, tt.url, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestPostEvent_UnhandledIsIgnoredByDefault(t *testing.T) {
	h := NewHandler(start(t))
	w := post(t, h, "/events", `{"type":"bogus"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cart", decodeSnapshot(t, w).State)
}

func TestServer_ThroughLoop(t *testing.T) {
	loop := robot.NewLoop()
	svc := start(t, robot.WithScheduler(loop))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go loop.Run(ctx)

	h := NewHandler(svc, WithLoop(loop))
	w := post(t, h, "/events", `{"type":"checkout"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pay", decodeSnapshot(t, w).State)
}

func TestGetGraph_Overlay(t *testing.T) {
	streams := NewStreamManager()
	svc := start(t, robot.WithHooks(streams.Hooks()))
	h := NewHandler(svc, WithStreams(streams))

	require.Equal(t, http.StatusOK, post(t, h, "/events", `{"type":"checkout"}`).Code)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/graph", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "graph TD"))
	assert.Contains(t, body, "class cart visited;")
	assert.Contains(t, body, "class pay current;")
	assert.Contains(t, body, "class pay_card current;")
}

func TestGetMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	svc := start(t, robot.WithHooks(metrics.Hooks()))
	h := NewHandler(svc, WithGatherer(reg))
	require.Equal(t, http.StatusOK, post(t, h, "/events", `{"type":"checkout"}`).Code)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `robot_transitions_total{from="cart",machine="checkout",to="pay"} 1`)
}

func TestRoutesWithoutOptionalFeatures(t *testing.T) {
	h := NewHandler(start(t))
	for _, path := range []string{"/metrics", "/stream"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestHealthAndInfo(t *testing.T) {
	h := NewHandler(start(t))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/info", nil))
	var info map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "checkout", info["machine"])
	assert.Equal(t, strings.TrimSpace(robot.Version), info["version"])

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/events", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSubscribeEvents(t *testing.T) {
	streams := NewStreamManager()
	svc := start(t, robot.WithHooks(streams.Hooks()))
	srv := httptest.NewServer(NewHandler(svc, WithStreams(streams)))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/stream?type=enter", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, "event: ping", lines.Text())

	go func() {
		resp, err := http.Post(srv.URL+"/events", "application/json", strings.NewReader(`{"type":"checkout"}`))
		if err == nil {
			resp.Body.Close()
		}
	}()

	var got []string
	for len(got) < 1 && lines.Scan() {
		if data, ok := strings.CutPrefix(lines.Text(), "data: "); ok && data != "connected" {
			got = append(got, data)
		}
	}
	require.Len(t, got, 1)

	var rec domain.EnterEvent
	require.NoError(t, json.Unmarshal([]byte(got[0]), &rec))
	assert.Equal(t, domain.HookEnter, rec.Type)
	assert.Equal(t, "cart", rec.From)
	assert.Equal(t, "pay", rec.To)
}

func TestStreamManager_DropsForSlowClients(t *testing.T) {
	sm := NewStreamManager(WithBuffer(1))
	ch, unsubscribe := sm.Subscribe("svc")

	sm.Broadcast(StreamMessage{Type: domain.HookEnter, ServiceID: "svc", Data: []byte("1")})
	sm.Broadcast(StreamMessage{Type: domain.HookEnter, ServiceID: "svc", Data: []byte("2")})
	sm.Broadcast(StreamMessage{Type: domain.HookEnter, ServiceID: "other", Data: []byte("3")})

	msg := <-ch
	assert.Equal(t, "1", string(msg.Data))
	select {
	case extra := <-ch:
		t.Fatalf("unexpected message %s", extra.Data)
	default:
	}

	unsubscribe()
	unsubscribe()
	_, open := <-ch
	assert.False(t, open)
}

func TestStreamManager_VisitedIsBounded(t *testing.T) {
	sm := NewStreamManager(WithVisitedServices(2))
	hooks := sm.Hooks()
	enter := func(serviceID, to string) {
		hooks.OnEnter(context.Background(), &domain.EnterEvent{
			HookBase: domain.HookBase{Type: domain.HookEnter, ServiceID: serviceID},
			To:       to,
		})
	}

	for range 100 {
		enter("root", "on")
		enter("root", "off")
	}
	assert.Equal(t, []string{"on", "off"}, sm.Visited("root"))

	enter("child-1", "wait")
	enter("root", "on")
	enter("child-2", "wait")
	assert.Equal(t, []string{"on", "off"}, sm.Visited("root"), "active service is kept")
	assert.Empty(t, sm.Visited("child-1"), "least recently active service is forgotten")
	assert.Equal(t, []string{"wait"}, sm.Visited("child-2"))
}

func TestGetState_UnencodableContext(t *testing.T) {
	def := dsl.New(dsl.WithName("hold")).
		State("idle", dsl.Transition("grab", "holding", dsl.Reduce(func(c domain.Context) domain.Context {
			c["conn"] = make(chan int)
			return c
		}))).
		State("holding").
		MustBuild()
	svc, err := robot.Interpret(context.Background(), def, nil)
	require.NoError(t, err)
	h := NewHandler(svc)

	w := post(t, h, "/events", `{"type":"grab"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Cannot encode response")

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/state", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Header().Get("Content-Type"), "application/json")
}
