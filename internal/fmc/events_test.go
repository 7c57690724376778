package fmc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testSession = Session{Token: "token-abc", DomainUUID: "dom-1"}
	testNow     = time.Date(2025, 8, 30, 8, 0, 0, 0, time.UTC)

	searchPath = "/api/fmc_tid/v1/domain/dom-1/search/connectionevents"
	eventsPath = "/api/fmc_tid/v1/domain/dom-1/events/connectionevents"
	configPath = "/api/fmc_config/v1/domain/dom-1/events/connectionevents"
)

// fmcStub serves canned responses per "METHOD path" and records every hit.
type fmcStub struct {
	t        *testing.T
	mu       sync.Mutex
	hits     []string
	handlers map[string]http.HandlerFunc
}

func newFMCStub(t *testing.T, handlers map[string]http.HandlerFunc) (*httptest.Server, *fmcStub) {
	stub := &fmcStub{t: t, handlers: handlers}
	server := httptest.NewTLSServer(stub)
	t.Cleanup(server.Close)
	return server, stub
}

func (s *fmcStub) Hits() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.hits...)
}

func (s *fmcStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	s.mu.Lock()
	s.hits = append(s.hits, key)
	s.mu.Unlock()

	assert.Equal(s.t, "token-abc", r.Header.Get(HeaderAccessToken))

	if h, ok := s.handlers[key]; ok {
		h(w, r)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func itemsHandler(items ...map[string]interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if items == nil {
			items = []map[string]interface{}{}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"items": items})
	}
}

func brokenConnHandler(w http.ResponseWriter, r *http.Request) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic("hijacking not supported")
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		panic(err)
	}
	conn.Close()
}

func invalidJSONHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{not json`))
}

func newTestClient(server *httptest.Server) *Client {
	return NewClient(server.URL, WithClock(func() time.Time { return testNow }))
}

func TestNewTimeWindow(t *testing.T) {
	for _, hours := range []int{1, 2, 24, 168} {
		t.Run(fmt.Sprintf("%dh", hours), func(t *testing.T) {
			w := NewTimeWindow(testNow, hours)
			assert.Equal(t, testNow.UnixMilli(), w.End)
			assert.Equal(t, w.End-int64(hours)*3600000, w.Start)
		})
	}
}

func TestDefaultStrategies(t *testing.T) {
	strategies := DefaultStrategies()
	require.Len(t, strategies, 6)

	got := make([]string, len(strategies))
	for i, s := range strategies {
		got[i] = s.Method + " " + s.URLPath("dom-1")
	}
	assert.Equal(t, []string{
		"POST " + searchPath,
		"GET " + searchPath,
		"POST " + eventsPath,
		"GET " + eventsPath,
		"POST " + configPath,
		"GET " + configPath,
	}, got)
}

func TestConnectionEvents_PostSearch(t *testing.T) {
	server, stub := newFMCStub(t, map[string]http.HandlerFunc{
		"POST " + searchPath: func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var body map[string]int64
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, testNow.UnixMilli(), body["endTime"])
			assert.Equal(t, testNow.UnixMilli()-2*3600000, body["startTime"])
			assert.Equal(t, int64(500), body["limit"])
			assert.Equal(t, int64(0), body["offset"])

			itemsHandler(
				map[string]interface{}{"protocol": "TCP", "sourcePort": 51820},
				map[string]interface{}{"protocol": "UDP", "sourcePort": 53},
			)(w, r)
		},
	})

	result, err := newTestClient(server).ConnectionEvents(context.Background(), testSession,
		SearchRequest{HoursBack: 2, Limit: 500})

	require.NoError(t, err)
	assert.Equal(t, SourceAPI, result.Source)
	assert.Equal(t, http.MethodPost, result.Method)
	assert.Equal(t, searchPath, result.Endpoint)
	require.Len(t, result.Events, 2)
	assert.Equal(t, json.Number("51820"), result.Events[0]["sourcePort"])
	assert.Equal(t, "UDP", result.Events[1]["protocol"])
	assert.Equal(t, []string{"POST " + searchPath}, stub.Hits())
}

func TestConnectionEvents_GetAfterPostWithoutItems(t *testing.T) {
	server, stub := newFMCStub(t, map[string]http.HandlerFunc{
		"POST " + searchPath: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"links":{},"paging":{"count":0}}`))
		},
		"GET " + searchPath: func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "25", r.URL.Query().Get("limit"))
			itemsHandler(map[string]interface{}{"protocol": "TCP"})(w, r)
		},
	})

	result, err := newTestClient(server).ConnectionEvents(context.Background(), testSession,
		SearchRequest{HoursBack: 1, Limit: 25})

	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, result.Method)
	assert.Len(t, result.Events, 1)
	assert.Equal(t, []string{"POST " + searchPath, "GET " + searchPath}, stub.Hits())
}

func TestConnectionEvents_FirstTwoEndpointsFail(t *testing.T) {
	items := make([]map[string]interface{}, 7)
	for i := range items {
		items[i] = map[string]interface{}{"initiatorIp": fmt.Sprintf("10.0.0.%d", i+1)}
	}

	server, stub := newFMCStub(t, map[string]http.HandlerFunc{
		"POST " + searchPath: brokenConnHandler,
		"GET " + searchPath:  itemsHandler(map[string]interface{}{"discarded": true}),
		"POST " + eventsPath: invalidJSONHandler,
		"GET " + eventsPath:  itemsHandler(map[string]interface{}{"discarded": true}),
		"POST " + configPath: itemsHandler(items...),
	})

	result, err := newTestClient(server).ConnectionEvents(context.Background(), testSession,
		SearchRequest{HoursBack: 1, Limit: 1000})

	require.NoError(t, err)
	require.Len(t, result.Events, 7)
	for i, event := range result.Events {
		assert.Equal(t, fmt.Sprintf("10.0.0.%d", i+1), event["initiatorIp"])
		assert.NotContains(t, event, "discarded")
	}
	assert.Equal(t, configPath, result.Endpoint)
	assert.Equal(t, []string{"POST " + searchPath, "POST " + eventsPath, "POST " + configPath}, stub.Hits())

	require.Len(t, result.Attempts, 3)
	assert.Error(t, result.Attempts[0].Err)
	assert.Error(t, result.Attempts[1].Err)
	assert.True(t, result.Attempts[2].Matched)
}

func TestConnectionEvents_EmptyItemsStopsProbing(t *testing.T) {
	server, stub := newFMCStub(t, map[string]http.HandlerFunc{
		"POST " + searchPath: itemsHandler(),
		"POST " + eventsPath: itemsHandler(map[string]interface{}{"protocol": "TCP"}),
	})

	result, err := newTestClient(server).ConnectionEvents(context.Background(), testSession,
		SearchRequest{HoursBack: 1, Limit: 10, Fallback: FallbackNone})

	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoEvents))
	assert.Equal(t, "POST "+searchPath+": no connection events in window", err.Error())
	assert.Equal(t, []string{"POST " + searchPath}, stub.Hits())

	var emptyErr *EmptyResultError
	require.ErrorAs(t, err, &emptyErr)
	assert.Equal(t, http.MethodPost, emptyErr.Method)
	assert.Equal(t, searchPath, emptyErr.Endpoint)
	require.Len(t, AttemptsOf(err), 1)
	assert.True(t, AttemptsOf(err)[0].Matched)
}

func TestAttemptsOf(t *testing.T) {
	attempts := []Attempt{{Method: http.MethodGet, Path: "/a", StatusCode: http.StatusNotFound}}

	tests := []struct {
		name string
		err  error
		want []Attempt
	}{
		{"retrieval", &RetrievalError{Attempts: attempts}, attempts},
		{"empty result", &EmptyResultError{Method: http.MethodGet, Endpoint: "/a", Attempts: attempts}, attempts},
		{"wrapped", fmt.Errorf("no events retrieved: %w", &EmptyResultError{Attempts: attempts}), attempts},
		{"plain", errors.New("boom"), nil},
		{"nil", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AttemptsOf(tt.err))
		})
	}
}

func TestConnectionEvents_AllStrategiesFail(t *testing.T) {
	server, _ := newFMCStub(t, map[string]http.HandlerFunc{
		"POST " + searchPath: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnprocessableEntity) },
		"POST " + eventsPath: brokenConnHandler,
	})

	result, err := newTestClient(server).ConnectionEvents(context.Background(), testSession,
		SearchRequest{HoursBack: 1, Limit: 10})

	assert.Nil(t, result)
	var retrievalErr *RetrievalError
	require.True(t, errors.As(err, &retrievalErr))
	assert.False(t, errors.Is(err, ErrNoEvents))

	// events endpoint GET is skipped after its POST broke the connection
	require.Len(t, retrievalErr.Attempts, 5)
	assert.Equal(t, http.StatusUnprocessableEntity, retrievalErr.Attempts[0].StatusCode)
	assert.Equal(t, http.StatusNotFound, retrievalErr.Attempts[1].StatusCode)
	assert.Error(t, retrievalErr.Attempts[2].Err)
	assert.Equal(t, configPath, retrievalErr.Attempts[3].Path)
	assert.Len(t, retrievalErr.Unwrap(), 1)
	assert.Contains(t, err.Error(), "all 5 connection event requests failed")
	assert.Contains(t, err.Error(), "status 422")
}

func TestConnectionEvents_SampleFallbackWhenEmpty(t *testing.T) {
	server, _ := newFMCStub(t, map[string]http.HandlerFunc{
		"POST " + searchPath: itemsHandler(),
	})

	result, err := newTestClient(server).ConnectionEvents(context.Background(), testSession,
		SearchRequest{HoursBack: 1, Limit: 10, Fallback: FallbackSample})

	require.NoError(t, err)
	assert.Equal(t, SourceSample, result.Source)
	assert.Empty(t, result.Endpoint)
	assert.True(t, errors.Is(result.FallbackReason, ErrNoEvents))
	require.Len(t, result.Events, 3)
	assert.Equal(t, "TCP", result.Events[0]["protocol"])
	assert.Equal(t, "TCP", result.Events[1]["protocol"])
	assert.Equal(t, "ICMP", result.Events[2]["protocol"])
}

func TestConnectionEvents_SampleFallbackWhenAllFail(t *testing.T) {
	server, _ := newFMCStub(t, nil)

	result, err := newTestClient(server).ConnectionEvents(context.Background(), testSession,
		SearchRequest{HoursBack: 1, Limit: 10, Fallback: FallbackSample})

	require.NoError(t, err)
	assert.Equal(t, SourceSample, result.Source)
	assert.Len(t, result.Events, 3)
	assert.Len(t, result.Attempts, 6)

	var retrievalErr *RetrievalError
	assert.True(t, errors.As(result.FallbackReason, &retrievalErr))
}

func TestConnectionEvents_NonObjectItemsSkipped(t *testing.T) {
	server, _ := newFMCStub(t, map[string]http.HandlerFunc{
		"POST " + searchPath: func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"items":[{"protocol":"TCP"},"junk",42,{"protocol":"UDP"}]}`))
		},
	})

	result, err := newTestClient(server).ConnectionEvents(context.Background(), testSession,
		SearchRequest{HoursBack: 1, Limit: 10})

	require.NoError(t, err)
	assert.Len(t, result.Events, 2)
}

func TestConnectionEvents_ItemsNotArray(t *testing.T) {
	server, _ := newFMCStub(t, map[string]http.HandlerFunc{
		"POST " + searchPath: func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"items":"none"}`))
		},
		"GET " + searchPath: func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"protocol":"TCP"}]`))
		},
		"POST " + eventsPath: itemsHandler(map[string]interface{}{"protocol": "TCP"}),
	})

	result, err := newTestClient(server).ConnectionEvents(context.Background(), testSession,
		SearchRequest{HoursBack: 1, Limit: 10})

	require.NoError(t, err)
	assert.Equal(t, eventsPath, result.Endpoint)
}

func TestConnectionEvents_CancelledContext(t *testing.T) {
	server, _ := newFMCStub(t, map[string]http.HandlerFunc{
		"POST " + searchPath: itemsHandler(map[string]interface{}{"protocol": "TCP"}),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newTestClient(server).ConnectionEvents(ctx, testSession,
		SearchRequest{HoursBack: 1, Limit: 10, Fallback: FallbackSample})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConnectionEvents_CustomStrategies(t *testing.T) {
	server, _ := newFMCStub(t, map[string]http.HandlerFunc{
		"GET /api/custom/dom-1/events": itemsHandler(map[string]interface{}{"protocol": "TCP"}),
	})

	client := NewClient(server.URL, WithStrategies([]Strategy{{Method: http.MethodGet, Path: "/api/custom/%s/events"}}))
	result, err := client.ConnectionEvents(context.Background(), testSession, SearchRequest{HoursBack: 1, Limit: 10})

	require.NoError(t, err)
	assert.Len(t, result.Events, 1)
}

func TestParseFallback(t *testing.T) {
	tests := []struct {
		in      string
		want    Fallback
		wantErr bool
	}{
		{"", FallbackNone, false},
		{"none", FallbackNone, false},
		{"sample", FallbackSample, false},
		{"demo", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFallback(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAttempt_String(t *testing.T) {
	long := errors.New("Post \"https://fmc/api\": dial tcp 10.0.0.1:443: connect: connection refused")

	assert.Equal(t, "POST /a: ok", Attempt{Method: "POST", Path: "/a", StatusCode: 200, Matched: true}.String())
	assert.Equal(t, "GET /a: no items in response", Attempt{Method: "GET", Path: "/a", StatusCode: 200}.String())
	assert.Equal(t, "GET /a: status 404", Attempt{Method: "GET", Path: "/a", StatusCode: 404}.String())
	assert.Equal(t, "POST /a: "+long.Error()[:50], Attempt{Method: "POST", Path: "/a", Err: long}.String())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 50))
	assert.Equal(t, "abc", truncate("abcdef", 3))
	assert.Equal(t, "→→", truncate("→→→", 2))
}
