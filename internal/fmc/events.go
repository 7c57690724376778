package fmc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/telhawk-systems/fmc-connections/internal/logging"
	"github.com/telhawk-systems/fmc-connections/internal/models"
)

const millisPerHour = int64(time.Hour / time.Millisecond)

// TimeWindow bounds a search in milliseconds since the epoch.
type TimeWindow struct {
	Start int64 `json:"start_ms" yaml:"start_ms"`
	End   int64 `json:"end_ms" yaml:"end_ms"`
}

// NewTimeWindow returns the window ending at end and spanning hoursBack hours.
func NewTimeWindow(end time.Time, hoursBack int) TimeWindow {
	endMs := end.UnixMilli()
	return TimeWindow{
		Start: endMs - int64(hoursBack)*millisPerHour,
		End:   endMs,
	}
}

// Strategy is one way of asking the appliance for connection events.
// Path is a format string taking the domain UUID.
type Strategy struct {
	Method string
	Path   string
}

// URLPath returns the strategy's path for a domain.
func (s Strategy) URLPath(domain string) string {
	return fmt.Sprintf(s.Path, url.PathEscape(domain))
}

// Connection event endpoints, newest API surface first.
var connectionEventPaths = []string{
	"/api/fmc_tid/v1/domain/%s/search/connectionevents",
	"/api/fmc_tid/v1/domain/%s/events/connectionevents",
	"/api/fmc_config/v1/domain/%s/events/connectionevents",
}

// DefaultStrategies tries a POST search and then a plain GET against
// each known endpoint, in order.
func DefaultStrategies() []Strategy {
	strategies := make([]Strategy, 0, 2*len(connectionEventPaths))
	for _, p := range connectionEventPaths {
		strategies = append(strategies,
			Strategy{Method: http.MethodPost, Path: p},
			Strategy{Method: http.MethodGet, Path: p},
		)
	}
	return strategies
}

// Fallback selects what happens when no real events are retrieved.
type Fallback string

const (
	// FallbackNone reports the failure or the empty window to the caller.
	FallbackNone Fallback = "none"
	// FallbackSample substitutes the built-in sample dataset.
	FallbackSample Fallback = "sample"
)

// ParseFallback validates a fallback name. An empty name means FallbackNone.
func ParseFallback(s string) (Fallback, error) {
	switch Fallback(s) {
	case "", FallbackNone:
		return FallbackNone, nil
	case FallbackSample:
		return FallbackSample, nil
	default:
		return "", fmt.Errorf("unknown fallback %q (expected %q or %q)", s, FallbackNone, FallbackSample)
	}
}

// Source records where the events of a Result came from.
type Source string

const (
	SourceAPI    Source = "api"
	SourceSample Source = "sample"
)

// SearchRequest describes one retrieval.
type SearchRequest struct {
	HoursBack int
	Limit     int
	Fallback  Fallback
}

// Attempt records the outcome of one strategy.
type Attempt struct {
	Method     string
	Path       string
	StatusCode int
	Matched    bool
	Err        error
}

func (a Attempt) String() string {
	switch {
	case a.Err != nil:
		return fmt.Sprintf("%s %s: %s", a.Method, a.Path, truncate(a.Err.Error(), maxErrorText))
	case a.Matched:
		return fmt.Sprintf("%s %s: ok", a.Method, a.Path)
	case a.StatusCode == http.StatusOK:
		return fmt.Sprintf("%s %s: no items in response", a.Method, a.Path)
	default:
		return fmt.Sprintf("%s %s: status %d", a.Method, a.Path, a.StatusCode)
	}
}

// Result is the outcome of ConnectionEvents.
type Result struct {
	Events   []models.RawEvent
	Source   Source
	Method   string
	Endpoint string
	Window   TimeWindow
	Attempts []Attempt
	// FallbackReason is set when Source is SourceSample.
	FallbackReason error
}

const maxErrorText = 50

type searchBody struct {
	StartTime int64 `json:"startTime"`
	EndTime   int64 `json:"endTime"`
	Limit     int   `json:"limit"`
	Offset    int   `json:"offset"`
}

// ConnectionEvents retrieves the first page of connection events for the
// last req.HoursBack hours. Strategies are tried in order until one
// answers 200 with an items collection. A transport error skips the
// remaining strategies of the same endpoint.
//
// When nothing is retrieved the result depends on req.Fallback: with
// FallbackNone the error is *RetrievalError (every strategy failed) or
// *EmptyResultError (an endpoint answered with no items); with FallbackSample
// the sample dataset is returned instead.
func (c *Client) ConnectionEvents(ctx context.Context, session Session, req SearchRequest) (*Result, error) {
	result := &Result{Window: NewTimeWindow(c.now(), req.HoursBack)}
	failed := make(map[string]bool)

	for _, s := range c.strategies {
		path := s.URLPath(session.DomainUUID)
		if failed[path] {
			continue
		}

		attempt := c.probe(ctx, session, s.Method, path, result.Window, req.Limit)
		result.Attempts = append(result.Attempts, attempt.Attempt)

		if attempt.Err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("connection event request failed, trying next endpoint",
				logging.Method(s.Method), logging.Endpoint(path),
				logging.FieldError, truncate(attempt.Err.Error(), maxErrorText))
			failed[path] = true
			continue
		}
		if !attempt.Matched {
			c.logger.Debug("no items collection in response",
				logging.Method(s.Method), logging.Endpoint(path), logging.Status(attempt.StatusCode))
			continue
		}

		result.Events = attempt.events
		result.Source = SourceAPI
		result.Method = s.Method
		result.Endpoint = path
		c.logger.Info("retrieved connection events",
			logging.Method(s.Method), logging.Endpoint(path), logging.Count(len(attempt.events)))
		break
	}

	var cause error
	switch {
	case result.Source == "":
		cause = &RetrievalError{Attempts: result.Attempts}
	case len(result.Events) == 0:
		cause = &EmptyResultError{Method: result.Method, Endpoint: result.Endpoint, Attempts: result.Attempts}
	default:
		return result, nil
	}

	if req.Fallback != FallbackSample {
		return nil, cause
	}

	events, err := SampleEvents()
	if err != nil {
		return nil, fmt.Errorf("load sample events: %w", err)
	}
	c.logger.Warn("using sample connection events", logging.Source(string(SourceSample)), logging.Error(cause))

	result.Events = events
	result.Source = SourceSample
	result.Method = ""
	result.Endpoint = ""
	result.FallbackReason = cause
	return result, nil
}

type probeResult struct {
	Attempt
	events []models.RawEvent
}

func (c *Client) probe(ctx context.Context, session Session, method, path string, window TimeWindow, limit int) probeResult {
	out := probeResult{Attempt: Attempt{Method: method, Path: path}}

	ctx, cancel := context.WithTimeout(ctx, c.searchTimeout)
	defer cancel()

	req, err := c.newSearchRequest(ctx, method, path, window, limit)
	if err != nil {
		out.Err = err
		return out
	}
	session.apply(req)

	resp, err := c.client.Do(req)
	if err != nil {
		out.Err = err
		return out
	}
	defer resp.Body.Close()

	out.StatusCode = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		return out
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var body interface{}
	if err := dec.Decode(&body); err != nil {
		out.Err = fmt.Errorf("decode response: %w", err)
		return out
	}

	events, ok := itemsOf(body)
	if !ok {
		return out
	}
	out.Matched = true
	out.events = events
	return out
}

func (c *Client) newSearchRequest(ctx context.Context, method, path string, window TimeWindow, limit int) (*http.Request, error) {
	if method == http.MethodGet {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(limit))
		return http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+q.Encode(), http.NoBody)
	}

	body, err := json.Marshal(searchBody{
		StartTime: window.Start,
		EndTime:   window.End,
		Limit:     limit,
		Offset:    0,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// itemsOf extracts the "items" array of a decoded response. Entries that
// are not JSON objects are skipped.
func itemsOf(body interface{}) ([]models.RawEvent, bool) {
	obj, ok := body.(map[string]interface{})
	if !ok {
		return nil, false
	}
	items, ok := obj["items"].([]interface{})
	if !ok {
		return nil, false
	}

	events := make([]models.RawEvent, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			events = append(events, models.RawEvent(m))
		}
	}
	return events, true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
