package fmc

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/telhawk-systems/fmc-connections/internal/logging"
)

const (
	// DefaultAuthTimeout bounds the token request.
	DefaultAuthTimeout = 30 * time.Second
	// DefaultSearchTimeout bounds each connection event request.
	DefaultSearchTimeout = 60 * time.Second
)

// Client talks to the FMC REST API. It holds no session state; the
// Session returned by Authenticate is passed to every later call.
type Client struct {
	baseURL       string
	client        *http.Client
	logger        *logging.Logger
	strategies    []Strategy
	now           func() time.Time
	authTimeout   time.Duration
	searchTimeout time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default insecure HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithLogger sets the logger used for per-request diagnostics.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithStrategies replaces the ordered list of retrieval strategies.
func WithStrategies(s []Strategy) Option {
	return func(c *Client) { c.strategies = s }
}

// WithClock sets the time source used to compute search windows.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithTimeouts overrides the authentication and per-search timeouts.
func WithTimeouts(auth, search time.Duration) Option {
	return func(c *Client) {
		c.authTimeout = auth
		c.searchTimeout = search
	}
}

// NewClient creates a Client for the appliance at baseURL
// (e.g. "https://fmc.example.com:443"). Certificate verification is
// disabled.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:       baseURL,
		client:        &http.Client{Transport: insecureTransport()},
		logger:        logging.Discard(),
		strategies:    DefaultStrategies(),
		now:           time.Now,
		authTimeout:   DefaultAuthTimeout,
		searchTimeout: DefaultSearchTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the HTTPS base URL for host and port.
func BaseURL(host string, port int) string {
	return fmt.Sprintf("https://%s", net.JoinHostPort(host, strconv.Itoa(port)))
}

func insecureTransport() *http.Transport {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // appliance certificates are self-signed
	return tr
}
