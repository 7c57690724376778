package extractor

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/telhawk-systems/fmc-connections/internal/export"
	"github.com/telhawk-systems/fmc-connections/internal/fmc"
	"github.com/telhawk-systems/fmc-connections/internal/logging"
	"github.com/telhawk-systems/fmc-connections/internal/metrics"
	"github.com/telhawk-systems/fmc-connections/internal/models"
	"github.com/telhawk-systems/fmc-connections/internal/transform"
	"github.com/telhawk-systems/fmc-connections/pkg/output"
)

const previewRows = 3

// EventSource is the part of the FMC client the extractor depends on.
type EventSource interface {
	Authenticate(ctx context.Context, creds fmc.Credentials) (fmc.Session, error)
	ConnectionEvents(ctx context.Context, session fmc.Session, req fmc.SearchRequest) (*fmc.Result, error)
}

// Options describes one extraction.
type Options struct {
	Credentials fmc.Credentials
	HoursBack   int
	Limit       int
	// Output is the CSV path; empty selects export.DefaultPath.
	Output   string
	Fallback fmc.Fallback
}

// Extractor runs authenticate, retrieve, transform and write in sequence.
type Extractor struct {
	source  EventSource
	mapping transform.Mapping
	printer *output.Printer
	logger  *logging.Logger
	metrics *metrics.Run
	now     func() time.Time
}

type Option func(*Extractor)

func WithMapping(m transform.Mapping) Option {
	return func(e *Extractor) { e.mapping = m }
}

func WithPrinter(p *output.Printer) Option {
	return func(e *Extractor) { e.printer = p }
}

func WithLogger(l *logging.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

func WithMetrics(m *metrics.Run) Option {
	return func(e *Extractor) { e.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

func New(source EventSource, opts ...Option) *Extractor {
	e := &Extractor{
		source:  source,
		mapping: transform.DefaultMapping,
		printer: output.Default(),
		logger:  logging.Discard(),
		metrics: metrics.NewRun(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Metrics returns the metrics recorded by Run.
func (e *Extractor) Metrics() *metrics.Run {
	return e.metrics
}

// Run performs one extraction. On error no output file is written.
func (e *Extractor) Run(ctx context.Context, opts Options) (*Summary, error) {
	started := e.now()
	runID := uuid.NewString()
	log := e.logger.With(logging.RunID(runID), logging.Host(opts.Credentials.Host))

	e.metrics.Success.Set(0)
	defer func() {
		e.metrics.Duration.Set(e.now().Sub(started).Seconds())
	}()

	e.printer.Plain("")
	e.printer.Heading("FMC Connection Events Extractor")
	e.printer.Info("Target: %s", opts.Credentials.Host)
	e.printer.Info("Time range: Last %d hour(s)", opts.HoursBack)
	e.printer.Info("Limit: %d events\n", opts.Limit)

	session, err := e.source.Authenticate(ctx, opts.Credentials)
	if err != nil {
		log.Error("authentication failed", logging.Error(err))
		return nil, err
	}
	e.printer.Success("Authentication successful")
	log.Debug("authenticated", logging.Domain(session.DomainUUID))

	result, err := e.source.ConnectionEvents(ctx, session, fmc.SearchRequest{
		HoursBack: opts.HoursBack,
		Limit:     opts.Limit,
		Fallback:  opts.Fallback,
	})
	if err != nil {
		e.reportAttempts(fmc.AttemptsOf(err))
		log.Error("connection event retrieval failed", logging.Error(err))
		return nil, fmt.Errorf("no events retrieved: %w", err)
	}
	e.reportAttempts(result.Attempts)
	e.metrics.EventsRetrieved.Set(float64(len(result.Events)))

	switch result.Source {
	case fmc.SourceSample:
		e.metrics.SampleFallback.Set(1)
		e.printer.Notice("Using sample connection data (%v)", result.FallbackReason)
	default:
		e.metrics.SampleFallback.Set(0)
		e.printer.Success("Retrieved %d events from %s", len(result.Events), result.Endpoint)
	}

	rows, err := e.mapping.Apply(result.Events)
	if err != nil {
		return nil, fmt.Errorf("transform events: %w", err)
	}

	path := opts.Output
	if path == "" {
		path = export.DefaultPath(opts.Credentials.Host, e.now())
	}
	if err := export.WriteFile(path, rows); err != nil {
		log.Error("failed to write export", logging.Path(path), logging.Error(err))
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	e.printer.Success("CSV saved: %s", path)
	log.Info("export written", logging.Path(path), logging.Count(len(rows)), logging.Source(string(result.Source)))

	e.metrics.RowsWritten.Set(float64(len(rows)))
	e.metrics.Success.Set(1)
	e.metrics.LastSuccess.Set(float64(e.now().Unix()))

	return &Summary{
		RunID:       runID,
		Host:        opts.Credentials.Host,
		HoursBack:   opts.HoursBack,
		Limit:       opts.Limit,
		Window:      result.Window,
		Source:      string(result.Source),
		Endpoint:    result.Endpoint,
		TotalEvents: len(rows),
		OutputFile:  path,
		Preview:     preview(rows),
	}, nil
}

// reportAttempts prints every unsuccessful strategy and counts all of them.
func (e *Extractor) reportAttempts(attempts []fmc.Attempt) {
	for _, a := range attempts {
		e.metrics.RequestsTotal.WithLabelValues(a.Method, a.Path, attemptResult(a)).Inc()
		if !a.Matched {
			e.printer.Plain("  Trying next endpoint... (%s)", a)
		}
	}
}

func attemptResult(a fmc.Attempt) string {
	switch {
	case a.Err != nil:
		return "error"
	case a.Matched:
		return "ok"
	case a.StatusCode == http.StatusOK:
		return "no_items"
	default:
		return strconv.Itoa(a.StatusCode)
	}
}

func preview(rows []models.ConnectionRow) []models.ConnectionRow {
	n := min(len(rows), previewRows)
	return append([]models.ConnectionRow(nil), rows[:n]...)
}
