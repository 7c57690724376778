package logging

import "log/slog"

// Common field names so every log line of a run reads the same way.
const (
	FieldRunID    = "run_id"
	FieldHost     = "host"
	FieldDomain   = "domain"
	FieldEndpoint = "endpoint"
	FieldMethod   = "method"
	FieldStatus   = "status"
	FieldCount    = "count"
	FieldSource   = "source"
	FieldPath     = "path"
	FieldError    = "error"
)

// RunID returns a slog attribute for the extraction run identifier.
func RunID(id string) slog.Attr {
	return slog.String(FieldRunID, id)
}

// Host returns a slog attribute for the management appliance host.
func Host(host string) slog.Attr {
	return slog.String(FieldHost, host)
}

// Domain returns a slog attribute for the FMC domain UUID.
func Domain(uuid string) slog.Attr {
	return slog.String(FieldDomain, uuid)
}

// Endpoint returns a slog attribute for an API path.
func Endpoint(path string) slog.Attr {
	return slog.String(FieldEndpoint, path)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Count returns a slog attribute for a number of events or rows.
func Count(n int) slog.Attr {
	return slog.Int(FieldCount, n)
}

// Source returns a slog attribute for where events came from.
func Source(source string) slog.Attr {
	return slog.String(FieldSource, source)
}

// Path returns a slog attribute for a filesystem path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}
