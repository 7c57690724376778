package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/telhawk-systems/fmc-connections/internal/models"
)

// DefaultPath returns the file name used when no output path is given:
// connection_events_<host>_<YYYYMMDD_HHMMSS>.csv.
func DefaultPath(host string, now time.Time) string {
	return fmt.Sprintf("connection_events_%s_%s.csv", host, now.Format("20060102_150405"))
}

// Write encodes the header and rows as CSV to w.
func Write(w io.Writer, rows []models.ConnectionRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(models.Header()); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row.Values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes rows to path, replacing any existing file and keeping
// its permissions. A new file gets 0666 less the umask. Existing files are
// replaced through a temporary file in the same directory, so a failed
// write never leaves a truncated export behind; when the directory is not
// writable the file is overwritten in place.
func WriteFile(path string, rows []models.ConnectionRow) error {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		return replaceFile(path, info.Mode().Perm(), rows)
	case errors.Is(err, fs.ErrNotExist):
		return createFile(path, rows)
	default:
		return err
	}
}

func createFile(path string, rows []models.ConnectionRow) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0666)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, rows); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write csv: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

func replaceFile(path string, mode fs.FileMode, rows []models.ConnectionRow) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if errors.Is(err, fs.ErrPermission) {
		return overwriteFile(path, rows)
	}
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func overwriteFile(path string, rows []models.ConnectionRow) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if err := Write(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	return f.Close()
}

// Read parses a connection export, checking the header.
func Read(r io.Reader) ([]models.ConnectionRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(models.Header())

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("missing header")
	}
	if err != nil {
		return nil, err
	}
	if !slices.Equal(header, models.Header()) {
		return nil, fmt.Errorf("unexpected header %v", header)
	}

	var rows []models.ConnectionRow
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row, err := models.RowFromValues(record)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadFile parses the connection export at path.
func ReadFile(path string) ([]models.ConnectionRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}
