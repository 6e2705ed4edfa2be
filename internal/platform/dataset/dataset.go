// Package dataset reads and writes comma-separated tables of screening
// records: a header row followed by one record per line.
package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ehr/trialgen/internal/domain/trial"
	"github.com/ehr/trialgen/internal/platform/blobstore"
)

var (
	ErrMissingColumn = errors.New("missing expected column")
	ErrMalformedRow  = errors.New("malformed row")
)

// HeaderIndex maps column names to positions in header and checks that
// every required column is present. Column order does not matter.
func HeaderIndex(header, required []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, col := range header {
		col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		if _, dup := index[col]; !dup {
			index[col] = i
		}
	}
	var missing []string
	for _, col := range required {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return index, nil
}

// EncodeTable writes header and rows as CSV. Fields containing commas,
// quotes or newlines are quoted.
func EncodeTable(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// DecodeTable reads a CSV table, returning the header and the data rows.
func DecodeTable(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("%w: empty table has no header", ErrMissingColumn)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	cr.FieldsPerRecord = len(header)

	var rows [][]string
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: line %d: %w", ErrMalformedRow, line, err)
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// EncodeRecords writes records under the raw dataset header.
func EncodeRecords(w io.Writer, records []trial.PatientRecord) error {
	rows := make([][]string, len(records))
	for i := range records {
		rows[i] = records[i].Row()
	}
	return EncodeTable(w, trial.Columns, rows)
}

// DecodeRecords reads a table containing at least the raw dataset columns.
// Extra columns are ignored.
func DecodeRecords(r io.Reader) ([]trial.PatientRecord, error) {
	header, rows, err := DecodeTable(r)
	if err != nil {
		return nil, err
	}
	index, err := HeaderIndex(header, trial.Columns)
	if err != nil {
		return nil, err
	}

	records := make([]trial.PatientRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := trial.ParseRow(index, row)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", ErrMalformedRow, i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteRecords encodes records and stores them under name.
func WriteRecords(ctx context.Context, store blobstore.Store, name string, records []trial.PatientRecord) (*blobstore.ObjectMetadata, error) {
	var buf bytes.Buffer
	if err := EncodeRecords(&buf, records); err != nil {
		return nil, err
	}
	meta, err := store.Put(ctx, name, &buf)
	if err != nil {
		return nil, fmt.Errorf("storing %s: %w", name, err)
	}
	return meta, nil
}

// ReadRecords loads and decodes the named table.
func ReadRecords(ctx context.Context, store blobstore.Store, name string) ([]trial.PatientRecord, error) {
	rc, _, err := store.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	defer rc.Close()

	records, err := DecodeRecords(rc)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	return records, nil
}
