package preprocess

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/ehr/trialgen/internal/domain/trial"
	"github.com/ehr/trialgen/internal/platform/dataset"
)

const (
	ColCancerTypeEncoded = "cancer_type_encoded"
	ColStageEncoded      = "stage_encoded"
	ColBiomarkerEncoded  = "biomarker_encoded"
	ColCombinedText      = "combined_text"
)

// ProcessedColumns is the header of the split files: the raw columns
// followed by the derived ones.
var ProcessedColumns = append(slices.Clone(trial.Columns),
	ColCancerTypeEncoded, ColStageEncoded, ColBiomarkerEncoded, ColCombinedText)

// Row is a raw record plus its derived columns.
type Row struct {
	trial.PatientRecord
	CancerTypeEncoded int    `json:"cancer_type_encoded"`
	StageEncoded      int    `json:"stage_encoded"`
	BiomarkerEncoded  int    `json:"biomarker_encoded"`
	CombinedText      string `json:"combined_text"`
}

// Strings renders the row in ProcessedColumns order.
func (r *Row) Strings() []string {
	return append(r.PatientRecord.Row(),
		strconv.Itoa(r.CancerTypeEncoded),
		strconv.Itoa(r.StageEncoded),
		strconv.Itoa(r.BiomarkerEncoded),
		r.CombinedText,
	)
}

// CombinedText flattens a record into one sentence for text models.
func CombinedText(rec *trial.PatientRecord) string {
	return fmt.Sprintf(
		"Age: %d years. Cancer: %s Stage %s. Biomarker: %s. ECOG: %d. "+
			"Labs: Hgb %s, Cr %s, Neut %s, Plt %s. Notes: %s",
		rec.Age, rec.CancerType, rec.Stage, rec.Biomarker, rec.ECOGScore,
		trial.FormatFloat(rec.Hemoglobin), trial.FormatFloat(rec.Creatinine),
		trial.FormatFloat(rec.NeutrophilCount), trial.FormatFloat(rec.PlateletCount),
		rec.ClinicalNotes,
	)
}

// EncodeRows writes rows under the processed header.
func EncodeRows(w io.Writer, rows []Row) error {
	table := make([][]string, len(rows))
	for i := range rows {
		table[i] = rows[i].Strings()
	}
	return dataset.EncodeTable(w, ProcessedColumns, table)
}

// DecodeRows reads a split file written by EncodeRows.
func DecodeRows(r io.Reader) ([]Row, error) {
	header, table, err := dataset.DecodeTable(r)
	if err != nil {
		return nil, err
	}
	index, err := dataset.HeaderIndex(header, ProcessedColumns)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(table))
	for i, fields := range table {
		rec, err := trial.ParseRow(index, fields)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", dataset.ErrMalformedRow, i, err)
		}
		row := Row{PatientRecord: rec, CombinedText: fields[index[ColCombinedText]]}
		for col, dst := range map[string]*int{
			ColCancerTypeEncoded: &row.CancerTypeEncoded,
			ColStageEncoded:      &row.StageEncoded,
			ColBiomarkerEncoded:  &row.BiomarkerEncoded,
		} {
			v, err := strconv.Atoi(strings.TrimSpace(fields[index[col]]))
			if err != nil {
				return nil, fmt.Errorf("%w: record %d: %s: %w", dataset.ErrMalformedRow, i, col, err)
			}
			*dst = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Preprocess label-encodes the categorical columns and builds the combined
// text of every record. Source fields are copied unchanged.
func Preprocess(records []trial.PatientRecord) ([]Row, Manifest, error) {
	if len(records) == 0 {
		return nil, Manifest{}, fmt.Errorf("%w: no records to preprocess", ErrValidation)
	}

	columns := map[string]func(*trial.PatientRecord) string{
		"cancer_type": func(r *trial.PatientRecord) string { return r.CancerType },
		"stage":       func(r *trial.PatientRecord) string { return r.Stage },
		"biomarker":   func(r *trial.PatientRecord) string { return r.Biomarker },
	}

	manifest := NewManifest()
	encoders := make(map[string]*LabelEncoder, len(CategoricalColumns))
	for _, col := range CategoricalColumns {
		values := make([]string, len(records))
		for i := range records {
			values[i] = columns[col](&records[i])
		}
		enc := FitLabelEncoder(values)
		encoders[col] = enc
		manifest.Set(col, enc.Classes())
	}

	rows := make([]Row, len(records))
	for i := range records {
		rec := records[i]
		rec.ExclusionReasons = slices.Clone(rec.ExclusionReasons)
		row := Row{PatientRecord: rec, CombinedText: CombinedText(&rec)}
		var err error
		if row.CancerTypeEncoded, err = encoders["cancer_type"].Encode(rec.CancerType); err != nil {
			return nil, Manifest{}, err
		}
		if row.StageEncoded, err = encoders["stage"].Encode(rec.Stage); err != nil {
			return nil, Manifest{}, err
		}
		if row.BiomarkerEncoded, err = encoders["biomarker"].Encode(rec.Biomarker); err != nil {
			return nil, Manifest{}, err
		}
		rows[i] = row
	}
	return rows, manifest, nil
}
