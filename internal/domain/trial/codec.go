package trial

import (
	"fmt"
	"strconv"
	"strings"
)

// Column names in the order they appear in the raw dataset.
const (
	ColPatientID        = "patient_id"
	ColAge              = "age"
	ColCancerType       = "cancer_type"
	ColStage            = "stage"
	ColBiomarker        = "biomarker"
	ColECOGScore        = "ecog_score"
	ColHemoglobin       = "hemoglobin"
	ColCreatinine       = "creatinine"
	ColNeutrophilCount  = "neutrophil_count"
	ColPlateletCount    = "platelet_count"
	ColClinicalNotes    = "clinical_notes"
	ColEligible         = "eligible"
	ColExclusionReasons = "exclusion_reasons"
)

// Columns is the header of the raw dataset.
var Columns = []string{
	ColPatientID, ColAge, ColCancerType, ColStage, ColBiomarker, ColECOGScore,
	ColHemoglobin, ColCreatinine, ColNeutrophilCount, ColPlateletCount,
	ColClinicalNotes, ColEligible, ColExclusionReasons,
}

// Row renders the record as CSV fields in Columns order.
func (r *PatientRecord) Row() []string {
	return []string{
		r.PatientID,
		strconv.Itoa(r.Age),
		r.CancerType,
		r.Stage,
		r.Biomarker,
		strconv.Itoa(r.ECOGScore),
		FormatFloat(r.Hemoglobin),
		FormatFloat(r.Creatinine),
		FormatFloat(r.NeutrophilCount),
		FormatFloat(r.PlateletCount),
		r.ClinicalNotes,
		strconv.Itoa(r.Eligible),
		JoinReasons(r.ExclusionReasons),
	}
}

// ParseRow decodes a CSV row. index maps every name in Columns to its
// position in row.
func ParseRow(index map[string]int, row []string) (PatientRecord, error) {
	var rec PatientRecord
	field := func(col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var err error
	rec.PatientID = field(ColPatientID)
	if rec.Age, err = parseInt(ColAge, field(ColAge)); err != nil {
		return rec, err
	}
	rec.CancerType = field(ColCancerType)
	rec.Stage = field(ColStage)
	rec.Biomarker = field(ColBiomarker)
	if rec.ECOGScore, err = parseInt(ColECOGScore, field(ColECOGScore)); err != nil {
		return rec, err
	}
	if rec.Hemoglobin, err = parseFloat(ColHemoglobin, field(ColHemoglobin)); err != nil {
		return rec, err
	}
	if rec.Creatinine, err = parseFloat(ColCreatinine, field(ColCreatinine)); err != nil {
		return rec, err
	}
	if rec.NeutrophilCount, err = parseFloat(ColNeutrophilCount, field(ColNeutrophilCount)); err != nil {
		return rec, err
	}
	if rec.PlateletCount, err = parseFloat(ColPlateletCount, field(ColPlateletCount)); err != nil {
		return rec, err
	}
	rec.ClinicalNotes = field(ColClinicalNotes)
	if rec.Eligible, err = parseInt(ColEligible, field(ColEligible)); err != nil {
		return rec, err
	}
	if rec.Eligible != 0 && rec.Eligible != 1 {
		return rec, fmt.Errorf("%s: label must be 0 or 1, got %d", ColEligible, rec.Eligible)
	}
	rec.ExclusionReasons = SplitReasons(field(ColExclusionReasons))
	return rec, nil
}

func parseInt(col, s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", col, err)
	}
	return v, nil
}

func parseFloat(col, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", col, err)
	}
	return v, nil
}

// FormatFloat writes v in its shortest round-trip decimal form, always with
// a fractional part ("12.0", "-0.0", "0.05").
func FormatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

// RoundTo rounds x to the given number of decimal places. Halfway cases are
// decided on the exact binary value and resolve to even.
func RoundTo(x float64, places int) float64 {
	v, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', places, 64), 64)
	if err != nil {
		return x
	}
	return v
}
