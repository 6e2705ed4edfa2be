// Package reporting computes dataset measures (label balance, exclusion
// reason frequencies, split composition) and renders them for the terminal.
package reporting

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gonum.org/v1/gonum/stat"

	"github.com/ehr/trialgen/internal/domain/eligibility"
	"github.com/ehr/trialgen/internal/domain/trial"
)

var ErrMeasureNotFound = errors.New("measure not found")

// MeasureDefinition defines a named measure over a set of records.
type MeasureDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	eval        func(records []trial.PatientRecord) float64
	format      func(v float64) string
}

// MeasureReport holds the result of evaluating a measure.
type MeasureReport struct {
	MeasureID   string    `json:"measure_id"`
	MeasureName string    `json:"measure_name"`
	GeneratedAt time.Time `json:"generated_at"`
	Value       float64   `json:"value"`
	Display     string    `json:"display"`
}

// PredefinedMeasures is the list of available measures.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "patient-count",
		Name:        "Samples",
		Description: "Total number of records in the dataset",
		eval:        func(r []trial.PatientRecord) float64 { return float64(len(r)) },
		format:      formatCount,
	},
	{
		ID:          "eligible-count",
		Name:        "Eligible",
		Description: "Records that passed every exclusion rule",
		eval:        func(r []trial.PatientRecord) float64 { return float64(countEligible(r)) },
		format:      formatCount,
	},
	{
		ID:          "ineligible-count",
		Name:        "Ineligible",
		Description: "Records excluded by at least one rule",
		eval:        func(r []trial.PatientRecord) float64 { return float64(len(r) - countEligible(r)) },
		format:      formatCount,
	},
	{
		ID:          "eligibility-rate",
		Name:        "Eligibility rate",
		Description: "Fraction of records labelled eligible",
		eval:        EligibilityRate,
		format:      FormatPercent,
	},
}

// FindMeasure returns the predefined measure with the given ID, or nil.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}

// EvaluateMeasure computes the measure with the given ID over records.
func EvaluateMeasure(id string, records []trial.PatientRecord) (*MeasureReport, error) {
	m := FindMeasure(id)
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrMeasureNotFound, id)
	}
	v := m.eval(records)
	return &MeasureReport{
		MeasureID:   m.ID,
		MeasureName: m.Name,
		GeneratedAt: time.Now().UTC(),
		Value:       v,
		Display:     m.format(v),
	}, nil
}

// EvaluateAll evaluates every predefined measure, in definition order.
func EvaluateAll(records []trial.PatientRecord) ([]MeasureReport, error) {
	reports := make([]MeasureReport, 0, len(PredefinedMeasures))
	for _, m := range PredefinedMeasures {
		r, err := EvaluateMeasure(m.ID, records)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, nil
}

func formatCount(v float64) string {
	return strconv.FormatInt(int64(v), 10)
}

func countEligible(records []trial.PatientRecord) int {
	n := 0
	for i := range records {
		if records[i].IsEligible() {
			n++
		}
	}
	return n
}

// EligibilityRate returns the mean of the eligible label, or 0 for an empty
// set.
func EligibilityRate(records []trial.PatientRecord) float64 {
	labels := make([]int, len(records))
	for i := range records {
		labels[i] = records[i].Eligible
	}
	return LabelRate(labels)
}

// LabelRate returns the mean of binary labels, or 0 for an empty set.
func LabelRate(labels []int) float64 {
	if len(labels) == 0 {
		return 0
	}
	x := make([]float64, len(labels))
	for i, l := range labels {
		x[i] = float64(l)
	}
	return stat.Mean(x, nil)
}

// ReasonCount is how many records one exclusion reason applied to.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// Summary describes the label balance of a dataset.
type Summary struct {
	Total           int             `json:"total"`
	Eligible        int             `json:"eligible"`
	Ineligible      int             `json:"ineligible"`
	EligibilityRate float64         `json:"eligibility_rate"`
	Measures        []MeasureReport `json:"measures"`
	Reasons         []ReasonCount   `json:"reasons"`
}

// Summarize evaluates the predefined measures and counts exclusion reasons,
// listing them in rule evaluation order.
func Summarize(records []trial.PatientRecord) Summary {
	var s Summary
	// Predefined IDs always resolve.
	s.Measures, _ = EvaluateAll(records)
	for _, m := range s.Measures {
		switch m.MeasureID {
		case "patient-count":
			s.Total = int(m.Value)
		case "eligible-count":
			s.Eligible = int(m.Value)
		case "ineligible-count":
			s.Ineligible = int(m.Value)
		case "eligibility-rate":
			s.EligibilityRate = m.Value
		}
	}

	counts := map[string]int{}
	for i := range records {
		for _, reason := range records[i].ExclusionReasons {
			counts[reason]++
		}
	}
	for _, reason := range eligibility.NewEngine().Reasons() {
		s.Reasons = append(s.Reasons, ReasonCount{Reason: reason, Count: counts[reason]})
		delete(counts, reason)
	}
	// Reasons outside the default rule set, e.g. from an edited file.
	for _, reason := range slices.Sorted(maps.Keys(counts)) {
		s.Reasons = append(s.Reasons, ReasonCount{Reason: reason, Count: counts[reason]})
	}
	return s
}

// SplitStat describes one partition of a split dataset.
type SplitStat struct {
	Name            string  `json:"name"`
	Size            int     `json:"size"`
	EligibilityRate float64 `json:"eligibility_rate"`
}

// NewSplitStat computes the size and eligible rate of a partition from its
// labels.
func NewSplitStat(name string, labels []int) SplitStat {
	return SplitStat{Name: name, Size: len(labels), EligibilityRate: LabelRate(labels)}
}

// ---------------------------------------------------------------------------
// Rendering
// ---------------------------------------------------------------------------

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

// FormatPercent renders a rate the way the console summaries show it.
func FormatPercent(rate float64) string {
	return fmt.Sprintf("%.2f%%", rate*100)
}

// RenderSummary renders label balance and reason counts as tables.
func RenderSummary(s Summary) string {
	overview := newTable("MEASURE", "VALUE")
	for _, m := range s.Measures {
		overview.Row(m.MeasureName, m.Display)
	}

	reasons := newTable("EXCLUSION REASON", "RECORDS")
	for _, rc := range s.Reasons {
		reasons.Row(rc.Reason, strconv.Itoa(rc.Count))
	}
	return lipgloss.JoinVertical(lipgloss.Left, overview.String(), reasons.String())
}

// RenderSplits renders partition sizes and eligible rates.
func RenderSplits(stats []SplitStat) string {
	t := newTable("SPLIT", "SAMPLES", "ELIGIBLE")
	for _, s := range stats {
		t.Row(s.Name, strconv.Itoa(s.Size), FormatPercent(s.EligibilityRate))
	}
	return t.String()
}

// RenderRecords renders up to n records as a preview table.
func RenderRecords(records []trial.PatientRecord, n int) string {
	t := newTable("ID", "AGE", "CANCER", "STAGE", "BIOMARKER", "ECOG", "HGB", "CR", "NEUT", "PLT", "ELIGIBLE", "REASONS")
	for i := 0; i < n && i < len(records); i++ {
		r := &records[i]
		t.Row(
			r.PatientID,
			strconv.Itoa(r.Age),
			r.CancerType,
			r.Stage,
			r.Biomarker,
			strconv.Itoa(r.ECOGScore),
			trial.FormatFloat(r.Hemoglobin),
			trial.FormatFloat(r.Creatinine),
			trial.FormatFloat(r.NeutrophilCount),
			trial.FormatFloat(r.PlateletCount),
			strconv.Itoa(r.Eligible),
			trial.JoinReasons(r.ExclusionReasons),
		)
	}
	return t.String()
}

// Truncate returns the first n runes of s followed by "...". The marker is
// appended even when s is shorter than n.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r) + "..."
}
