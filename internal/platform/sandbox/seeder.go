// Package sandbox provides synthetic clinical-trial screening data
// generation. It produces reproducible patient records: the same seed and
// patient count always yield the same dataset, byte for byte.
package sandbox

import (
	"fmt"
	"io"
	"time"

	"github.com/ehr/trialgen/internal/domain/eligibility"
	"github.com/ehr/trialgen/internal/domain/trial"
	"github.com/ehr/trialgen/internal/platform/dataset"
	"github.com/ehr/trialgen/internal/platform/randomstate"
	"github.com/ehr/trialgen/internal/platform/reporting"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// SeedConfig controls the volume and reproducibility of generated data.
type SeedConfig struct {
	PatientCount int    `json:"patientCount"`
	Seed         uint32 `json:"seed"`
}

// DefaultSeedConfig returns the reference run: 500 patients, seed 42.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		PatientCount: 500,
		Seed:         42,
	}
}

// ---------------------------------------------------------------------------
// SeedResult
// ---------------------------------------------------------------------------

// SeedResult summarizes the output of a seed operation.
type SeedResult struct {
	Patients        int           `json:"patients"`
	Eligible        int           `json:"eligible"`
	Ineligible      int           `json:"ineligible"`
	EligibilityRate float64       `json:"eligibilityRate"`
	Duration        time.Duration `json:"duration"`
}

// ---------------------------------------------------------------------------
// Sampling parameters
// ---------------------------------------------------------------------------

const (
	// Ages are drawn from [minAge, maxAge]; the top of the range lies
	// outside the screening window.
	minAge = 25
	maxAge = 84

	priorChemoThreshold = 0.7
)

var (
	stageWeights = []float64{0.25, 0.30, 0.25, 0.20}
	ecogWeights  = []float64{0.30, 0.35, 0.20, 0.10, 0.05}
)

type labDistribution struct {
	Name   string
	Places int
	draw   func(rs *randomstate.RandomState) float64
}

// Lab panels in draw order. Values are rounded but never clamped, so
// physiologically impossible readings (negative neutrophils) do occur.
var labPanel = []labDistribution{
	{Name: trial.ColHemoglobin, Places: 1, draw: func(rs *randomstate.RandomState) float64 { return rs.Normal(12.5, 2.0) }},
	{Name: trial.ColCreatinine, Places: 2, draw: func(rs *randomstate.RandomState) float64 { return rs.Gamma(2, 0.4) }},
	{Name: trial.ColNeutrophilCount, Places: 2, draw: func(rs *randomstate.RandomState) float64 { return rs.Normal(4.0, 1.5) }},
	{Name: trial.ColPlateletCount, Places: 1, draw: func(rs *randomstate.RandomState) float64 { return rs.Normal(250, 50) }},
}

// ---------------------------------------------------------------------------
// DataGenerator
// ---------------------------------------------------------------------------

// DataGenerator produces deterministic synthetic screening records.
type DataGenerator struct {
	rng     *randomstate.RandomState
	engine  *eligibility.Engine
	counter int
}

// NewDataGenerator returns a generator seeded for reproducibility.
func NewDataGenerator(seed uint32) *DataGenerator {
	return &DataGenerator{
		rng:    randomstate.New(seed),
		engine: eligibility.NewEngine(),
	}
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Choice(len(pool))]
}

// GeneratePatient produces the next record. Draws happen in a fixed order:
// age, cancer type, stage, biomarker, ECOG, the four labs, prior chemo.
func (g *DataGenerator) GeneratePatient() trial.PatientRecord {
	age := g.rng.RandInt(minAge, maxAge+1)
	cancerType := g.pick(trial.CancerTypes)
	stage := trial.Stages[g.rng.ChoiceP(stageWeights)]
	biomarker := g.pick(trial.Biomarkers)
	ecog := trial.ECOGScores[g.rng.ChoiceP(ecogWeights)]

	labs := make([]float64, len(labPanel))
	for i, lab := range labPanel {
		labs[i] = trial.RoundTo(lab.draw(g.rng), lab.Places)
	}

	priorChemo := g.rng.Random() > priorChemoThreshold

	rec := trial.PatientRecord{
		PatientID:       trial.FormatPatientID(g.counter),
		Age:             age,
		CancerType:      cancerType,
		Stage:           stage,
		Biomarker:       biomarker,
		ECOGScore:       ecog,
		Hemoglobin:      labs[0],
		Creatinine:      labs[1],
		NeutrophilCount: labs[2],
		PlateletCount:   labs[3],
		ClinicalNotes:   trial.ClinicalNote(age, cancerType, stage, biomarker, ecog, priorChemo),
	}
	g.counter++

	g.engine.Apply(&rec)
	return rec
}

// GenerateDataset produces n records from a fresh generator seeded with
// seed. A non-positive n yields an empty dataset.
func GenerateDataset(n int, seed uint32) []trial.PatientRecord {
	if n <= 0 {
		return []trial.PatientRecord{}
	}
	g := NewDataGenerator(seed)
	records := make([]trial.PatientRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, g.GeneratePatient())
	}
	return records
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

// Seeder orchestrates generation of a complete dataset.
type Seeder struct {
	config  SeedConfig
	records []trial.PatientRecord
}

// NewSeeder creates a new Seeder with the given config.
func NewSeeder(config SeedConfig) *Seeder {
	return &Seeder{config: config}
}

// Generate creates all records according to config, replacing any
// previously generated set.
func (s *Seeder) Generate() (*SeedResult, error) {
	start := time.Now()

	s.records = GenerateDataset(s.config.PatientCount, s.config.Seed)

	summary := reporting.Summarize(s.records)
	return &SeedResult{
		Patients:        summary.Total,
		Eligible:        summary.Eligible,
		Ineligible:      summary.Ineligible,
		EligibilityRate: summary.EligibilityRate,
		Duration:        time.Since(start),
	}, nil
}

// Records returns the generated records.
func (s *Seeder) Records() []trial.PatientRecord {
	return s.records
}

// ExportCSV writes the generated records as a CSV table with a header row.
func (s *Seeder) ExportCSV(w io.Writer) error {
	if err := dataset.EncodeRecords(w, s.records); err != nil {
		return fmt.Errorf("encoding patients: %w", err)
	}
	return nil
}
