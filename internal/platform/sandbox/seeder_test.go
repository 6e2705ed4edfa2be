package sandbox

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehr/trialgen/internal/domain/eligibility"
	"github.com/ehr/trialgen/internal/domain/trial"
	"github.com/ehr/trialgen/internal/platform/dataset"
)

// ---------------------------------------------------------------------------
// DataGenerator tests
// ---------------------------------------------------------------------------

func TestDataGenerator_GeneratePatient_Fields(t *testing.T) {
	t.Parallel()

	gen := NewDataGenerator(42)
	for i := 0; i < 200; i++ {
		p := gen.GeneratePatient()

		assert.Equal(t, trial.FormatPatientID(i), p.PatientID)
		assert.GreaterOrEqual(t, p.Age, 25)
		assert.LessOrEqual(t, p.Age, 84)
		assert.Contains(t, trial.CancerTypes, p.CancerType)
		assert.Contains(t, trial.Stages, p.Stage)
		assert.Contains(t, trial.Biomarkers, p.Biomarker)
		assert.Contains(t, trial.ECOGScores, p.ECOGScore)
		assert.Positive(t, p.Creatinine)
		assert.Equal(t, trial.RoundTo(p.Hemoglobin, 1), p.Hemoglobin)
		assert.Equal(t, trial.RoundTo(p.Creatinine, 2), p.Creatinine)
		assert.Equal(t, trial.RoundTo(p.NeutrophilCount, 2), p.NeutrophilCount)
		assert.Equal(t, trial.RoundTo(p.PlateletCount, 1), p.PlateletCount)
	}
}

func TestDataGenerator_FirstPatientFromReferenceSeed(t *testing.T) {
	t.Parallel()

	p := NewDataGenerator(42).GeneratePatient()

	// randint(25, 85) on seed 42 masks the first word 1608637542 to 38.
	assert.Equal(t, 63, p.Age)
	assert.Equal(t, "PT0000", p.PatientID)
}

func TestDataGenerator_ClinicalNotesMatchFields(t *testing.T) {
	t.Parallel()

	gen := NewDataGenerator(7)
	for i := 0; i < 100; i++ {
		p := gen.GeneratePatient()
		withChemo := trial.ClinicalNote(p.Age, p.CancerType, p.Stage, p.Biomarker, p.ECOGScore, true)
		withoutChemo := trial.ClinicalNote(p.Age, p.CancerType, p.Stage, p.Biomarker, p.ECOGScore, false)
		assert.Contains(t, []string{withChemo, withoutChemo}, p.ClinicalNotes)

		if p.Stage == trial.StageIV {
			assert.True(t, strings.HasSuffix(p.ClinicalNotes, "Metastatic disease present."))
		} else {
			assert.True(t, strings.HasSuffix(p.ClinicalNotes, "No evidence of distant metastasis."))
		}
	}
}

func TestDataGenerator_LabelsMatchRules(t *testing.T) {
	t.Parallel()

	engine := eligibility.NewEngine()
	for _, p := range GenerateDataset(1000, 42) {
		res := engine.Evaluate(&p)
		require.Equal(t, res.Label(), p.Eligible, p.PatientID)
		require.Equal(t, res.Reasons, p.ExclusionReasons, p.PatientID)
		require.True(t, engine.Consistent(&p))
	}
}

// ---------------------------------------------------------------------------
// GenerateDataset tests
// ---------------------------------------------------------------------------

func TestGenerateDataset_NonPositiveIsEmpty(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, -1, -500} {
		got := GenerateDataset(n, 42)
		require.NotNil(t, got)
		assert.Empty(t, got)
	}
}

func TestGenerateDataset_IDsUniqueAndIncreasing(t *testing.T) {
	t.Parallel()

	records := GenerateDataset(500, 42)
	require.Len(t, records, 500)
	seen := make(map[string]bool, len(records))
	for i, r := range records {
		assert.False(t, seen[r.PatientID])
		seen[r.PatientID] = true
		if i > 0 {
			assert.Less(t, records[i-1].PatientID, r.PatientID)
		}
	}
}

func TestGenerateDataset_Reproducible(t *testing.T) {
	t.Parallel()

	a := GenerateDataset(500, 42)
	b := GenerateDataset(500, 42)
	assert.Equal(t, a, b)

	c := GenerateDataset(500, 43)
	assert.NotEqual(t, a, c)
}

func TestGenerateDataset_PrefixStable(t *testing.T) {
	t.Parallel()

	short := GenerateDataset(50, 42)
	long := GenerateDataset(500, 42)
	assert.Equal(t, short, long[:50])
}

func TestGenerateDataset_ProducesBothLabels(t *testing.T) {
	t.Parallel()

	var eligible int
	records := GenerateDataset(500, 42)
	for _, r := range records {
		eligible += r.Eligible
	}
	assert.Positive(t, eligible)
	assert.Less(t, eligible, len(records))
}

func TestGenerateDataset_DistributionShape(t *testing.T) {
	t.Parallel()

	records := GenerateDataset(5000, 1)
	stages := map[string]int{}
	var hgb float64
	for _, r := range records {
		stages[r.Stage]++
		hgb += r.Hemoglobin
	}
	n := float64(len(records))
	assert.InDelta(t, 0.25, float64(stages["I"])/n, 0.03)
	assert.InDelta(t, 0.30, float64(stages["II"])/n, 0.03)
	assert.InDelta(t, 0.25, float64(stages["III"])/n, 0.03)
	assert.InDelta(t, 0.20, float64(stages["IV"])/n, 0.03)
	assert.InDelta(t, 12.5, hgb/n, 0.15)
}

// ---------------------------------------------------------------------------
// Seeder tests
// ---------------------------------------------------------------------------

func TestSeeder_Generate(t *testing.T) {
	t.Parallel()

	s := NewSeeder(DefaultSeedConfig())
	res, err := s.Generate()
	require.NoError(t, err)

	assert.Equal(t, 500, res.Patients)
	assert.Equal(t, 500, res.Eligible+res.Ineligible)
	assert.InDelta(t, float64(res.Eligible)/500, res.EligibilityRate, 1e-12)
	assert.Len(t, s.Records(), 500)
}

func TestSeeder_GenerateSameCountEveryRun(t *testing.T) {
	t.Parallel()

	first, err := NewSeeder(DefaultSeedConfig()).Generate()
	require.NoError(t, err)
	second, err := NewSeeder(DefaultSeedConfig()).Generate()
	require.NoError(t, err)
	assert.Equal(t, first.Eligible, second.Eligible)
}

func TestSeeder_ExportCSV_ByteIdentical(t *testing.T) {
	t.Parallel()

	export := func() []byte {
		s := NewSeeder(SeedConfig{PatientCount: 300, Seed: 42})
		_, err := s.Generate()
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, s.ExportCSV(&buf))
		return buf.Bytes()
	}

	a, b := export(), export()
	assert.Equal(t, a, b)

	lines := strings.Split(strings.TrimSuffix(string(a), "\n"), "\n")
	require.Len(t, lines, 301)
	assert.Equal(t, strings.Join(trial.Columns, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "PT0000,"))
}

func TestSeeder_ExportCSV_RoundTrip(t *testing.T) {
	t.Parallel()

	s := NewSeeder(SeedConfig{PatientCount: 120, Seed: 9})
	_, err := s.Generate()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, s.ExportCSV(&buf))

	got, err := dataset.DecodeRecords(&buf)
	require.NoError(t, err)
	assert.Equal(t, s.Records(), got)
}

func TestSeeder_EmptyExportHasHeaderOnly(t *testing.T) {
	t.Parallel()

	s := NewSeeder(SeedConfig{PatientCount: 0, Seed: 42})
	res, err := s.Generate()
	require.NoError(t, err)
	assert.Equal(t, 0, res.Patients)
	assert.Equal(t, 0.0, res.EligibilityRate)

	var buf bytes.Buffer
	require.NoError(t, s.ExportCSV(&buf))
	assert.Equal(t, strings.Join(trial.Columns, ",")+"\n", buf.String())
}
