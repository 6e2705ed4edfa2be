package trial

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPatientID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "PT0000", FormatPatientID(0))
	assert.Equal(t, "PT0042", FormatPatientID(42))
	assert.Equal(t, "PT12345", FormatPatientID(12345))
}

func TestClinicalNote(t *testing.T) {
	t.Parallel()

	got := ClinicalNote(61, "Lung", "II", "EGFR+", 1, false)
	want := "Patient is a 61-year-old with II Lung cancer. " +
		"Biomarker profile shows EGFR+ expression. " +
		"ECOG performance status: 1. " +
		"Patient has not received prior chemotherapy. " +
		"No evidence of distant metastasis."
	assert.Equal(t, want, got)
}

func TestClinicalNote_StageIVIsMetastatic(t *testing.T) {
	t.Parallel()

	got := ClinicalNote(70, "Breast", StageIV, "ER+", 3, true)
	assert.True(t, strings.HasSuffix(got, "Metastatic disease present."))
	assert.Contains(t, got, "Patient has received prior chemotherapy.")
}

func TestJoinSplitReasons(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		reasons []string
		joined  string
	}{
		"none":   {reasons: []string{}, joined: "None"},
		"single": {reasons: []string{"Stage IV excluded"}, joined: "Stage IV excluded"},
		"multiple": {
			reasons: []string{"Age outside range", "Hemoglobin too low"},
			joined:  "Age outside range; Hemoglobin too low",
		},
	}
	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.joined, JoinReasons(tc.reasons))
			assert.Equal(t, tc.reasons, SplitReasons(tc.joined))
		})
	}
	assert.Equal(t, "None", JoinReasons(nil))
	assert.Empty(t, SplitReasons(""))
}

func TestFormatFloat(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		in   float64
		want string
	}{
		{in: 12.0, want: "12.0"},
		{in: 12.3, want: "12.3"},
		{in: 0.05, want: "0.05"},
		{in: 250.1, want: "250.1"},
		{in: -0.42, want: "-0.42"},
		{in: math.Copysign(0, -1), want: "-0.0"},
	}
	for _, tc := range tcs {
		assert.Equal(t, tc.want, FormatFloat(tc.in))
	}
}

func TestRoundTo(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 12.3, RoundTo(12.34999, 1))
	assert.Equal(t, 0.13, RoundTo(0.12500001, 2))
	// 0.125 is exact in binary, so the tie resolves to even.
	assert.Equal(t, 0.12, RoundTo(0.125, 2))
	// 2.675 is stored just below the midpoint.
	assert.Equal(t, 2.67, RoundTo(2.675, 2))
	assert.True(t, math.Signbit(RoundTo(-0.04, 1)))
}

func TestRowParseRow_RoundTrip(t *testing.T) {
	t.Parallel()

	rec := PatientRecord{
		PatientID:        "PT0007",
		Age:              77,
		CancerType:       "Colon",
		Stage:            "IV",
		Biomarker:        "PD-L1-",
		ECOGScore:        3,
		Hemoglobin:       8.9,
		Creatinine:       0.71,
		NeutrophilCount:  -0.12,
		PlateletCount:    301.0,
		ClinicalNotes:    ClinicalNote(77, "Colon", "IV", "PD-L1-", 3, true),
		Eligible:         0,
		ExclusionReasons: []string{"Age outside range", "Stage IV excluded"},
	}

	row := rec.Row()
	require.Len(t, row, len(Columns))
	assert.Equal(t, "301.0", row[9])
	assert.Equal(t, "Age outside range; Stage IV excluded", row[12])

	index := make(map[string]int, len(Columns))
	for i, c := range Columns {
		index[c] = i
	}
	got, err := ParseRow(index, row)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestParseRow_Errors(t *testing.T) {
	t.Parallel()

	index := make(map[string]int, len(Columns))
	for i, c := range Columns {
		index[c] = i
	}
	base := (&PatientRecord{PatientID: "PT0000", Age: 40, Stage: "I"}).Row()

	bad := append([]string(nil), base...)
	bad[1] = "forty"
	_, err := ParseRow(index, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ColAge)

	bad = append([]string(nil), base...)
	bad[6] = "low"
	_, err = ParseRow(index, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ColHemoglobin)

	bad = append([]string(nil), base...)
	bad[11] = "2"
	_, err = ParseRow(index, bad)
	require.Error(t, err)
}
