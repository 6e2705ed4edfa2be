// Package trial defines the synthetic clinical-trial screening record and
// the fixed vocabularies it is drawn from.
package trial

import (
	"fmt"
	"strings"
)

var (
	CancerTypes = []string{"Breast", "Lung", "Colon", "Prostate", "Melanoma"}
	Stages      = []string{"I", "II", "III", "IV"}
	Biomarkers  = []string{"HER2+", "HER2-", "ER+", "ER-", "PD-L1+", "PD-L1-", "EGFR+", "EGFR-"}
	ECOGScores  = []int{0, 1, 2, 3, 4}
)

const (
	// StageIV is the only stage reported as metastatic.
	StageIV = "IV"

	// NoExclusions is written in place of an empty exclusion list.
	NoExclusions = "None"

	ReasonSeparator = "; "
)

// PatientRecord is one row of the screening dataset.
type PatientRecord struct {
	PatientID        string   `json:"patient_id"`
	Age              int      `json:"age"`
	CancerType       string   `json:"cancer_type"`
	Stage            string   `json:"stage"`
	Biomarker        string   `json:"biomarker"`
	ECOGScore        int      `json:"ecog_score"`
	Hemoglobin       float64  `json:"hemoglobin"`
	Creatinine       float64  `json:"creatinine"`
	NeutrophilCount  float64  `json:"neutrophil_count"`
	PlateletCount    float64  `json:"platelet_count"`
	ClinicalNotes    string   `json:"clinical_notes"`
	Eligible         int      `json:"eligible"`
	ExclusionReasons []string `json:"exclusion_reasons"`
}

// IsEligible reports whether the record carries the eligible label.
func (r *PatientRecord) IsEligible() bool {
	return r.Eligible == 1
}

// FormatPatientID renders the zero-padded identifier for generation index i.
func FormatPatientID(i int) string {
	return fmt.Sprintf("PT%04d", i)
}

// ClinicalNote assembles the free-text note for a patient from five fixed
// sentences.
func ClinicalNote(age int, cancerType, stage, biomarker string, ecog int, priorChemo bool) string {
	chemo := "has not"
	if priorChemo {
		chemo = "has"
	}
	metastasis := "No evidence of distant metastasis"
	if stage == StageIV {
		metastasis = "Metastatic disease present"
	}

	notes := []string{
		fmt.Sprintf("Patient is a %d-year-old with %s %s cancer.", age, stage, cancerType),
		fmt.Sprintf("Biomarker profile shows %s expression.", biomarker),
		fmt.Sprintf("ECOG performance status: %d.", ecog),
		fmt.Sprintf("Patient %s received prior chemotherapy.", chemo),
		metastasis + ".",
	}
	return strings.Join(notes, " ")
}

// JoinReasons flattens exclusion reasons for the tabular form.
func JoinReasons(reasons []string) string {
	if len(reasons) == 0 {
		return NoExclusions
	}
	return strings.Join(reasons, ReasonSeparator)
}

// SplitReasons is the inverse of JoinReasons. The sentinel and the empty
// string both decode to an empty list.
func SplitReasons(s string) []string {
	if s == "" || s == NoExclusions {
		return []string{}
	}
	return strings.Split(s, ReasonSeparator)
}
