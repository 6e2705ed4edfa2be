// Package preprocess turns raw screening records into model-ready rows:
// categorical columns are label-encoded, each record gets a flattened text
// summary, and the table is split into stratified train/val/test subsets.
package preprocess

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrUnknownClass = errors.New("unknown class")
	ErrUnknownCode  = errors.New("unknown code")
)

// CategoricalColumns are the columns that get a <col>_encoded companion.
var CategoricalColumns = []string{"cancer_type", "stage", "biomarker"}

// LabelEncoder maps each distinct value of a column to a dense integer code.
// Codes follow the ascending byte order of the values, so the mapping
// depends only on the set of values observed and not on row order.
type LabelEncoder struct {
	classes []string
	codes   map[string]int
}

// FitLabelEncoder builds an encoder over the distinct values in values.
func FitLabelEncoder(values []string) *LabelEncoder {
	classes := slices.Clone(values)
	slices.Sort(classes)
	return NewLabelEncoder(slices.Compact(classes))
}

// NewLabelEncoder builds an encoder from an already ordered class list,
// e.g. one read back from a manifest. Class i gets code i.
func NewLabelEncoder(classes []string) *LabelEncoder {
	e := &LabelEncoder{
		classes: slices.Clone(classes),
		codes:   make(map[string]int, len(classes)),
	}
	for i, c := range e.classes {
		if _, dup := e.codes[c]; !dup {
			e.codes[c] = i
		}
	}
	return e
}

func (e *LabelEncoder) Encode(value string) (int, error) {
	code, ok := e.codes[value]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownClass, value)
	}
	return code, nil
}

func (e *LabelEncoder) Decode(code int) (string, error) {
	if code < 0 || code >= len(e.classes) {
		return "", fmt.Errorf("%w: %d (have %d classes)", ErrUnknownCode, code, len(e.classes))
	}
	return e.classes[code], nil
}

// Classes returns the ordered class list; position is the code.
func (e *LabelEncoder) Classes() []string {
	return slices.Clone(e.classes)
}
