package preprocess

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/ehr/trialgen/internal/platform/blobstore"
	"github.com/ehr/trialgen/internal/platform/dataset"
	"github.com/ehr/trialgen/internal/platform/reporting"
)

// Paths names the input table and the four outputs of a preprocessing run,
// relative to the store root.
type Paths struct {
	Raw      string
	Train    string
	Val      string
	Test     string
	Encoders string
}

func DefaultPaths() Paths {
	return Paths{
		Raw:      "clinical_trial_data.csv",
		Train:    "train_data.csv",
		Val:      "val_data.csv",
		Test:     "test_data.csv",
		Encoders: "label_encoders.json",
	}
}

// Summary describes a completed run.
type Summary struct {
	Records  int                         `json:"records"`
	Splits   []reporting.SplitStat       `json:"splits"`
	Manifest Manifest                    `json:"-"`
	Written  []*blobstore.ObjectMetadata `json:"written"`
	Train    []Row                       `json:"-"`
	Duration time.Duration               `json:"duration"`
}

type Service struct {
	store  blobstore.Store
	logger zerolog.Logger
	split  SplitConfig
}

func NewService(store blobstore.Store, logger zerolog.Logger) *Service {
	return &Service{store: store, logger: logger, split: DefaultSplitConfig()}
}

// SetSplitConfig replaces the default split fractions and seed.
func (s *Service) SetSplitConfig(cfg SplitConfig) {
	s.split = cfg
}

// Run reads the raw table, preprocesses and splits it, then writes the
// manifest and the three split tables. Outputs are written as one batch:
// on any failure none of them are replaced.
func (s *Service) Run(ctx context.Context, paths Paths) (*Summary, error) {
	start := time.Now()

	records, err := dataset.ReadRecords(ctx, s.store, paths.Raw)
	if err != nil {
		if errors.Is(err, dataset.ErrMissingColumn) || errors.Is(err, dataset.ErrMalformedRow) {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return nil, err
	}
	s.logger.Info().Str("input", paths.Raw).Int("records", len(records)).Msg("loaded raw dataset")

	rows, manifest, err := Preprocess(records)
	if err != nil {
		return nil, err
	}
	for _, col := range manifest.Columns {
		s.logger.Debug().Str("column", col).Strs("classes", manifest.Classes[col]).Msg("fitted label encoder")
	}

	train, val, test, err := Split(rows, s.split)
	if err != nil {
		return nil, err
	}

	manifestData, err := manifest.Encode(paths.Encoders)
	if err != nil {
		return nil, err
	}
	objects := []blobstore.Object{{Name: paths.Encoders, Content: manifestData}}
	for _, part := range []struct {
		name string
		rows []Row
	}{
		{paths.Train, train},
		{paths.Val, val},
		{paths.Test, test},
	} {
		var buf bytes.Buffer
		if err := EncodeRows(&buf, part.rows); err != nil {
			return nil, fmt.Errorf("encoding %s: %w", part.name, err)
		}
		objects = append(objects, blobstore.Object{Name: part.name, Content: buf.Bytes()})
	}

	written, err := s.store.PutBatch(ctx, objects)
	if err != nil {
		return nil, fmt.Errorf("writing outputs: %w", err)
	}
	for _, meta := range written {
		s.logger.Info().
			Str("file", meta.Name).
			Str("size", humanize.Bytes(uint64(meta.Size))).
			Str("sha256", meta.Hash).
			Msg("wrote output")
	}

	summary := &Summary{
		Records: len(rows),
		Splits: []reporting.SplitStat{
			reporting.NewSplitStat("train", labelsOf(train)),
			reporting.NewSplitStat("val", labelsOf(val)),
			reporting.NewSplitStat("test", labelsOf(test)),
		},
		Manifest: manifest,
		Written:  written,
		Train:    train,
		Duration: time.Since(start),
	}
	for _, st := range summary.Splits {
		s.logger.Info().
			Str("split", st.Name).
			Int("samples", st.Size).
			Str("eligible", reporting.FormatPercent(st.EligibilityRate)).
			Msg("split ready")
	}
	return summary, nil
}
