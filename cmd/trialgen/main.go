package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/trialgen/internal/config"
	"github.com/ehr/trialgen/internal/domain/preprocess"
	"github.com/ehr/trialgen/internal/platform/blobstore"
	"github.com/ehr/trialgen/internal/platform/dataset"
	"github.com/ehr/trialgen/internal/platform/reporting"
	"github.com/ehr/trialgen/internal/platform/sandbox"
)

const (
	previewRecords  = 3
	previewTextRune = 200
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// app carries what every subcommand needs once configuration is resolved.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	store  blobstore.Store
	out    io.Writer
	errOut io.Writer
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	rootCmd := &cobra.Command{
		Use:          "trialgen",
		Short:        "Synthetic clinical-trial screening dataset generator",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.PersistentFlags().String("data-dir", "", "directory holding input and output files (DATA_DIR)")

	rootCmd.AddCommand(a.generateCmd())
	rootCmd.AddCommand(a.preprocessCmd())
	rootCmd.AddCommand(a.runCmd())
	return rootCmd
}

func (a *app) generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the raw screening dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.generate(cmd.Context())
		},
	}
	addGenerateFlags(cmd)
	return cmd
}

func (a *app) preprocessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preprocess",
		Short: "Encode, flatten and split the raw dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.preprocess(cmd.Context())
		},
	}
	addPreprocessFlags(cmd, true)
	return cmd
}

func (a *app) runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate the raw dataset, then preprocess it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.generate(cmd.Context()); err != nil {
				return err
			}
			return a.preprocess(cmd.Context())
		},
	}
	addGenerateFlags(cmd)
	addPreprocessFlags(cmd, false)
	return cmd
}

func addGenerateFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("samples", 0, "number of patients to generate (N_SAMPLES)")
	f.Int64("seed", 0, "generator seed (SEED)")
	f.String("out", "", "raw dataset file name (RAW_FILE)")
}

// addPreprocessFlags registers the split flags. run names its raw file
// with --out, so it skips --in.
func addPreprocessFlags(cmd *cobra.Command, withInput bool) {
	f := cmd.Flags()
	if withInput {
		f.String("in", "", "raw dataset file name (RAW_FILE)")
	}
	f.String("train", "", "train split file name (TRAIN_FILE)")
	f.String("val", "", "validation split file name (VAL_FILE)")
	f.String("test", "", "test split file name (TEST_FILE)")
	f.String("encoders", "", "label encoder manifest, .json or .yaml (ENCODERS_FILE)")
	f.Float64("test-fraction", 0, "fraction of rows held out for test (TEST_FRACTION)")
	f.Float64("val-fraction", 0, "fraction of rows held out for validation (VAL_FRACTION)")
	f.Int64("split-seed", 0, "split seed (SPLIT_SEED)")
}

// setup loads configuration, applies explicitly set flags on top, and
// builds the logger and the store.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg, a.errOut)
	if err != nil {
		return err
	}
	store, err := blobstore.NewDirStore(cfg.DataDir)
	if err != nil {
		return err
	}

	a.cfg, a.logger, a.store = cfg, logger, store
	return nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	var err error
	set := func(name string, apply func() error) {
		if err == nil && f.Changed(name) {
			err = apply()
		}
	}

	set("data-dir", func() (e error) { cfg.DataDir, e = f.GetString("data-dir"); return })
	set("samples", func() (e error) { cfg.NSamples, e = f.GetInt("samples"); return })
	set("seed", func() (e error) { cfg.Seed, e = f.GetInt64("seed"); return })
	set("out", func() (e error) { cfg.RawFile, e = f.GetString("out"); return })
	set("in", func() (e error) { cfg.RawFile, e = f.GetString("in"); return })
	set("train", func() (e error) { cfg.TrainFile, e = f.GetString("train"); return })
	set("val", func() (e error) { cfg.ValFile, e = f.GetString("val"); return })
	set("test", func() (e error) { cfg.TestFile, e = f.GetString("test"); return })
	set("encoders", func() (e error) { cfg.EncodersFile, e = f.GetString("encoders"); return })
	set("test-fraction", func() (e error) { cfg.TestFraction, e = f.GetFloat64("test-fraction"); return })
	set("val-fraction", func() (e error) { cfg.ValFraction, e = f.GetFloat64("val-fraction"); return })
	set("split-seed", func() (e error) { cfg.SplitSeed, e = f.GetInt64("split-seed"); return })
	return err
}

func newLogger(cfg *config.Config, w io.Writer) (zerolog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return zerolog.Nop(), err
	}
	logger := zerolog.New(w)
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w})
	}
	return logger.Level(level).With().
		Timestamp().
		Str("run_id", uuid.NewString()).
		Logger(), nil
}

func (a *app) generate(ctx context.Context) error {
	a.logger.Info().
		Int("samples", a.cfg.NSamples).
		Int64("seed", a.cfg.Seed).
		Msg("generating synthetic dataset")

	seeder := sandbox.NewSeeder(sandbox.SeedConfig{
		PatientCount: a.cfg.NSamples,
		Seed:         uint32(a.cfg.Seed),
	})
	result, err := seeder.Generate()
	if err != nil {
		return fmt.Errorf("generating dataset: %w", err)
	}

	records := seeder.Records()
	meta, err := dataset.WriteRecords(ctx, a.store, a.cfg.RawFile, records)
	if err != nil {
		return err
	}
	a.logger.Info().
		Str("file", meta.Name).
		Str("rows", humanize.Comma(int64(result.Patients))).
		Str("size", humanize.Bytes(uint64(meta.Size))).
		Int("eligible", result.Eligible).
		Int("ineligible", result.Ineligible).
		Dur("elapsed", result.Duration).
		Msg("dataset written")

	fmt.Fprintln(a.out, reporting.RenderSummary(reporting.Summarize(records)))
	if len(records) > 0 {
		fmt.Fprintln(a.out, "Sample records:")
		fmt.Fprintln(a.out, reporting.RenderRecords(records, previewRecords))
	}
	return nil
}

func (a *app) preprocess(ctx context.Context) error {
	svc := preprocess.NewService(a.store, a.logger)
	svc.SetSplitConfig(preprocess.SplitConfig{
		TestFraction: a.cfg.TestFraction,
		ValFraction:  a.cfg.ValFraction,
		Seed:         uint32(a.cfg.SplitSeed),
	})

	summary, err := svc.Run(ctx, preprocess.Paths{
		Raw:      a.cfg.RawFile,
		Train:    a.cfg.TrainFile,
		Val:      a.cfg.ValFile,
		Test:     a.cfg.TestFile,
		Encoders: a.cfg.EncodersFile,
	})
	if err != nil {
		return err
	}
	a.logger.Info().
		Int("records", summary.Records).
		Dur("elapsed", summary.Duration).
		Msg("preprocessing complete")

	fmt.Fprintln(a.out, reporting.RenderSplits(summary.Splits))
	if len(summary.Train) > 0 {
		fmt.Fprintln(a.out, "Sample combined text:")
		fmt.Fprintln(a.out, reporting.Truncate(summary.Train[0].CombinedText, previewTextRune))
	}
	return nil
}
