package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehr/trialgen/internal/domain/preprocess"
	"github.com/ehr/trialgen/internal/platform/dataset"
)

// execute runs the CLI with args against a fresh temp data directory.
func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "warn")

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(append([]string{"--data-dir", dir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestGenerate_WritesRawDataset(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, dir, "generate", "--samples", "40", "--seed", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "Eligibility rate")
	assert.Contains(t, out, "PT0002")
	assert.NotContains(t, out, "PT0003")

	f, err := os.Open(filepath.Join(dir, "clinical_trial_data.csv"))
	require.NoError(t, err)
	defer f.Close()
	records, err := dataset.DecodeRecords(f)
	require.NoError(t, err)
	assert.Len(t, records, 40)
}

func TestGenerate_Reproducible(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	_, err := execute(t, a, "generate", "--samples", "30")
	require.NoError(t, err)
	_, err = execute(t, b, "generate", "--samples", "30")
	require.NoError(t, err)

	x, err := os.ReadFile(filepath.Join(a, "clinical_trial_data.csv"))
	require.NoError(t, err)
	y, err := os.ReadFile(filepath.Join(b, "clinical_trial_data.csv"))
	require.NoError(t, err)
	assert.Equal(t, x, y)
}

func TestGenerate_ZeroSamplesWritesHeaderOnly(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, dir, "generate", "--samples", "0")
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(dir, "clinical_trial_data.csv"))
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count(b, []byte("\n")))
}

func TestRun_WritesAllOutputs(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, dir, "run", "--samples", "120", "--encoders", "encoders.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "Sample combined text:")
	assert.Contains(t, out, "Age: ")

	for _, name := range []string{"clinical_trial_data.csv", "train_data.csv", "val_data.csv", "test_data.csv", "encoders.yaml"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	total := 0
	for _, name := range []string{"train_data.csv", "val_data.csv", "test_data.csv"} {
		f, err := os.Open(filepath.Join(dir, name))
		require.NoError(t, err)
		rows, err := preprocess.DecodeRows(f)
		f.Close()
		require.NoError(t, err, name)
		total += len(rows)
	}
	assert.Equal(t, 120, total)
}

func TestPreprocess_CustomNames(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, dir, "generate", "--samples", "60", "--out", "raw.csv")
	require.NoError(t, err)

	_, err = execute(t, dir, "preprocess", "--in", "raw.csv", "--train", "tr.csv", "--val", "va.csv", "--test", "te.csv")
	require.NoError(t, err)
	for _, name := range []string{"tr.csv", "va.csv", "te.csv", "label_encoders.json"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestPreprocess_MissingInputFails(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, dir, "preprocess")
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "train_data.csv"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestInvalidFlagsRejected(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, dir, "preprocess", "--test-fraction", "1.5")
	assert.ErrorContains(t, err, "TEST_FRACTION")

	_, err = execute(t, dir, "generate", "--seed", "-1")
	assert.ErrorContains(t, err, "SEED")
}
