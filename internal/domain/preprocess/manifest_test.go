package preprocess

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleManifest() Manifest {
	m := NewManifest()
	m.Set("cancer_type", []string{"Breast", "Lung"})
	m.Set("stage", []string{"I", "IV"})
	m.Set("biomarker", []string{"ER+", "HER2-"})
	return m
}

func TestManifest_JSONLayout(t *testing.T) {
	t.Parallel()

	data, err := sampleManifest().Encode("label_encoders.json")
	require.NoError(t, err)
	assert.Equal(t,
		`{"cancer_type": ["Breast", "Lung"], "stage": ["I", "IV"], "biomarker": ["ER+", "HER2-"]}`,
		string(data))
}

func TestManifest_SetKeepsFirstPosition(t *testing.T) {
	t.Parallel()

	m := sampleManifest()
	m.Set("cancer_type", []string{"Colon"})
	assert.Equal(t, []string{"cancer_type", "stage", "biomarker"}, m.Columns)
	assert.Equal(t, []string{"Colon"}, m.Classes["cancer_type"])
}

func TestManifest_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"label_encoders.json", "label_encoders.yaml", "enc.YML"} {
		t.Run(name, func(t *testing.T) {
			data, err := sampleManifest().Encode(name)
			require.NoError(t, err)

			got, err := DecodeManifest(name, data)
			require.NoError(t, err)
			assert.Equal(t, sampleManifest(), got)
		})
	}
}

func TestManifest_YAMLIsBlockStyle(t *testing.T) {
	t.Parallel()

	data, err := sampleManifest().Encode("label_encoders.yaml")
	require.NoError(t, err)
	out := string(data)
	assert.True(t, strings.HasPrefix(out, "cancer_type:\n"), out)
	assert.Less(t, strings.Index(out, "cancer_type:"), strings.Index(out, "stage:"))
	assert.Less(t, strings.Index(out, "stage:"), strings.Index(out, "biomarker:"))
}

func TestDecodeManifest_UnknownColumnsSortedLast(t *testing.T) {
	t.Parallel()

	got, err := DecodeManifest("m.json", []byte(`{"zeta": ["b"], "stage": ["I"], "alpha": ["a"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"stage", "alpha", "zeta"}, got.Columns)
}

func TestDecodeManifest_Invalid(t *testing.T) {
	t.Parallel()

	_, err := DecodeManifest("m.json", []byte(`{"stage": "I"`))
	assert.Error(t, err)
}

func TestManifest_Encoder(t *testing.T) {
	t.Parallel()

	m := sampleManifest()
	enc, err := m.Encoder("stage")
	require.NoError(t, err)
	code, err := enc.Encode("IV")
	require.NoError(t, err)
	assert.Equal(t, 1, code)

	_, err = m.Encoder("ecog_score")
	assert.Error(t, err)
}
