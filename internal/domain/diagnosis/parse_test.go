package diagnosis

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDiagnosis_Valid(t *testing.T) {
	got, err := ParseDiagnosis(validResponse)
	require.NoError(t, err)

	want := &Diagnosis{
		Crop:             "Tomato",
		IssueName:        "Early Blight",
		Cause:            "Fungus (Alternaria solani)",
		OrganicTreatment: []string{"Remove infected leaves", "Spray neem oil weekly"},
		PreventionTips:   []string{"Rotate crops", "Water at the base"},
		ExpertHelp:       "Consult an extension officer if more than half the plant is affected.",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseDiagnosis mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDiagnosis_UnclearInputShape(t *testing.T) {
	got, err := ParseDiagnosis(`{"crop":"Unknown Crop","issueName":"Please provide more details or a clearer image.","cause":"","organicTreatment":[],"preventionTips":[],"expertHelp":"Not applicable"}`)
	require.NoError(t, err)
	assert.Equal(t, "Unknown Crop", got.Crop)
	assert.NotNil(t, got.OrganicTreatment)
	assert.Empty(t, got.OrganicTreatment)
}

func TestParseDiagnosis_ToleratesWhitespaceAndFence(t *testing.T) {
	for _, text := range []string{
		"\n\n  " + validResponse + "  \n",
		"```json\n" + validResponse + "\n```",
		"```\n" + validResponse + "\n```",
	} {
		got, err := ParseDiagnosis(text)
		require.NoError(t, err)
		assert.Equal(t, "Early Blight", got.IssueName)
	}
}

func TestParseDiagnosis_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty":                   "",
		"plain prose":             "The plant has early blight.",
		"truncated json":          `{"crop":"Tomato","issueName":`,
		"array":                   `["crop"]`,
		"null":                    "null",
		"missing field":           `{"crop":"Tomato","issueName":"Blight","cause":"fungus","organicTreatment":[],"preventionTips":[]}`,
		"string for list":         `{"crop":"Tomato","issueName":"Blight","cause":"fungus","organicTreatment":"neem","preventionTips":[],"expertHelp":"x"}`,
		"number in list":          `{"crop":"Tomato","issueName":"Blight","cause":"fungus","organicTreatment":[1],"preventionTips":[],"expertHelp":"x"}`,
		"null required string":    `{"crop":null,"issueName":"Blight","cause":"fungus","organicTreatment":[],"preventionTips":[],"expertHelp":"x"}`,
		"unterminated code fence": "```",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			var got *Diagnosis
			var err error
			assert.NotPanics(t, func() { got, err = ParseDiagnosis(text) })
			assert.ErrorIs(t, err, ErrInvalidResponse)
			assert.Nil(t, got)
		})
	}
}

func TestParseDiagnosis_IgnoresExtraFields(t *testing.T) {
	got, err := ParseDiagnosis(`{"crop":"Rice","issueName":"Blast","cause":"fungus","organicTreatment":["a","b"],"preventionTips":["c"],"expertHelp":"d","confidence":0.9}`)
	require.NoError(t, err)
	assert.Equal(t, "Rice", got.Crop)
}

func TestSchemaDocument_RequiresEveryField(t *testing.T) {
	doc := SchemaDocument(ResponseSchema())

	assert.Equal(t, "object", doc["type"])
	required, ok := doc["required"].([]interface{})
	require.True(t, ok)
	assert.Len(t, required, len(RequiredFields))

	props := doc["properties"].(map[string]interface{})
	treatment := props[FieldOrganicTreatment].(map[string]interface{})
	assert.Equal(t, "array", treatment["type"])
	assert.Equal(t, map[string]interface{}{"type": "string"}, treatment["items"])
}
