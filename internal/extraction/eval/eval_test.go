package eval

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tenFieldDoc has ten scored leaves, seven of them filled, plus excluded ones.
func tenFieldDoc() map[string]interface{} {
	return map[string]interface{}{
		"lastName":      "כהן",
		"firstName":     "דנה",
		"idNumber":      "123456782",
		"gender":        "",
		"landlinePhone": "",
		"dateOfBirth": map[string]interface{}{
			"day": "02", "month": "02", "year": "",
		},
		"address": map[string]interface{}{
			"street": "הרמבם", "city": "", "entrance": "", "poBox": "",
		},
		"medicalInstitutionFields": map[string]interface{}{
			"healthFundMember": "מכבי", "natureOfAccident": "", "medicalDiagnoses": "",
		},
	}
}

func TestFlatten(t *testing.T) {
	flat := Flatten(tenFieldDoc(), CompletionExcluded)
	assert.Len(t, flat, 10)
	assert.Equal(t, "02", flat["dateOfBirth.day"])
	assert.NotContains(t, flat, "address.entrance")
	assert.NotContains(t, flat, "landlinePhone")
}

func TestAverageFillAccuracy(t *testing.T) {
	assert.Equal(t, 0.0, AverageFillAccuracy(nil))
	assert.InDelta(t, 70.0, AverageFillAccuracy([]map[string]interface{}{tenFieldDoc()}), 1e-9)
}

func TestFieldCompletionRates(t *testing.T) {
	empty := map[string]interface{}{"lastName": "", "gender": nil}
	rates := FieldCompletionRates([]map[string]interface{}{tenFieldDoc(), empty})
	assert.InDelta(t, 50.0, rates["lastName"], 1e-9)
	assert.InDelta(t, 0.0, rates["gender"], 1e-9)
	assert.InDelta(t, 50.0, rates["address.street"], 1e-9)
	assert.NotContains(t, rates, "address.poBox")

	assert.Empty(t, FieldCompletionRates(nil))
}

func TestOverallAccuracy(t *testing.T) {
	full := map[string]interface{}{
		"lastName": "כהן",
		"address":  map[string]interface{}{"street": "הרמבם", "poBox": ""},
	}
	docs := []map[string]interface{}{full, tenFieldDoc(), {"lastName": ""}}
	assert.InDelta(t, 33.33, OverallAccuracy(docs), 0.01)
	assert.Equal(t, 0.0, OverallAccuracy(nil))
}

func TestCompareFields(t *testing.T) {
	truth := map[string]interface{}{
		"lastName":  "כהן",
		"firstName": "",
		"jobType":   "נהג",
		"gender":    "נקבה",
		"address":   map[string]interface{}{"street": "הרמבם", "entrance": "1"},
	}
	extracted := map[string]interface{}{
		"lastName":  "כהן",
		"firstName": nil,
		"jobType":   "מלצר",
		"address":   map[string]interface{}{"street": "הרמבם", "entrance": "2"},
	}
	assert.Equal(t, map[string]bool{
		"lastName":       true,
		"firstName":      true,
		"jobType":        false,
		"gender":         false,
		"address.street": true,
	}, CompareFields(extracted, truth))
}

func TestEvaluateWithGroundTruth(t *testing.T) {
	truth := []map[string]interface{}{
		{"lastName": "כהן", "firstName": "דנה"},
		{"lastName": "לוי", "firstName": "אבי"},
	}
	extracted := []map[string]interface{}{
		{"lastName": "כהן", "firstName": "דנה"},
		{"lastName": "לוי", "firstName": "אבו"},
	}

	report, err := EvaluateWithGroundTruth(extracted, truth)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, report.DocumentCorrectness, 1e-9)
	assert.InDelta(t, 75.0, report.AverageAccuracyPerDocument, 1e-9)
	assert.InDelta(t, 100.0, report.FieldCorrectnessRates["lastName"], 1e-9)
	assert.InDelta(t, 50.0, report.FieldCorrectnessRates["firstName"], 1e-9)

	_, err = EvaluateWithGroundTruth(extracted, truth[:1])
	assert.ErrorIs(t, err, ErrLengthMismatch)

	report, err = EvaluateWithGroundTruth(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, report.DocumentCorrectness)
	assert.Empty(t, report.FieldCorrectnessRates)
}

func TestReadDirAndParse(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(`{"lastName": "לוי"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{"lastName": "כהן"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.json"), []byte(`not json`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "d.md"), []byte(`# Text File #`), 0o644))

	files, err := ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "a.json", files[0].Name)

	docs, skipped := ParseDocuments(files)
	require.Len(t, docs, 2)
	assert.Equal(t, "כהן", docs[0]["lastName"])
	require.Len(t, skipped, 1)
	assert.Contains(t, skipped[0].Error(), "c.json")
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, Evaluate([]map[string]interface{}{tenFieldDoc()}))
	out := buf.String()
	assert.Contains(t, out, "Average fill accuracy: 70.00%")
	assert.Contains(t, out, "dateOfBirth.year")

	buf.Reset()
	require.NoError(t, WriteJSON(&buf, CorrectnessReport{DocumentCorrectness: 50}))
	assert.Contains(t, buf.String(), `"document_correctness": 50`)
}
