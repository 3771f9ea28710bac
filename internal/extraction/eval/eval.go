// Package eval scores batches of extracted form documents: how complete
// they are, and how many fields match hand-labelled ground truth.
package eval

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"text/tabwriter"
)

// ErrLengthMismatch is returned when extracted and ground-truth batches differ in size.
var ErrLengthMismatch = errors.New("extracted and ground-truth batches differ in length")

// CompletionExcluded are low-signal fields ignored by the completion metrics.
var CompletionExcluded = map[string]bool{
	"address.entrance":                          true,
	"address.poBox":                             true,
	"landlinePhone":                             true,
	"medicalInstitutionFields.natureOfAccident": true,
	"medicalInstitutionFields.medicalDiagnoses": true,
}

// CorrectnessExcluded are fields ignored when comparing against ground truth.
var CorrectnessExcluded = map[string]bool{
	"address.entrance": true,
	"address.poBox":    true,
}

// Report holds the completion metrics, all in percent.
type Report struct {
	AverageFillAccuracy  float64            `json:"average_fill_accuracy"`
	FieldCompletionRates map[string]float64 `json:"field_completion_rates"`
	OverallAccuracy      float64            `json:"overall_accuracy"`
}

// CorrectnessReport holds the ground-truth metrics, all in percent.
type CorrectnessReport struct {
	FieldCorrectnessRates      map[string]float64 `json:"field_correctness_rates"`
	DocumentCorrectness        float64            `json:"document_correctness"`
	AverageAccuracyPerDocument float64            `json:"average_accuracy_per_document"`
}

// File is a named JSON document read from disk.
type File struct {
	Name string
	Data []byte
}

// ReadDir reads every *.json file in dir, sorted by name.
func ReadDir(dir string) ([]File, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	files := make([]File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		files = append(files, File{Name: filepath.Base(p), Data: data})
	}
	return files, nil
}

// ParseDocuments decodes files into objects. Files that are not a JSON
// object are skipped and reported in the returned errors.
func ParseDocuments(files []File) ([]map[string]interface{}, []error) {
	docs := make([]map[string]interface{}, 0, len(files))
	var skipped []error
	for _, f := range files {
		var doc map[string]interface{}
		if err := json.Unmarshal(f.Data, &doc); err != nil {
			skipped = append(skipped, fmt.Errorf("%s: %w", f.Name, err))
			continue
		}
		if doc == nil {
			skipped = append(skipped, fmt.Errorf("%s: not a JSON object", f.Name))
			continue
		}
		docs = append(docs, doc)
	}
	return docs, skipped
}

// Flatten returns the leaves of doc keyed by dotted path, leaving out
// excluded paths and everything below them.
func Flatten(doc map[string]interface{}, exclude map[string]bool) map[string]interface{} {
	out := make(map[string]interface{})
	flattenInto(out, doc, "", exclude)
	return out
}

func flattenInto(out, doc map[string]interface{}, prefix string, exclude map[string]bool) {
	for key, value := range doc {
		path := joinPath(prefix, key)
		if exclude[path] {
			continue
		}
		if nested, ok := value.(map[string]interface{}); ok {
			flattenInto(out, nested, path, exclude)
			continue
		}
		out[path] = value
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func isEmpty(v interface{}) bool {
	return v == nil || v == ""
}

// AverageFillAccuracy is the share of non-excluded leaves, across all
// documents, that are non-empty.
func AverageFillAccuracy(docs []map[string]interface{}) float64 {
	var total, filled int
	for _, doc := range docs {
		for _, v := range Flatten(doc, CompletionExcluded) {
			total++
			if !isEmpty(v) {
				filled++
			}
		}
	}
	return percent(filled, total)
}

// FieldCompletionRates gives, per field path, the share of documents in
// which that field is non-empty.
func FieldCompletionRates(docs []map[string]interface{}) map[string]float64 {
	rates := make(map[string]float64)
	if len(docs) == 0 {
		return rates
	}
	filled := make(map[string]int)
	for _, doc := range docs {
		for path, v := range Flatten(doc, CompletionExcluded) {
			if _, ok := filled[path]; !ok {
				filled[path] = 0
			}
			if !isEmpty(v) {
				filled[path]++
			}
		}
	}
	for path, n := range filled {
		rates[path] = percent(n, len(docs))
	}
	return rates
}

// OverallAccuracy is the share of documents whose non-excluded leaves are
// all non-empty.
func OverallAccuracy(docs []map[string]interface{}) float64 {
	complete := 0
	for _, doc := range docs {
		full := true
		for _, v := range Flatten(doc, CompletionExcluded) {
			if isEmpty(v) {
				full = false
				break
			}
		}
		if full {
			complete++
		}
	}
	return percent(complete, len(docs))
}

func Evaluate(docs []map[string]interface{}) Report {
	return Report{
		AverageFillAccuracy:  AverageFillAccuracy(docs),
		FieldCompletionRates: FieldCompletionRates(docs),
		OverallAccuracy:      OverallAccuracy(docs),
	}
}

// CompareFields walks the ground truth and reports, per path, whether the
// extracted value matches. Two empty values match. A key missing from
// extracted is reported once at its own path, even for a nested object.
func CompareFields(extracted, truth map[string]interface{}) map[string]bool {
	out := make(map[string]bool)
	compareInto(out, extracted, truth, "")
	return out
}

func compareInto(out map[string]bool, extracted, truth map[string]interface{}, prefix string) {
	for key, want := range truth {
		path := joinPath(prefix, key)
		if CorrectnessExcluded[path] {
			continue
		}
		got, ok := extracted[key]
		if !ok {
			out[path] = false
			continue
		}
		if wantMap, isMap := want.(map[string]interface{}); isMap {
			gotMap, _ := got.(map[string]interface{})
			compareInto(out, gotMap, wantMap, path)
			continue
		}
		switch {
		case isEmpty(got) && isEmpty(want):
			out[path] = true
		default:
			out[path] = reflect.DeepEqual(got, want)
		}
	}
}

// FieldCorrectness gives, per field path, the share of document pairs in
// which the field matches.
func FieldCorrectness(extracted, truth []map[string]interface{}) map[string]float64 {
	rates := make(map[string]float64)
	if len(extracted) == 0 || len(extracted) != len(truth) {
		return rates
	}
	correct := make(map[string]int)
	counts := make(map[string]int)
	for i := range extracted {
		for path, ok := range CompareFields(extracted[i], truth[i]) {
			counts[path]++
			if ok {
				correct[path]++
			}
		}
	}
	for path, n := range counts {
		rates[path] = percent(correct[path], n)
	}
	return rates
}

// DocumentCorrectness is the share of document pairs with every field matching.
func DocumentCorrectness(extracted, truth []map[string]interface{}) float64 {
	if len(extracted) == 0 || len(extracted) != len(truth) {
		return 0
	}
	correct := 0
	for i := range extracted {
		all := true
		for _, ok := range CompareFields(extracted[i], truth[i]) {
			if !ok {
				all = false
				break
			}
		}
		if all {
			correct++
		}
	}
	return percent(correct, len(extracted))
}

// AverageAccuracyPerDocument is the mean, over document pairs, of the share
// of matching fields.
func AverageAccuracyPerDocument(extracted, truth []map[string]interface{}) float64 {
	if len(extracted) == 0 || len(extracted) != len(truth) {
		return 0
	}
	accuracies := make([]float64, 0, len(extracted))
	for i := range extracted {
		cmp := CompareFields(extracted[i], truth[i])
		correct := 0
		for _, ok := range cmp {
			if ok {
				correct++
			}
		}
		accuracies = append(accuracies, percent(correct, len(cmp)))
	}
	return avg(accuracies)
}

// EvaluateWithGroundTruth pairs extracted[i] with truth[i].
func EvaluateWithGroundTruth(extracted, truth []map[string]interface{}) (CorrectnessReport, error) {
	if len(extracted) != len(truth) {
		return CorrectnessReport{}, fmt.Errorf("%w: %d extracted, %d ground truth", ErrLengthMismatch, len(extracted), len(truth))
	}
	return CorrectnessReport{
		FieldCorrectnessRates:      FieldCorrectness(extracted, truth),
		DocumentCorrectness:        DocumentCorrectness(extracted, truth),
		AverageAccuracyPerDocument: AverageAccuracyPerDocument(extracted, truth),
	}, nil
}

// PrintReport writes a human-readable completion report.
func PrintReport(w io.Writer, r Report) {
	fmt.Fprintf(w, "Average fill accuracy: %.2f%%\n", r.AverageFillAccuracy)
	fmt.Fprintf(w, "Fully complete documents: %.2f%%\n\n", r.OverallAccuracy)
	printRates(w, "Completion", r.FieldCompletionRates)
}

// PrintCorrectness writes a human-readable ground-truth report.
func PrintCorrectness(w io.Writer, r CorrectnessReport) {
	fmt.Fprintf(w, "Fully correct documents: %.2f%%\n", r.DocumentCorrectness)
	fmt.Fprintf(w, "Average accuracy per document: %.2f%%\n\n", r.AverageAccuracyPerDocument)
	printRates(w, "Correct", r.FieldCorrectnessRates)
}

func printRates(w io.Writer, column string, rates map[string]float64) {
	paths := make([]string, 0, len(rates))
	for p := range rates {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Field\t%s%%\n", column)
	fmt.Fprintln(tw, "-----\t-----")
	for _, p := range paths {
		fmt.Fprintf(tw, "%s\t%.1f\n", p, rates[p])
	}
	tw.Flush()
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func avg(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
