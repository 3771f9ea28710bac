// Package qaeval scores benefit answers against reference answers by
// embedding similarity.
package qaeval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/healthdesk/benefits-assistant/internal/llm"
	"github.com/healthdesk/benefits-assistant/internal/logger"
	"github.com/healthdesk/benefits-assistant/internal/store"
)

// DefaultThreshold is the similarity at or above which an answer counts as correct.
const DefaultThreshold = 0.85

// ErrNoTestCases is returned when a directory holds no *_test.json cases.
var ErrNoTestCases = errors.New("no test cases found")

type Conversation struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// TestCase is one member profile with the questions asked on its behalf.
type TestCase struct {
	UserInfo      store.Profile  `json:"user_info"`
	Conversations []Conversation `json:"conversations"`
}

type testFile struct {
	TestCases []TestCase `json:"test_cases"`
}

// Answerer answers a benefits question for a member.
type Answerer interface {
	Answer(ctx context.Context, p store.Profile, question string) string
}

// Row is the outcome of one question.
type Row struct {
	HMO        string  `json:"hmo_name"`
	Tier       string  `json:"membership_tier"`
	Question   string  `json:"question"`
	Expected   string  `json:"ground_truth_answer"`
	Generated  string  `json:"generated_answer"`
	Similarity float64 `json:"similarity"`
	Correct    bool    `json:"is_correct"`
}

// Report aggregates rows. Accuracies are percentages.
type Report struct {
	Threshold  float64            `json:"threshold"`
	Total      int                `json:"total"`
	Accuracy   float64            `json:"overall_accuracy"`
	ByQuestion map[string]float64 `json:"accuracy_by_question"`
	ByHMO      map[string]float64 `json:"accuracy_by_hmo"`
	ByTier     map[string]float64 `json:"accuracy_by_tier"`
	Rows       []Row              `json:"rows"`
}

// LoadDir reads the test cases of every *_test.json file in dir.
func LoadDir(dir string) ([]TestCase, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*_test.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var cases []TestCase
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		var f testFile
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		cases = append(cases, f.TestCases...)
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoTestCases, dir)
	}
	return cases, nil
}

type Evaluator struct {
	qa        Answerer
	embedder  llm.Embedder
	threshold float64
	log       *logger.Logger
}

func NewEvaluator(qa Answerer, embedder llm.Embedder, log *logger.Logger) *Evaluator {
	return &Evaluator{qa: qa, embedder: embedder, threshold: DefaultThreshold, log: log}
}

// Run answers every question in cases and scores it. Embedding failures
// abort the run.
func (e *Evaluator) Run(ctx context.Context, cases []TestCase) (*Report, error) {
	var rows []Row
	for _, tc := range cases {
		for _, conv := range tc.Conversations {
			generated := e.qa.Answer(ctx, tc.UserInfo, conv.Question)

			want, err := e.embedder.Embed(ctx, conv.Answer)
			if err != nil {
				return nil, fmt.Errorf("embed reference answer: %w", err)
			}
			got, err := e.embedder.Embed(ctx, generated)
			if err != nil {
				return nil, fmt.Errorf("embed generated answer: %w", err)
			}
			sim, err := CosineSimilarity(want, got)
			if err != nil {
				return nil, fmt.Errorf("compare answers for %q: %w", conv.Question, err)
			}

			rows = append(rows, Row{
				HMO:        tc.UserInfo.HMOName,
				Tier:       tc.UserInfo.MembershipTier,
				Question:   conv.Question,
				Expected:   conv.Answer,
				Generated:  generated,
				Similarity: sim,
				Correct:    sim >= e.threshold,
			})
			e.log.Debug("question scored", "question", conv.Question, "similarity", sim)
		}
	}
	return buildReport(rows, e.threshold), nil
}

func buildReport(rows []Row, threshold float64) *Report {
	r := &Report{
		Threshold:  threshold,
		Total:      len(rows),
		ByQuestion: accuracyBy(rows, func(row Row) string { return row.Question }),
		ByHMO:      accuracyBy(rows, func(row Row) string { return row.HMO }),
		ByTier:     accuracyBy(rows, func(row Row) string { return row.Tier }),
		Rows:       rows,
	}
	correct := 0
	for _, row := range rows {
		if row.Correct {
			correct++
		}
	}
	if len(rows) > 0 {
		r.Accuracy = float64(correct) / float64(len(rows)) * 100
	}
	return r
}

func accuracyBy(rows []Row, key func(Row) string) map[string]float64 {
	total := make(map[string]int)
	correct := make(map[string]int)
	for _, row := range rows {
		k := key(row)
		total[k]++
		if row.Correct {
			correct[k]++
		}
	}
	out := make(map[string]float64, len(total))
	for k, n := range total {
		out[k] = float64(correct[k]) / float64(n) * 100
	}
	return out
}

// WriteText writes the report in a readable layout.
func (r *Report) WriteText(w io.Writer) {
	fmt.Fprintln(w, "QA Service Evaluation Report")
	fmt.Fprintln(w, "============================")
	fmt.Fprintf(w, "Questions: %d\nThreshold: %.2f\nAccuracy: %.2f%%\n", r.Total, r.Threshold, r.Accuracy)

	writeGroup(w, "Question", r.ByQuestion)
	writeGroup(w, "HMO", r.ByHMO)
	writeGroup(w, "Tier", r.ByTier)
}

func writeGroup(w io.Writer, title string, acc map[string]float64) {
	keys := make([]string, 0, len(acc))
	for k := range acc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\tAccuracy%%\n", title)
	fmt.Fprintln(tw, "--------\t---------")
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%.1f\n", k, acc[k])
	}
	tw.Flush()
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
