// Package report aggregates rule findings into the validation report and
// persists it as JSON.
package report

import (
	"github.com/JonMunkholm/csvgate/internal/dataset"
	"github.com/JonMunkholm/csvgate/internal/rules"
	"github.com/JonMunkholm/csvgate/internal/schema"
)

// Report is the outcome of one validation run. It is never mutated after
// Build returns it.
type Report struct {
	Success    bool       `json:"success"`
	Statistics Statistics `json:"statistics"`
	Results    []Result   `json:"results"`
	Meta       Meta       `json:"meta"`
}

// Statistics always satisfies Successful + Unsuccessful == Evaluated unless
// findings outnumber expectations, in which case Successful clamps at zero.
type Statistics struct {
	EvaluatedExpectations    int `json:"evaluated_expectations"`
	SuccessfulExpectations   int `json:"successful_expectations"`
	UnsuccessfulExpectations int `json:"unsuccessful_expectations"`
	Rows                     int `json:"rows"`
}

// Result is one failed expectation. ColumnMissing results carry Reason,
// every other kind carries Result.
type Result struct {
	Expectation string `json:"expectation"`
	Column      string `json:"column"`
	Success     bool   `json:"success"`
	Result      any    `json:"result,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Meta identifies the inputs of a run.
type Meta struct {
	CSV        string `json:"csv"`
	ConfigPath string `json:"config_path"`
}

// Build aggregates findings into a report. It performs no I/O.
func Build(meta Meta, s *schema.Schema, d *dataset.Dataset, findings []rules.Finding) *Report {
	results := make([]Result, 0, len(findings))
	for _, f := range findings {
		results = append(results, Result{
			Expectation: f.Expectation(),
			Column:      f.Column,
			Success:     false,
			Result:      f.Result,
			Reason:      f.Reason,
		})
	}

	evaluated := s.ExpectationCount()
	unsuccessful := len(results)

	return &Report{
		Success: unsuccessful == 0,
		Statistics: Statistics{
			EvaluatedExpectations:    evaluated,
			SuccessfulExpectations:   max(0, evaluated-unsuccessful),
			UnsuccessfulExpectations: unsuccessful,
			Rows:                     d.RowCount(),
		},
		Results: results,
		Meta:    meta,
	}
}

// Failing returns up to n results, in evaluation order.
func (r *Report) Failing(n int) []Result {
	if len(r.Results) <= n {
		return r.Results
	}
	return r.Results[:n]
}
