package report

import (
	"sort"
	"unicode/utf8"

	"stegoscope/pkg/extract"
	"stegoscope/pkg/models"
)

// selectorRank maps each known selector to its priority index so the report
// lists attempts in search order regardless of how they arrive.
var selectorRank = func() map[string]int {
	m := make(map[string]int, len(extract.Priority))
	for i, sel := range extract.Priority {
		m[sel.String()] = i
	}
	return m
}()

// Build merges completed jobs and extraction attempts into one report. It is
// a pure, order-independent merge: feeding it the same terminal sets in any
// order yields an identical report. Analyzer listings sort by name, attempts
// by selector priority.
func Build(sub *models.ImageSubmission, jobs []models.AnalyzerJob, attempts []models.ExtractionAttempt) *models.Report {
	sortedJobs := append([]models.AnalyzerJob(nil), jobs...)
	sort.Slice(sortedJobs, func(i, j int) bool {
		return sortedJobs[i].Analyzer < sortedJobs[j].Analyzer
	})

	sortedAttempts := append([]models.ExtractionAttempt(nil), attempts...)
	sort.Slice(sortedAttempts, func(i, j int) bool {
		ri, iKnown := selectorRank[sortedAttempts[i].Selector]
		rj, jKnown := selectorRank[sortedAttempts[j].Selector]
		switch {
		case iKnown && jKnown:
			return ri < rj
		case iKnown:
			return true
		case jKnown:
			return false
		}
		return sortedAttempts[i].Selector < sortedAttempts[j].Selector
	})

	var summary models.Summary
	for _, job := range sortedJobs {
		switch job.Status {
		case models.StatusOK:
			summary.OKCount++
		case models.StatusSkipped:
			summary.SkippedCount++
		case models.StatusError:
			summary.ErrorCount++
		}
	}

	return &models.Report{
		SubmissionHash:        sub.Hash,
		DetectedFormat:        sub.Format,
		Analyzers:             sortedJobs,
		ExtractionAttempts:    sortedAttempts,
		HeadlineRecoveredText: headline(sortedAttempts),
		Summary:               summary,
	}
}

// headline picks the first RECOVERED attempt in priority order whose bytes
// render as text.
func headline(attempts []models.ExtractionAttempt) string {
	for _, a := range attempts {
		if a.Outcome != models.OutcomeRecovered {
			continue
		}
		if utf8.Valid(a.Recovered) {
			return string(a.Recovered)
		}
	}
	return ""
}

// Candidates returns the distinct recovered texts in priority order. Several
// selectors can surface the same payload (a red-channel message also appears
// in the combined stream on some carriers); callers rendering a candidate
// list want each text once.
func Candidates(r *models.Report) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, a := range r.ExtractionAttempts {
		if a.Outcome != models.OutcomeRecovered || !utf8.Valid(a.Recovered) {
			continue
		}
		text := string(a.Recovered)
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		out = append(out, text)
	}
	return out
}
