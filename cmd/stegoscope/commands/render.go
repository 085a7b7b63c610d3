package commands

import (
	"fmt"

	"github.com/fatih/color"

	"stegoscope/pkg/models"
	"stegoscope/pkg/report"
)

var (
	infoColor    = color.New(color.FgBlue).SprintFunc()
	successColor = color.New(color.FgGreen).SprintFunc()
	warningColor = color.New(color.FgYellow).SprintFunc()
	errorColor   = color.New(color.FgRed).SprintFunc()
	alertColor   = color.New(color.FgRed, color.Bold).SprintFunc()
)

func printInfo(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", infoColor("[*]"), fmt.Sprintf(format, args...))
}

func printSuccess(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", successColor("[+]"), fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", warningColor("[!]"), fmt.Sprintf(format, args...))
}

func printError(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", errorColor("[-]"), fmt.Sprintf(format, args...))
}

func printAlert(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", alertColor("[!!!]"), fmt.Sprintf(format, args...))
}

func renderReport(rep *models.Report) {
	printInfo("Submission %s detected as %s", rep.SubmissionHash[:12], rep.DetectedFormat)

	fmt.Println("\n--- Analyzers ---")
	for _, job := range rep.Analyzers {
		switch job.Status {
		case models.StatusOK:
			printSuccess("%-10s ok (%dms)", job.Analyzer, job.Elapsed)
		case models.StatusSkipped:
			printInfo("%-10s skipped: %s", job.Analyzer, job.Reason)
		default:
			printError("%-10s %s: %s", job.Analyzer, job.Code, job.Reason)
		}
		for _, artifact := range job.Artifacts {
			fmt.Printf("      artifact: %s\n", artifact)
		}
	}

	if len(rep.ExtractionAttempts) > 0 {
		fmt.Println("\n--- Selector search ---")
		for _, a := range rep.ExtractionAttempts {
			switch a.Outcome {
			case models.OutcomeRecovered:
				printAlert("%-18s recovered %d bytes", a.Selector, len(a.Recovered))
			case models.OutcomeTruncated:
				printWarning("%-18s truncated: %s", a.Selector, a.Note)
			case models.OutcomeInvalid:
				printWarning("%-18s invalid", a.Selector)
			default:
				printInfo("%-18s empty", a.Selector)
			}
		}
	}

	if candidates := report.Candidates(rep); len(candidates) > 0 {
		fmt.Println("\n--- Recovered content ---")
		for _, text := range candidates {
			fmt.Println(text)
		}
	} else if rep.DetectedFormat.PlaneAddressable() {
		printInfo("No hidden text recovered by the selector search")
	}

	fmt.Printf("\nSummary: %d ok, %d skipped, %d error\n",
		rep.Summary.OKCount, rep.Summary.SkippedCount, rep.Summary.ErrorCount)
}
