// Package observability provides logging, metrics and formatted CLI output.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jonathan/ocr-review/internal/review"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// RunView is the printable form of a stage run.
type RunView struct {
	Stage          string
	Total          int
	Success        int
	PartialFailure int
	Failed         int
	FailedPages    []int
	Elapsed        time.Duration
	Strategies     map[string]int
	Methods        map[string]int
}

// PageLine is one row of a per-page listing.
type PageLine struct {
	Page   int
	Status string
	Error  string
}

// Printer handles formatted output for the CLI
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintRunSummary outputs the counts and failed pages of a stage run.
func (p *Printer) PrintRunSummary(v *RunView) {
	if v == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total:            %d\n", v.Total))
	sb.WriteString(fmt.Sprintf("Success:          %d\n", v.Success))
	sb.WriteString(fmt.Sprintf("Partial failure:  %d\n", v.PartialFailure))
	sb.WriteString(fmt.Sprintf("Failed:           %d\n", v.Failed))
	sb.WriteString(fmt.Sprintf("Elapsed:          %s\n", v.Elapsed.Round(time.Millisecond)))

	if len(v.FailedPages) > 0 {
		sb.WriteString(fmt.Sprintf("\nPages to retry: %s\n", formatPages(v.FailedPages)))
	}

	if len(v.Strategies) > 0 {
		sb.WriteString("\nRecovery strategies:\n")
		writeCounts(&sb, v.Strategies)
	}
	if len(v.Methods) > 0 {
		sb.WriteString("\nCorrection methods:\n")
		writeCounts(&sb, v.Methods)
	}

	p.printBox(strings.ToUpper(v.Stage)+" RUN SUMMARY", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintFailures lists the first failing pages with their errors.
func (p *Printer) PrintFailures(lines []PageLine) {
	if len(lines) == 0 {
		return
	}

	var sb strings.Builder
	count := min(len(lines), maxItemsToShow)
	for i := 0; i < count; i++ {
		l := lines[i]
		sb.WriteString(fmt.Sprintf("Page %d [%s]\n", l.Page, l.Status))
		if l.Error != "" {
			msg := l.Error
			if len(msg) > 50 {
				msg = msg[:47] + "..."
			}
			sb.WriteString(fmt.Sprintf("  %s\n", msg))
		}
	}
	if len(lines) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more\n", len(lines)-maxItemsToShow))
	}

	p.printBox("FAILED PAGES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintReviewStats outputs quality and severity counts of a review.
func (p *Printer) PrintReviewStats(stats *review.Stats) {
	if stats == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Pages reviewed:  %d/%d\n", stats.Reviewed, stats.Pages))
	sb.WriteString(fmt.Sprintf("Total issues:    %d\n", stats.TotalIssues))
	sb.WriteString("\nQuality:\n")
	for _, q := range []string{review.QualityExcellent, review.QualityGood, review.QualityFair, review.QualityPoor, review.QualityUnknown} {
		if n, ok := stats.Quality[q]; ok {
			sb.WriteString(fmt.Sprintf("  %-10s %d\n", q, n))
		}
	}
	sb.WriteString("\nSeverity:\n")
	for _, s := range []string{review.SeverityCritical, review.SeverityMajor, review.SeverityMinor} {
		sb.WriteString(fmt.Sprintf("  %-10s %d\n", s, stats.Severity[s]))
	}

	p.printBox("QA REVIEW", strings.TrimSuffix(sb.String(), "\n"))
}

func writeCounts(sb *strings.Builder, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(sb, "  %-26s %d\n", k, counts[k])
	}
}

// formatPages renders ascending page ids, collapsing consecutive runs.
func formatPages(pages []int) string {
	var parts []string
	for i := 0; i < len(pages); {
		j := i
		for j+1 < len(pages) && pages[j+1] == pages[j]+1 {
			j++
		}
		if j > i {
			parts = append(parts, fmt.Sprintf("%d-%d", pages[i], pages[j]))
		} else {
			parts = append(parts, fmt.Sprintf("%d", pages[i]))
		}
		i = j + 1
	}
	return strings.Join(parts, ", ")
}
