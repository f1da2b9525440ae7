// Package output renders audit reports for the terminal and for files.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/alphagov/csw-engine/internal/models"
)

// ANSI color codes for verdict output (used when Colored=true).
const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[0;31m"
	ansiGreen  = "\033[0;32m"
	ansiYellow = "\033[0;33m"
)

// TableOptions controls how RenderReport renders.
type TableOptions struct {
	// Colored wraps verdicts with ANSI codes. Default false (CI-safe).
	Colored bool

	// ShowCompliant includes passing resources in the detail rows. By
	// default only non-compliant resources are listed.
	ShowCompliant bool
}

// RenderReport writes the audit to w: a header, one summary row per
// criterion, then detail rows for the offending resources.
func RenderReport(w io.Writer, report *models.AuditReport, opts TableOptions) {
	fmt.Fprintf(w, "Audit %s\n", report.AuditID)
	fmt.Fprintf(w, "Account %s (profile %s), generated %s\n",
		report.AccountID, report.Profile, report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Regions: %s\n\n", strings.Join(report.Regions, ", "))

	renderSummaryTable(w, report, opts)
	fmt.Fprintln(w)
	renderDetailTable(w, report, opts)
}

// Fixed column display widths for the per-criterion summary table.
const (
	wCriterion = 44
	wCount     = 6
)

func renderSummaryTable(w io.Writer, report *models.AuditReport, opts TableOptions) {
	header := fmt.Sprintf("%-*s  %*s  %*s  %*s  %*s  %*s",
		wCriterion, "CRITERION",
		wCount, "ALL", wCount, "APPL", wCount, "PASS", wCount, "FAIL", wCount, "N/A")
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", len(header)))

	for _, c := range report.Criteria {
		if c.Err != "" {
			fmt.Fprintf(w, "%-*s  %s\n",
				wCriterion, truncateField(c.Name, wCriterion),
				verdictText("ERROR: "+c.Err, ansiYellow, opts.Colored))
			continue
		}
		fail := fmt.Sprintf("%*d", wCount, c.Summary.NonCompliant.DisplayStat)
		if c.Summary.NonCompliant.DisplayStat > 0 {
			fail = verdictText(fail, ansiRed, opts.Colored)
		}
		fmt.Fprintf(w, "%-*s  %*d  %*d  %*d  %s  %*d\n",
			wCriterion, truncateField(c.Name, wCriterion),
			wCount, c.Summary.All.DisplayStat,
			wCount, c.Summary.Applicable.DisplayStat,
			wCount, c.Summary.Compliant.DisplayStat,
			fail,
			wCount, c.Summary.NotApplicable.DisplayStat)
	}

	s := report.Summary
	fmt.Fprintln(w, strings.Repeat("-", len(header)))
	fmt.Fprintf(w, "%-*s  %*d  %*d  %*d  %*d  %*d\n",
		wCriterion, "TOTAL",
		wCount, s.All.DisplayStat,
		wCount, s.Applicable.DisplayStat,
		wCount, s.Compliant.DisplayStat,
		wCount, s.NonCompliant.DisplayStat,
		wCount, s.NotApplicable.DisplayStat)
}

// Fixed column display widths for the detail table.
const (
	wResource   = 34
	wRegion     = 15
	wVerdict    = 14
	wAnnotation = 60
)

func renderDetailTable(w io.Writer, report *models.AuditReport, opts TableOptions) {
	header := fmt.Sprintf("%-*s  %-*s  %-*s  %-*s",
		wResource, "RESOURCE",
		wRegion, "REGION",
		wVerdict, "VERDICT",
		wAnnotation, "ANNOTATION")

	printed := false
	for _, c := range report.Criteria {
		for _, r := range c.Results {
			if !opts.ShowCompliant && r.Compliance.IsCompliant {
				continue
			}
			if !opts.ShowCompliant && !r.Compliance.IsApplicable {
				continue
			}
			if !printed {
				fmt.Fprintln(w, header)
				fmt.Fprintln(w, strings.Repeat("-", len(header)))
				printed = true
			}
			name := r.Resource.ResourceName
			if name == "" {
				name = r.Resource.ResourceID
			}
			annotation := r.Compliance.Annotation
			if r.Suppressed {
				annotation = "[suppressed] " + annotation
			}
			fmt.Fprintf(w, "%-*s  %-*s  %s  %-*s\n",
				wResource, truncateField(name, wResource),
				wRegion, truncateField(r.Resource.Region, wRegion),
				verdictCell(r.Compliance.Compliance, wVerdict, opts.Colored),
				wAnnotation, ShortenMessage(annotation, wAnnotation))
		}
	}
	if !printed {
		fmt.Fprintln(w, "No non-compliant resources.")
	}
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, report *models.AuditReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report %q: %w", report.AuditID, err)
	}
	return nil
}

// verdictCell returns the verdict padded to width characters. When colored,
// ANSI codes wrap only the text; trailing padding spaces are plain so
// subsequent columns stay aligned regardless of terminal ANSI support.
func verdictCell(v models.ComplianceType, width int, colored bool) string {
	text := string(v)
	if !colored {
		return fmt.Sprintf("%-*s", width, text)
	}
	var code string
	switch v {
	case models.CompliantResource:
		code = ansiGreen
	case models.NonCompliantResource:
		code = ansiRed
	case models.NotApplicableResource:
		code = ansiYellow
	default:
		return fmt.Sprintf("%-*s", width, text)
	}
	spaces := width - len(text)
	if spaces < 0 {
		spaces = 0
	}
	return code + text + ansiReset + strings.Repeat(" ", spaces)
}

func verdictText(s, code string, colored bool) string {
	if !colored {
		return s
	}
	return code + s + ansiReset
}

// ShortenMessage truncates msg to at most max runes, appending "..." when
// truncated. max is treated as at least 4 to guarantee space for the ellipsis.
func ShortenMessage(msg string, max int) string {
	if max < 4 {
		max = 4
	}
	runes := []rune(msg)
	if len(runes) <= max {
		return msg
	}
	return string(runes[:max-3]) + "..."
}

// truncateField shortens s to at most max bytes for ID/label columns.
func truncateField(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
