// Package report formats a Diagnosis for terminals and agent tools using the
// localized section titles of the result card.
package report

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/matiasleandrokruk/cropdoctor/internal/domain/diagnosis"
	"github.com/matiasleandrokruk/cropdoctor/internal/i18n"
)

// Output formats accepted by Render.
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

// Formats lists every accepted format.
var Formats = []string{FormatJSON, FormatMarkdown, FormatText}

// Markdown renders d as a Markdown document with the same sections as the
// web result card.
func Markdown(d *diagnosis.Diagnosis, bundle *i18n.Bundle, locale string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", d.Crop)
	fmt.Fprintf(&b, "## %s\n\n%s\n\n", bundle.T(locale, "issueTitle"), d.IssueName)
	fmt.Fprintf(&b, "## %s\n\n%s\n\n", bundle.T(locale, "causeTitle"), d.Cause)
	fmt.Fprintf(&b, "## %s\n\n", bundle.T(locale, "treatmentTitle"))
	writeList(&b, d.OrganicTreatment)
	fmt.Fprintf(&b, "## %s\n\n", bundle.T(locale, "preventionTitle"))
	writeList(&b, d.PreventionTips)
	fmt.Fprintf(&b, "## %s\n\n%s\n", bundle.T(locale, "expertHelpTitle"), d.ExpertHelp)
	return b.String()
}

func writeList(b *strings.Builder, items []string) {
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

// Text renders d as plain text without terminal styling.
func Text(d *diagnosis.Diagnosis, bundle *i18n.Bundle, locale string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", d.Crop, d.IssueName)
	fmt.Fprintf(&b, "\n%s: %s\n", bundle.T(locale, "causeTitle"), d.Cause)
	fmt.Fprintf(&b, "\n%s:\n", bundle.T(locale, "treatmentTitle"))
	for i, item := range d.OrganicTreatment {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, item)
	}
	fmt.Fprintf(&b, "\n%s:\n", bundle.T(locale, "preventionTitle"))
	for i, item := range d.PreventionTips {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, item)
	}
	fmt.Fprintf(&b, "\n%s: %s\n", bundle.T(locale, "expertHelpTitle"), d.ExpertHelp)
	return b.String()
}

// CheckFormat reports whether Render accepts format.
func CheckFormat(format string) error {
	if !slices.Contains(Formats, format) {
		return fmt.Errorf("report: unknown format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
	return nil
}

// Render formats d. Markdown is styled for a terminal of width columns.
func Render(d *diagnosis.Diagnosis, format string, bundle *i18n.Bundle, locale string, width int) (string, error) {
	switch format {
	case FormatJSON:
		out, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return "", fmt.Errorf("report: marshal: %w", err)
		}
		return string(out) + "\n", nil
	case FormatText:
		return Text(d, bundle, locale), nil
	case FormatMarkdown:
		if width <= 0 {
			width = 80
		}
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
		if err != nil {
			return "", fmt.Errorf("report: renderer: %w", err)
		}
		out, err := r.Render(Markdown(d, bundle, locale))
		if err != nil {
			return "", fmt.Errorf("report: render: %w", err)
		}
		return out, nil
	default:
		return "", CheckFormat(format)
	}
}
