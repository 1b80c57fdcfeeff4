package main

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/cropdoctor/internal/domain/diagnosis"
	"github.com/matiasleandrokruk/cropdoctor/internal/i18n"
	"github.com/matiasleandrokruk/cropdoctor/internal/report"
)

type diagnoseFlags struct {
	text      string
	imagePath string
	mimeType  string
	format    string
	lang      string
	width     int
}

func newDiagnoseCmd(flags *globalFlags) *cobra.Command {
	f := &diagnoseFlags{}
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Diagnose one crop problem and print the result",
		Example: `  cropdoctor diagnose --text "yellow spots with brown rings on tomato leaves"
  cropdoctor diagnose --image leaf.jpg --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (f.text == "") == (f.imagePath == "") {
				return usageError{fmt.Errorf("exactly one of --text or --image is required")}
			}
			if err := report.CheckFormat(f.format); err != nil {
				return usageError{err}
			}
			return runDiagnose(cmd.Context(), flags, f, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&f.text, "text", "", "Description of the symptoms")
	cmd.Flags().StringVar(&f.imagePath, "image", "", "Path to a PNG, JPEG or WebP photo")
	cmd.Flags().StringVar(&f.mimeType, "mime", "", "Image MIME type (default: from the file)")
	cmd.Flags().StringVar(&f.format, "format", report.FormatMarkdown, "Output format: "+strings.Join(report.Formats, ", "))
	cmd.Flags().StringVar(&f.lang, "lang", os.Getenv("LANG"), "Language for headings and errors (en, es, hi, te)")
	cmd.Flags().IntVar(&f.width, "width", 80, "Word wrap width for markdown output")
	return cmd
}

func runDiagnose(ctx context.Context, flags *globalFlags, f *diagnoseFlags, out io.Writer) error {
	in, err := diagnoseInput(f)
	if err != nil {
		return err
	}

	cfg, log, err := loadConfig(flags)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, log, appOptions{})
	if err != nil {
		return err
	}
	defer a.close(context.Background()) //nolint:errcheck

	bundle := i18n.Default()
	locale := bundle.Match(localeFromEnv(f.lang), "", "")

	d, err := a.service.Analyze(ctx, in)
	if err != nil {
		return fmt.Errorf("%s: %w", bundle.T(locale, diagnosis.UserMessageKey(err)), err)
	}

	rendered, err := report.Render(d, f.format, bundle, locale, f.width)
	if err != nil {
		return usageError{err}
	}
	_, err = fmt.Fprint(out, rendered)
	return err
}

func diagnoseInput(f *diagnoseFlags) (diagnosis.Input, error) {
	if f.imagePath == "" {
		return diagnosis.Input{Mode: diagnosis.ModeText, Text: f.text}, nil
	}
	data, err := os.ReadFile(f.imagePath)
	if err != nil {
		return diagnosis.Input{}, fmt.Errorf("read image: %w", err)
	}
	mimeType := f.mimeType
	if mimeType == "" {
		mimeType = mime.TypeByExtension(strings.ToLower(filepath.Ext(f.imagePath)))
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return diagnosis.Input{Mode: diagnosis.ModeImage, Image: data, MIMEType: mimeType}, nil
}

// localeFromEnv turns a POSIX locale such as "es_MX.UTF-8" into "es-MX".
func localeFromEnv(v string) string {
	v, _, _ = strings.Cut(v, ".")
	v, _, _ = strings.Cut(v, "@")
	return strings.ReplaceAll(v, "_", "-")
}
