// Package web renders the server-side pages: landing, diagnosis form, result
// and history. Templates and the stylesheet are embedded in the binary.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matiasleandrokruk/cropdoctor/internal/domain/diagnosis"
	"github.com/matiasleandrokruk/cropdoctor/internal/domain/history"
	"github.com/matiasleandrokruk/cropdoctor/internal/i18n"
)

//go:embed templates/*.html static/*
var assets embed.FS

// Page names a top-level template.
type Page string

const (
	PageLanding  Page = "landing"
	PageDiagnose Page = "diagnose"
	PageResult   Page = "result"
	PageHistory  Page = "history"
)

var pages = []Page{PageLanding, PageDiagnose, PageResult, PageHistory}

// Form tabs.
const (
	TabDescribe = "describe"
	TabUpload   = "upload"
)

// Data is everything a page template can read. Unused fields stay zero.
type Data struct {
	Locale  string
	Locales []i18n.Locale
	// Path and Query build the language switcher links. Query may be nil.
	Path  string
	Query url.Values

	Tab           string
	Text          string
	ErrorKey      string
	AcceptTypes   string
	MaxImageBytes int64

	Diagnosis  *diagnosis.Diagnosis
	FailureKey string

	HistoryEnabled bool
	History        []history.Record
}

// Renderer executes page templates with a translation function bound to the
// bundle.
type Renderer struct {
	pages map[Page]*template.Template
}

// NewRenderer parses every page against the shared layout.
func NewRenderer(bundle *i18n.Bundle) (*Renderer, error) {
	funcs := template.FuncMap{
		"t":           bundle.T,
		"langURL":     langURL,
		"formatBytes": formatBytes,
		"formatTime": func(t time.Time) string {
			return t.UTC().Format("2006-01-02 15:04 UTC")
		},
		"modeKey": func(m diagnosis.InputMode) string {
			if m == diagnosis.ModeImage {
				return "modeImage"
			}
			return "modeText"
		},
		"truncate": func(s string, n int) string {
			r := []rune(s)
			if len(r) <= n {
				return s
			}
			return strings.TrimSpace(string(r[:n])) + "…"
		},
	}

	r := &Renderer{pages: make(map[Page]*template.Template, len(pages))}
	for _, p := range pages {
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(assets,
			"templates/layout.html", "templates/"+string(p)+".html")
		if err != nil {
			return nil, fmt.Errorf("web: parse %s: %w", p, err)
		}
		r.pages[p] = tmpl
	}
	return r, nil
}

// langURL links path with query plus the chosen language.
func langURL(path string, query url.Values, code string) string {
	q := url.Values{}
	for k, v := range query {
		q[k] = append([]string(nil), v...)
	}
	q.Set(i18n.QueryParam, code)
	return path + "?" + q.Encode()
}

// formatBytes renders an upload limit such as "4 MB" or "512 KB".
func formatBytes(n int64) string {
	const kb, mb = 1 << 10, 1 << 20
	switch {
	case n >= mb && n%mb == 0:
		return fmt.Sprintf("%d MB", n/mb)
	case n >= mb:
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	case n >= kb:
		return fmt.Sprintf("%d KB", n/kb)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

// Render writes page with status. The page is rendered to a buffer first so a
// template error never leaves a half-written response.
func (r *Renderer) Render(w http.ResponseWriter, status int, page Page, data Data) error {
	tmpl, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("web: unknown page %q", page)
	}
	if data.Locales == nil {
		data.Locales = i18n.Supported
	}
	if data.Locale == "" {
		data.Locale = i18n.Fallback
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("web: render %s: %w", page, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// Static serves the embedded stylesheet.
func Static() http.Handler {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
