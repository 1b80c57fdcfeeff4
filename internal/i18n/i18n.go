// Package i18n holds the localized UI strings and picks a locale per request.
//
// Tables live in locales/<code>.yaml and are embedded into the binary. Lookups
// fall back to English when a locale or key is missing, and to the key itself
// when English has no entry either.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Fallback is the locale used when nothing else matches.
const Fallback = "en"

// CookieName stores the user's explicit choice.
const CookieName = "lang"

// QueryParam selects a locale for one request and updates the cookie.
const QueryParam = "lang"

//go:embed locales/*.yaml
var localeFS embed.FS

// Locale is one selectable language.
type Locale struct {
	Code    string
	NameKey string
}

// Supported lists the selectable locales in switcher order.
var Supported = []Locale{
	{Code: "en", NameKey: "english"},
	{Code: "es", NameKey: "spanish"},
	{Code: "hi", NameKey: "hindi"},
	{Code: "te", NameKey: "telugu"},
}

// Bundle is a set of loaded translation tables.
type Bundle struct {
	tables  map[string]map[string]string
	codes   []string
	matcher language.Matcher
}

// Load reads every locales/*.yaml in fsys. The fallback locale must exist.
func Load(fsys fs.FS) (*Bundle, error) {
	entries, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("i18n: glob: %w", err)
	}

	b := &Bundle{tables: make(map[string]map[string]string, len(entries))}
	for _, p := range entries {
		raw, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("i18n: read %s: %w", p, err)
		}
		var table map[string]string
		if err := yaml.Unmarshal(raw, &table); err != nil {
			return nil, fmt.Errorf("i18n: parse %s: %w", p, err)
		}
		code := strings.TrimSuffix(path.Base(p), ".yaml")
		b.tables[code] = table
	}
	if _, ok := b.tables[Fallback]; !ok {
		return nil, fmt.Errorf("i18n: fallback locale %q missing", Fallback)
	}

	// The fallback goes first so the matcher prefers it on ties.
	b.codes = append(b.codes, Fallback)
	rest := make([]string, 0, len(b.tables)-1)
	for code := range b.tables {
		if code != Fallback {
			rest = append(rest, code)
		}
	}
	sort.Strings(rest)
	b.codes = append(b.codes, rest...)

	tags := make([]language.Tag, len(b.codes))
	for i, code := range b.codes {
		tags[i] = language.Make(code)
	}
	b.matcher = language.NewMatcher(tags)
	return b, nil
}

var (
	defaultOnce   sync.Once
	defaultBundle *Bundle
)

// Default returns the bundle built from the embedded tables.
func Default() *Bundle {
	defaultOnce.Do(func() {
		b, err := Load(localeFS)
		if err != nil {
			panic(err)
		}
		defaultBundle = b
	})
	return defaultBundle
}

// T returns the string for key in locale.
func (b *Bundle) T(locale, key string) string {
	if v, ok := b.tables[locale][key]; ok && v != "" {
		return v
	}
	if v, ok := b.tables[Fallback][key]; ok && v != "" {
		return v
	}
	return key
}

// Has reports whether a table exists for code.
func (b *Bundle) Has(code string) bool {
	_, ok := b.tables[code]
	return ok
}

// Codes returns the loaded locale codes, fallback first.
func (b *Bundle) Codes() []string {
	out := make([]string, len(b.codes))
	copy(out, b.codes)
	return out
}

// Keys returns the sorted keys of the fallback table.
func (b *Bundle) Keys() []string {
	keys := make([]string, 0, len(b.tables[Fallback]))
	for k := range b.tables[Fallback] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Match resolves the locale for a request. An explicit choice (query
// parameter, then cookie) wins when it names a loaded locale, including a
// regional variant such as "es-MX". Otherwise the Accept-Language header is
// negotiated. The result is always a loaded locale code.
func (b *Bundle) Match(query, cookie, acceptLanguage string) string {
	for _, explicit := range []string{query, cookie} {
		if code, ok := b.Lookup(explicit); ok {
			return code
		}
	}
	if acceptLanguage == "" {
		return Fallback
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return Fallback
	}
	_, idx, conf := b.matcher.Match(tags...)
	if conf == language.No {
		return Fallback
	}
	return b.codes[idx]
}

// Lookup maps s to a loaded locale by its base language.
func (b *Bundle) Lookup(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	tag, err := language.Parse(s)
	if err != nil {
		return "", false
	}
	base, _ := tag.Base()
	code := base.String()
	return code, b.Has(code)
}
