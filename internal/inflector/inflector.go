// Package inflector converts between snake_case component paths and the
// CamelCase constant names used to look up constructors.
package inflector

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ConstantSeparator joins the segments of a constant name.
const ConstantSeparator = "::"

// Inflector camelizes and underscores words. The zero value has no acronyms
// and is ready to use. Inflectors are immutable and safe for concurrent use.
type Inflector struct {
	acronyms map[string]string // lower-case word -> rendered acronym
}

// New creates an inflector that renders the given words as acronyms, so that
// "api_client" camelizes to "APIClient" when "API" is registered.
func New(acronyms ...string) *Inflector {
	inf := &Inflector{acronyms: make(map[string]string, len(acronyms))}
	for _, a := range acronyms {
		inf.acronyms[strings.ToLower(a)] = a
	}
	return inf
}

// Camelize turns a slash separated snake_case path into a constant name:
// "my_app/app_component" becomes "MyApp::AppComponent".
func (inf *Inflector) Camelize(path string) string {
	title := cases.Title(language.Und)

	segments := strings.Split(path, "/")
	out := make([]string, 0, len(segments))
	for _, segment := range segments {
		if segment == "" {
			continue
		}

		var b strings.Builder
		for _, word := range strings.Split(segment, "_") {
			if word == "" {
				continue
			}
			if acronym, ok := inf.acronym(word); ok {
				b.WriteString(acronym)
				continue
			}
			b.WriteString(title.String(word))
		}
		out = append(out, b.String())
	}

	return strings.Join(out, ConstantSeparator)
}

// Underscore is the inverse of Camelize: "MyApp::APIClient" becomes
// "my_app/api_client" when "API" is a registered acronym.
func (inf *Inflector) Underscore(constant string) string {
	lower := cases.Lower(language.Und)

	segments := strings.Split(constant, ConstantSeparator)
	out := make([]string, 0, len(segments))
	for _, segment := range segments {
		if segment == "" {
			continue
		}
		out = append(out, lower.String(inf.splitWords(segment)))
	}

	return strings.Join(out, "/")
}

// Constant returns the constant name for a component path.
func (inf *Inflector) Constant(path string) string {
	return inf.Camelize(path)
}

func (inf *Inflector) acronym(word string) (string, bool) {
	if inf == nil || inf.acronyms == nil {
		return "", false
	}
	a, ok := inf.acronyms[strings.ToLower(word)]
	return a, ok
}

// splitWords inserts underscores at word boundaries of a CamelCase segment.
func (inf *Inflector) splitWords(segment string) string {
	if inf != nil {
		for lowerWord, acronym := range inf.acronyms {
			if lowerWord == "" {
				continue
			}
			segment = strings.ReplaceAll(segment, acronym, "_"+lowerWord+"_")
		}
	}

	runes := []rune(segment)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(r)
	}

	parts := strings.Split(b.String(), "_")
	words := parts[:0]
	for _, p := range parts {
		if p != "" {
			words = append(words, p)
		}
	}
	return strings.Join(words, "_")
}
