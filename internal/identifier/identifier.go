// Package identifier converts between the symbolic keys callers use to look
// up components and the relative paths those components live at on disk.
//
// An identifier is a run of word segments joined by a configurable
// separator ("." by default). Identifiers are derived from arbitrary user
// strings or from directory-relative file paths by tokenizing on non-word
// characters, so "my_app/app_component", "my_app.app_component" and
// "my_app::app_component" all normalize to the same key.
//
// Namespaces are identifier prefixes that are stripped when mapping a key to
// a storage location and restored when mapping back:
//
//	identifier.Normalize("my_app.users.repo", "my_app", ".") // "users.repo"
//	identifier.ToPath("users.repo", "my_app", ".")           // "my_app/users/repo"
package identifier

import (
	"regexp"
	"strings"
	"sync"
)

// DefaultSeparator is the segment separator used when none is configured.
const DefaultSeparator = "."

// PathSeparator is the delimiter used for directory-relative component paths.
// Paths are always slash separated; callers convert with filepath.FromSlash.
const PathSeparator = "/"

var wordRegex = regexp.MustCompile(`\w+`)

// namespacePatterns caches the compiled prefix pattern for each namespace.
var namespacePatterns sync.Map // map[string]*regexp.Regexp

func namespacePattern(namespace string) *regexp.Regexp {
	if re, ok := namespacePatterns.Load(namespace); ok {
		return re.(*regexp.Regexp)
	}

	re := regexp.MustCompile(`^` + regexp.QuoteMeta(namespace) + `\W(.*)`)
	actual, _ := namespacePatterns.LoadOrStore(namespace, re)
	return actual.(*regexp.Regexp)
}

// Tokenize splits raw into its maximal runs of word characters.
func Tokenize(raw string) []string {
	return wordRegex.FindAllString(raw, -1)
}

// StripNamespace removes a leading namespace from name. The namespace must be
// followed by a single non-word character for the match to succeed. The second
// return value reports whether the namespace was present.
func StripNamespace(name, namespace string) (string, bool) {
	if namespace == "" {
		return name, false
	}

	match := namespacePattern(namespace).FindStringSubmatch(name)
	if match == nil {
		return name, false
	}
	return match[1], true
}

// Normalize produces the canonical identifier for raw. When namespace is
// non-empty and raw starts with it, the namespace is stripped first.
func Normalize(raw, namespace, separator string) string {
	if separator == "" {
		separator = DefaultSeparator
	}

	name, _ := StripNamespace(raw, namespace)
	return strings.Join(Tokenize(name), separator)
}

// ToPath maps an identifier to its directory-relative path, prefixed with the
// namespace when one is given.
func ToPath(id, namespace, separator string) string {
	if separator == "" {
		separator = DefaultSeparator
	}

	path := strings.ReplaceAll(id, separator, PathSeparator)
	if namespace == "" {
		return path
	}

	return strings.ReplaceAll(namespace, separator, PathSeparator) + PathSeparator + path
}

// FromPath derives an identifier from a slash-separated relative path,
// dropping the artifact extension.
func FromPath(relPath, ext, separator string) string {
	if separator == "" {
		separator = DefaultSeparator
	}

	relPath = strings.ReplaceAll(relPath, `\`, PathSeparator)
	if ext != "" {
		relPath = strings.TrimSuffix(relPath, ext)
	}
	return strings.Join(Tokenize(relPath), separator)
}

// RootKey returns the first segment of id.
func RootKey(id, separator string) string {
	if separator == "" {
		separator = DefaultSeparator
	}

	root, _, _ := strings.Cut(id, separator)
	return root
}

// TrimRoot removes root plus a separator from the start of id. It reports
// false when id does not start with that prefix.
func TrimRoot(id, root, separator string) (string, bool) {
	if separator == "" {
		separator = DefaultSeparator
	}

	prefix := root + separator
	if !strings.HasPrefix(id, prefix) {
		return id, false
	}
	return id[len(prefix):], true
}

// Join concatenates segments with separator, skipping empty segments.
func Join(separator string, segments ...string) string {
	if separator == "" {
		separator = DefaultSeparator
	}

	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, separator)
}
