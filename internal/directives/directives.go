// Package directives reads per-file option overrides from the leading
// comment block of a component artifact:
//
//	// auto_register: false
//	// memoize: true
//	// loader: singleton
//	package users
//
// Parsing stops at the first line that is neither blank nor a comment.
// Values are decoded as YAML scalars, so "true" and "false" become booleans.
package directives

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/conneroisu/stowage/internal/errors"
	"gopkg.in/yaml.v3"
)

// Recognized directive keys.
const (
	KeyAutoRegister = "auto_register"
	KeyMemoize      = "memoize"
	KeyLoader       = "loader"
)

var (
	validLine   = regexp.MustCompile(`^\s*((//|#).*)?$`)
	commentLine = regexp.MustCompile(`^\s*(?://|#)\s+([A-Za-z][A-Za-z0-9_]+):\s+(.+?)\s*$`)
)

// Overrides holds the directives found in one file. Nil pointers and empty
// strings mean "not set".
type Overrides struct {
	AutoRegister *bool
	Memoize      *bool
	Loader       string

	// Raw holds every decoded directive, recognized or not.
	Raw map[string]any
}

// Empty reports whether no recognized directive was set.
func (o Overrides) Empty() bool {
	return o.AutoRegister == nil && o.Memoize == nil && o.Loader == ""
}

// Parse reads the directives of the file at path. A missing file yields no
// overrides.
func Parse(path string) (Overrides, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Overrides{Raw: map[string]any{}}, nil
		}
		return Overrides{}, errors.NewIOError(errors.ErrCodeInvalidDirective, "cannot read directives", err).
			WithFilePath(path)
	}
	defer f.Close()

	o, err := ParseReader(f)
	if err != nil {
		var se *errors.StowageError
		if errors.As(err, &se) {
			se.WithFilePath(path)
		}
		return Overrides{}, err
	}
	return o, nil
}

// ParseReader reads directives from r.
func ParseReader(r io.Reader) (Overrides, error) {
	o := Overrides{Raw: map[string]any{}}

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if !validLine.MatchString(text) {
			break
		}

		match := commentLine.FindStringSubmatch(text)
		if match == nil {
			continue
		}

		key, raw := match[1], match[2]
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		o.Raw[key] = value

		if err := o.apply(key, value); err != nil {
			return Overrides{}, err.WithContext("line", line)
		}
	}

	if err := scanner.Err(); err != nil {
		return Overrides{}, errors.NewIOError(errors.ErrCodeInvalidDirective, "cannot scan directives", err)
	}
	return o, nil
}

func (o *Overrides) apply(key string, value any) *errors.StowageError {
	switch key {
	case KeyAutoRegister, KeyMemoize:
		b, ok := value.(bool)
		if !ok {
			return errors.NewValidationError(errors.ErrCodeInvalidDirective,
				key+" must be true or false").WithContext("value", value)
		}
		if key == KeyAutoRegister {
			o.AutoRegister = &b
		} else {
			o.Memoize = &b
		}
	case KeyLoader:
		s, ok := value.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return errors.NewValidationError(errors.ErrCodeInvalidDirective,
				"loader must be a name").WithContext("value", value)
		}
		o.Loader = s
	}
	return nil
}
