// Package manual executes hand-written registration files. A file lives in
// the registrations directory, is named after the root key it serves and
// holds one register block per key:
//
//	register "persistence.db" {
//	  constructor = "Persistence::DB"
//	  memoize     = true
//	  args        = ["sqlite://memory"]
//	}
//
// Each file runs at most once per registrar.
package manual

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/conneroisu/stowage/internal/component"
	"github.com/conneroisu/stowage/internal/errors"
	"github.com/conneroisu/stowage/internal/identifier"
	"github.com/conneroisu/stowage/internal/loader"
	"github.com/conneroisu/stowage/internal/logging"
	"github.com/conneroisu/stowage/internal/store"
)

// FileExt is the extension of registration files.
const FileExt = ".hcl"

// Target is the registry surface registration files write into.
type Target interface {
	store.Resolver
	Registered(key string) bool
	RegisterFactory(key string, factory store.Factory, memoize bool) error
}

// hclRegistrationFile represents the top-level structure of a registration file.
type hclRegistrationFile struct {
	Registrations []*hclRegistration `hcl:"register,block"`
}

type hclRegistration struct {
	Key         string         `hcl:"key,label"`
	Constructor string         `hcl:"constructor"`
	Memoize     *bool          `hcl:"memoize,optional"`
	Args        hcl.Expression `hcl:"args,optional"`
}

// Registration is one decoded register block.
type Registration struct {
	Key         string
	Constructor string
	Memoize     bool
	Args        []any
}

// Registrar runs the registration files of one registry.
type Registrar struct {
	dir       string
	separator string
	catalog   *loader.Catalog
	target    Target
	logger    logging.Logger

	mutex    sync.Mutex
	executed map[string]bool
}

// New creates a registrar for the files in dir. Constructors named in the
// files are looked up in catalog.
func New(dir string, catalog *loader.Catalog, target Target, separator string, logger logging.Logger) *Registrar {
	if separator == "" {
		separator = identifier.DefaultSeparator
	}
	if catalog == nil {
		catalog = loader.NewCatalog()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Registrar{
		dir:       dir,
		separator: separator,
		catalog:   catalog,
		target:    target,
		logger:    logger.WithComponent("manual"),
		executed:  make(map[string]bool),
	}
}

// Dir returns the registrations directory.
func (r *Registrar) Dir() string { return r.dir }

// FilePath returns the file that serves the root key name.
func (r *Registrar) FilePath(name string) string {
	return filepath.Join(r.dir, name+FileExt)
}

// FileExists reports whether a registration file serves c's root key.
func (r *Registrar) FileExists(c component.Component) bool {
	info, err := os.Stat(r.FilePath(c.RootKey()))
	return err == nil && !info.IsDir()
}

// Call executes the file serving c's root key.
func (r *Registrar) Call(ctx context.Context, c component.Component) error {
	return r.Load(ctx, c.RootKey())
}

// Load executes the file for name unless it already ran. A file whose keys
// clash with registered keys registers nothing. Only a file whose every
// block registered is marked as executed; any other file may be retried.
func (r *Registrar) Load(ctx context.Context, name string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.executed[name] {
		return nil
	}

	path := r.FilePath(name)
	registrations, err := Parse(path)
	if err != nil {
		return err
	}

	constructors := make([]loader.Constructor, len(registrations))
	for i, reg := range registrations {
		fn, ok := r.catalog.Lookup(reg.Constructor)
		if !ok {
			return errors.NewConstructionError(errors.ErrCodeUnknownConstant,
				"no constructor registered for "+reg.Constructor).
				WithKey(reg.Key).
				WithFilePath(path)
		}
		constructors[i] = fn
	}

	keys := make([]string, len(registrations))
	seen := make(map[string]bool, len(registrations))
	for i, reg := range registrations {
		key := identifier.Normalize(reg.Key, "", r.separator)
		if seen[key] || r.target.Registered(key) {
			return errors.NewDuplicateKeyError(key).WithFilePath(path)
		}
		seen[key] = true
		keys[i] = key
	}

	for i, reg := range registrations {
		if err := r.target.RegisterFactory(keys[i], r.factory(keys[i], constructors[i], reg.Args), reg.Memoize); err != nil {
			return err
		}
	}
	r.executed[name] = true

	r.logger.Debug(ctx, "Registration file executed", "file", path, "keys", len(registrations))
	return nil
}

func (r *Registrar) factory(key string, fn loader.Constructor, args []any) store.Factory {
	c := component.New(key, component.Options{Separator: r.separator, Loader: r.catalog})
	return func(ctx context.Context, res store.Resolver) (any, error) {
		return fn(ctx, res, c, args...)
	}
}

// Finalize executes every registration file that has not run yet, in
// lexical order. A missing directory means there is nothing to run.
func (r *Registrar) Finalize(ctx context.Context) error {
	names, err := r.Names()
	if err != nil {
		return err
	}

	for _, name := range names {
		if err := r.Load(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// Names lists the root keys that have a registration file.
func (r *Registrar) Names() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewIOError(errors.ErrCodeManualFile, "cannot read registrations directory", err).
			WithFilePath(r.dir)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), FileExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), FileExt))
	}
	sort.Strings(names)
	return names, nil
}

// Executed lists the files that have run, sorted.
func (r *Registrar) Executed() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	names := make([]string, 0, len(r.executed))
	for name := range r.executed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parse decodes the register blocks of one file.
func Parse(path string) ([]Registration, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, manualFileError(path, "failed to parse registration file", diags)
	}

	var parsed hclRegistrationFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, manualFileError(path, "failed to decode registration file", diags)
	}

	registrations := make([]Registration, 0, len(parsed.Registrations))
	for _, block := range parsed.Registrations {
		reg := Registration{
			Key:         block.Key,
			Constructor: block.Constructor,
		}
		if block.Memoize != nil {
			reg.Memoize = *block.Memoize
		}

		args, err := decodeArgs(block.Args)
		if err != nil {
			return nil, manualFileError(path, fmt.Sprintf("invalid args for %q", block.Key), err).WithKey(block.Key)
		}
		reg.Args = args

		registrations = append(registrations, reg)
	}
	return registrations, nil
}

func manualFileError(path, message string, cause error) *errors.StowageError {
	return errors.NewIOError(errors.ErrCodeManualFile, message, cause).WithFilePath(path)
}

func decodeArgs(expr hcl.Expression) ([]any, error) {
	if expr == nil {
		return nil, nil
	}

	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return nil, nil
	}
	if !val.Type().IsTupleType() && !val.Type().IsListType() {
		return nil, fmt.Errorf("args must be a list, got %s", val.Type().FriendlyName())
	}

	out, err := ctyValueToInterface(val)
	if err != nil {
		return nil, err
	}
	list, _ := out.([]any)
	return list, nil
}

// ctyValueToInterface converts a cty.Value to a Go interface{}.
func ctyValueToInterface(val cty.Value) (any, error) {
	if !val.IsKnown() || val.IsNull() {
		return nil, nil
	}
	if val.Type().IsPrimitiveType() {
		switch val.Type() {
		case cty.String:
			return val.AsString(), nil
		case cty.Number:
			bf := val.AsBigFloat()
			if bf.IsInt() {
				if i, acc := bf.Int64(); acc == 0 {
					return i, nil
				}
			}
			f, _ := bf.Float64()
			return f, nil
		case cty.Bool:
			return val.True(), nil
		default:
			return nil, fmt.Errorf("unsupported primitive type: %s", val.Type().FriendlyName())
		}
	}
	if val.Type().IsObjectType() || val.Type().IsMapType() {
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			valInterface, err := ctyValueToInterface(v)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = valInterface
		}
		return out, nil
	}
	if val.Type().IsTupleType() || val.Type().IsListType() {
		out := []any{}
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			valInterface, err := ctyValueToInterface(v)
			if err != nil {
				return nil, err
			}
			out = append(out, valInterface)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported cty.Type for conversion: %s", val.Type().FriendlyName())
}
