package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

var (
	schemaOnce sync.Once
	schemaMu   sync.Mutex
	schemaRoot cue.Value
	schemaErr  error
)

// definition returns a compiled schema definition such as #EventConfig.
// The CUE runtime is not safe for concurrent use, so callers hold
// schemaMu while using it.
func definition(name string) (cue.Value, error) {
	schemaOnce.Do(func() {
		ctx := cuecontext.New()
		schemaRoot = ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
		if err := schemaRoot.Err(); err != nil {
			schemaErr = fmt.Errorf("compile config schema: %w", err)
		}
	})
	if schemaErr != nil {
		return cue.Value{}, schemaErr
	}
	v := schemaRoot.LookupPath(cue.ParsePath(name))
	return v, v.Err()
}

// LoadError is returned when a document fails schema validation or
// decoding. Errors holds one entry per problem found.
type LoadError struct {
	Errors []ValidationError
}

func (e *LoadError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%s (and %d more)", e.Errors[0].Error(), len(e.Errors)-1)
}

// Load reads a configuration document, validates it against the schema,
// and decodes it.
func Load(r io.Reader) (*EventConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// LoadFile reads a configuration document from disk.
func LoadFile(path string) (*EventConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates and decodes a configuration document.
func Parse(data []byte) (*EventConfig, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return &EventConfig{}, nil
	}
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}

	cfg := &EventConfig{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &LoadError{Errors: []ValidationError{{
			Field:   "document",
			Message: err.Error(),
			Code:    ErrDecode,
		}}}
	}
	return cfg, nil
}

// ValidateSchema checks a raw configuration document against the
// embedded schema.
func ValidateSchema(data []byte) error {
	return validateDocument(data, "#EventConfig")
}

func validateDocument(data []byte, def string) error {
	schemaMu.Lock()
	defer schemaMu.Unlock()

	s, err := definition(def)
	if err != nil {
		return err
	}
	if err := cueyaml.Validate(data, s); err != nil {
		return schemaError(err)
	}
	return nil
}

// schemaError converts CUE errors into ValidationErrors with line numbers.
func schemaError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Errors: []ValidationError{{Field: "document", Message: err.Error(), Code: ErrSchema}}}
	}
	out := make([]ValidationError, 0, len(errs))
	for _, e := range errs {
		ve := ValidationError{
			Field:   pathString(e.Path()),
			Message: e.Error(),
			Code:    ErrSchema,
		}
		if pos := cueerrors.Positions(e); len(pos) > 0 {
			ve.Line = pos[0].Line()
		}
		out = append(out, ve)
	}
	return &LoadError{Errors: out}
}

func pathString(path []string) string {
	if len(path) == 0 {
		return "document"
	}
	var b bytes.Buffer
	for i, p := range path {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(p)
	}
	return b.String()
}
