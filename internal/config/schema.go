package config

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

var (
	schemaOnce sync.Once
	cueCtx     *cue.Context
	configDef  cue.Value
	schemaErr  error
)

// loadSchema compiles the embedded schema once per process.
// cue.Context is not safe for concurrent use, so every use holds cueMu.
func loadSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		cueCtx = cuecontext.New()
		v := cueCtx.CompileString(schemaCUE, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile config schema: %w", err)
			return
		}
		configDef = v.LookupPath(cue.ParsePath("#Config"))
		if !configDef.Exists() {
			schemaErr = errors.New("config schema has no #Config definition")
		}
	})
	return cueCtx, configDef, schemaErr
}

var cueMu sync.Mutex

// validateSchema encodes cfg as CUE and unifies it with #Config.
func validateSchema(cfg *Config) error {
	cueMu.Lock()
	defer cueMu.Unlock()

	ctx, def, err := loadSchema()
	if err != nil {
		return err
	}
	v := ctx.Encode(cfg)
	if err := v.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return checkUnified(def.Unify(v))
}

// ParseCUE compiles a CUE configuration, validates it against #Config
// and decodes it.
func ParseCUE(data []byte, filename string) (*Config, error) {
	cueMu.Lock()
	ctx, def, err := loadSchema()
	if err != nil {
		cueMu.Unlock()
		return nil, err
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		cueMu.Unlock()
		return nil, formatCUEError(err)
	}
	unified := def.Unify(v)
	if err := checkUnified(unified); err != nil {
		cueMu.Unlock()
		return nil, err
	}

	var cfg Config
	err = unified.Decode(&cfg)
	cueMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func checkUnified(v cue.Value) error {
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// formatCUEError reduces a CUE error list to its first error, keyed by
// the field path it concerns.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Message: err.Error()}
	}
	first := errs[0]
	format, args := first.Msg()
	msg := fmt.Sprintf(format, args...)
	if pos := first.Position(); pos.IsValid() && pos.Filename() != "schema.cue" {
		msg = fmt.Sprintf("%s (%s:%d:%d)", msg, pos.Filename(), pos.Line(), pos.Column())
	}
	return &Error{
		Field:   strings.Join(first.Path(), "."),
		Message: msg,
	}
}
