package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/evpatch/internal/catalog"
	"github.com/roach88/evpatch/internal/config"
	"github.com/roach88/evpatch/internal/engine"
	"github.com/roach88/evpatch/internal/ir"
)

// LoadError represents an error that occurred while reading a command's
// inputs.
type LoadError struct {
	Code    string
	Message string
	Errors  []config.ValidationError // per-problem detail, when known
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No script files found
	ErrCodeLoadFailed  = "E004" // Input could not be read or parsed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeInvalid     = "E006" // Input failed validation
	ErrCodeWriteFailed = "E007" // File write error
)

// LoadConfig reads, schema-checks, decodes and validates a configuration
// document. Validation problems are returned together.
func LoadConfig(path string) (*config.EventConfig, error) {
	if err := requireFile(path); err != nil {
		return nil, err
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		var le *config.LoadError
		if errors.As(err, &le) {
			return nil, &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("config %s is invalid", path), Errors: le.Errors}
		}
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("config %s is invalid", path), Errors: errs}
	}
	return cfg, nil
}

// LoadCatalog reads an instruction catalog.
func LoadCatalog(path string) (*catalog.Catalog, error) {
	if err := requireFile(path); err != nil {
		return nil, err
	}
	cat, err := catalog.LoadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
	}
	return cat, nil
}

// LoadAssignment reads an assignment document. An empty path is an
// empty assignment.
func LoadAssignment(path string) (*config.Assignment, error) {
	if path == "" {
		return &config.Assignment{}, nil
	}
	if err := requireFile(path); err != nil {
		return nil, err
	}
	a, err := config.LoadAssignment(path)
	if err != nil {
		var le *config.LoadError
		if errors.As(err, &le) {
			return nil, &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("assignment %s is invalid", path), Errors: le.Errors}
		}
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
	}
	return a, nil
}

// LoadScripts reads every *.json script container in dir, sorted by
// file name. A container without a map name takes the file's base name.
func LoadScripts(dir string) ([]*ir.Script, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("script directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing script directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	files, err := FindScriptFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no script files found in %s", dir)}
	}

	scripts := make([]*ir.Script, 0, len(files))
	for _, path := range files {
		s, err := ir.ReadScriptFile(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("%s: %v", path, err)}
		}
		if s.Map == "" {
			s.Map = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		scripts = append(scripts, s)
	}
	return scripts, nil
}

// FindScriptFiles returns the *.json files directly in dir, sorted.
func FindScriptFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// WriteScripts writes each script to dir as <map>.json, creating dir.
func WriteScripts(dir string, scripts []*ir.Script) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &LoadError{Code: ErrCodeWriteFailed, Message: fmt.Sprintf("failed to create output directory: %v", err)}
	}
	paths := make([]string, 0, len(scripts))
	for _, s := range scripts {
		path := filepath.Join(dir, s.Map+".json")
		if err := ir.WriteScriptFile(path, s); err != nil {
			return nil, &LoadError{Code: ErrCodeWriteFailed, Message: fmt.Sprintf("%s: %v", path, err)}
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func requireFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("file not found: %s", path)}
	}
	if err != nil {
		return &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing %s: %v", path, err)}
	}
	if info.IsDir() {
		return &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("is a directory: %s", path)}
	}
	return nil
}

// errorCode returns the code to report for err: the patch error code,
// the loader code, or the generic code.
func errorCode(err error) string {
	var pe *engine.PatchError
	if errors.As(err, &pe) {
		return string(pe.Code)
	}
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return ErrCodeGeneric
}

// outputLoadError reports a loader failure and returns the matching exit
// error: invalid input is a failure, unreadable input a command error.
func outputLoadError(f *OutputFormatter, err error) error {
	var le *LoadError
	if !errors.As(err, &le) {
		_ = f.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "command failed", err)
	}
	var details any
	if len(le.Errors) > 0 {
		details = le.Errors
	}
	if f.Format != "json" && len(le.Errors) > 0 {
		fmt.Fprintf(f.Writer, "Error [%s]: %s\n", le.Code, le.Message)
		for _, ve := range le.Errors {
			fmt.Fprintf(f.Writer, "  %s\n", ve.Error())
		}
	} else {
		_ = f.Error(le.Code, le.Message, details)
	}
	if le.Code == ErrCodeInvalid {
		return NewExitError(ExitFailure, le.Message)
	}
	return NewExitError(ExitCommandError, le.Message)
}
