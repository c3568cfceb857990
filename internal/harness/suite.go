package harness

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	Total     int              `json:"total"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Scenarios []ScenarioReport `json:"scenarios"`
}

// ScenarioReport is the outcome of one scenario file.
type ScenarioReport struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	RunID  string   `json:"run_id,omitempty"`
	Edits  int      `json:"edits"`
	Errors []string `json:"errors,omitempty"`
}

// FindScenarios returns the .yaml and .yml files under dir, sorted. A
// non-empty filter is a glob matched against the file name without its
// extension.
func FindScenarios(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			if ok, _ := filepath.Match(filter, name); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ScenarioCheck is an extra check run on each scenario that executed,
// such as a golden file comparison. A returned error fails the scenario.
type ScenarioCheck func(path string, scenario *Scenario, result *Result) error

// RunSuite loads and runs every scenario file, then applies checks to
// each result. A file that fails to load or run counts as a failed
// scenario; RunSuite itself only fails when ctx is done.
func (h *Harness) RunSuite(ctx context.Context, paths []string, checks ...ScenarioCheck) (*SuiteResult, error) {
	result := &SuiteResult{Scenarios: make([]ScenarioReport, 0, len(paths))}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Total++
		report := ScenarioReport{Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), Path: path}

		scenario, err := LoadScenario(path)
		if err != nil {
			report.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
			result.add(report)
			continue
		}
		report.Name = scenario.Name

		run, err := h.Run(ctx, scenario)
		if err != nil {
			report.Errors = []string{fmt.Sprintf("scenario execution failed: %v", err)}
			result.add(report)
			continue
		}
		report.Pass = run.Pass
		report.RunID = run.RunID
		report.Edits = len(run.Edits)
		if len(run.Errors) > 0 {
			report.Errors = run.Errors
		}
		for _, check := range checks {
			if err := check(path, scenario, run); err != nil {
				report.Pass = false
				report.Errors = append(report.Errors, err.Error())
			}
		}
		result.add(report)
	}
	return result, nil
}

func (r *SuiteResult) add(report ScenarioReport) {
	if report.Pass {
		r.Passed++
	} else {
		r.Failed++
	}
	r.Scenarios = append(r.Scenarios, report)
}
