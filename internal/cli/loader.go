package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Error code constants - unified across all CLI commands. Simulation
// failures are reported with their simerr code instead.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No scenario files found
	ErrCodeLoadFailed  = "E004" // Scenario parse or validation failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // Entity construction or kernel setup failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeDatabase    = "E008" // Report database error
)

// LoadError represents an error that occurred while locating scenarios.
type LoadError struct {
	Code    string
	Message string
	Path    string
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// scenarioExts are the file extensions LoadScenario understands.
var scenarioExts = []string{".yaml", ".yml", ".cue"}

func isScenarioFile(path string) bool {
	return slices.Contains(scenarioExts, filepath.Ext(path))
}

// FindScenarioFiles expands paths into scenario files. Files are taken as
// given; directories are walked for .yaml, .yml and .cue files, skipping
// golden directories. If filter is set, only files whose base name (without
// extension) matches the glob are kept from directories.
//
// Results are sorted so runs are reproducible.
func FindScenarioFiles(paths []string, filter string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: "path not found", Path: p}
		}
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: err.Error(), Path: p}
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		found, err := walkScenarios(p, filter)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

func walkScenarios(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}
		if !isScenarioFile(path) {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(d.Name(), filepath.Ext(path))
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: err.Error(), Path: dir}
	}
	return files, nil
}
