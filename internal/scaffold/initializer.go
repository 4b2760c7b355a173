// Package scaffold creates a new moot project: a moot.yml, example dataset
// files, and a stub agent command, with validation of what it wrote.
package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/moot/internal/config"
)

//go:embed templates/*
var templatesFS embed.FS

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

// Initialize creates the moot project structure in the current directory.
// If force is true, existing scaffold files are overwritten.
func Initialize(force bool) error {
	if !force {
		if err := CheckExisting(); err != nil {
			return err
		}
	}

	files, err := templateFiles()
	if err != nil {
		return err
	}

	if err := os.MkdirAll("datasets", 0o755); err != nil {
		return fmt.Errorf("failed to create datasets directory: %w", err)
	}

	for _, f := range files {
		if err := os.WriteFile(f.Path, f.Content, f.Permissions); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.Path, err)
		}
	}

	return validateCreated()
}

// CheckExisting returns an error naming any scaffold files already present,
// so init never silently overwrites a configured project.
func CheckExisting() error {
	var existing []string
	for _, path := range []string{"moot.yml", "agent.sh", "datasets"} {
		if _, err := os.Stat(path); err == nil {
			existing = append(existing, path)
		}
	}

	if len(existing) > 0 {
		msg := "project already initialized\n\nFound existing:"
		for _, f := range existing {
			msg += fmt.Sprintf("\n  - %s", f)
		}
		msg += "\n\nUse 'moot init --force' to reinitialize (this will overwrite existing configuration)"
		return fmt.Errorf("%s", msg)
	}
	return nil
}

func templateFiles() ([]FileInfo, error) {
	read := func(name string) ([]byte, error) {
		return templatesFS.ReadFile("templates/" + name)
	}

	specs := []struct {
		template string
		path     string
		perms    os.FileMode
	}{
		{"moot.yml", "moot.yml", 0o644},
		{"agent.sh", "agent.sh", 0o755},
		{"dataset1.json", filepath.Join("datasets", "dataset1.json"), 0o644},
		{"dataset2.json", filepath.Join("datasets", "dataset2.json"), 0o644},
	}

	files := make([]FileInfo, 0, len(specs))
	for _, s := range specs {
		content, err := read(s.template)
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", s.template, err)
		}
		files = append(files, FileInfo{Path: s.path, Content: content, Permissions: s.perms})
	}
	return files, nil
}

// validateCreated loads the freshly written moot.yml through the real
// config loader, so a broken template can never ship a broken project.
func validateCreated() error {
	if _, err := config.Load("moot.yml"); err != nil {
		return fmt.Errorf("generated moot.yml failed validation: %w", err)
	}
	return nil
}
