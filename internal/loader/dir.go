package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/TobiSchelling/topicwatch/internal/model"
)

// ManifestName is the index file listing the run files of a directory.
const ManifestName = "manifest.json"

// Manifest lists run file names, newest first.
type Manifest struct {
	Files     []string `json:"files"`
	UpdatedAt string   `json:"updated_at,omitempty"`
}

// DirProvider loads run files from a local directory.
type DirProvider struct {
	Dir     string
	Workers int
}

// LoadAll reads every run listed in the directory manifest, or every *.json
// file when there is no manifest. A missing directory fails the load.
func (p *DirProvider) LoadAll(ctx context.Context) ([]model.MonitoringRun, error) {
	names, err := ListRunFiles(p.Dir)
	if err != nil {
		return nil, err
	}
	return loadEach(ctx, "dir", names, p.Workers, func(_ context.Context, name string) (model.MonitoringRun, error) {
		return readRunFile(filepath.Join(p.Dir, name), name)
	})
}

// ListRunFiles returns the run file names in dir, preferring the manifest.
func ListRunFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("opening runs directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("opening runs directory: %s is not a directory", dir)
	}

	m, err := ReadManifest(dir)
	switch {
	case err == nil:
		names := make([]string, 0, len(m.Files))
		for _, f := range m.Files {
			// Manifest entries are names, never paths.
			if base := filepath.Base(f); base != "." && base != string(filepath.Separator) {
				names = append(names, base)
			}
		}
		return names, nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	return globRunFiles(dir)
}

// ReadManifest reads dir/manifest.json.
func ReadManifest(dir string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parsing manifest: %w", err)
	}
	return m, nil
}

func globRunFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, path := range matches {
		name := filepath.Base(path)
		if name == ManifestName || strings.HasPrefix(name, ".") {
			continue
		}
		names = append(names, name)
	}
	// Run file names embed their timestamp, so name order is run order.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

func readRunFile(path, runID string) (model.MonitoringRun, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.MonitoringRun{}, err
	}
	defer f.Close()
	return model.DecodeRun(f, runID)
}
