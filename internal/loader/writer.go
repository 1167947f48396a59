package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/TobiSchelling/topicwatch/internal/model"
)

const runFileLayout = "20060102_150405"

// RunFileName names a run file after its prefix and timestamp:
// news_20250714_092000.json.
func RunFileName(prefix string, ts time.Time) string {
	if prefix == "" {
		prefix = "run"
	}
	return fmt.Sprintf("%s_%s.json", prefix, ts.Format(runFileLayout))
}

// EncodeRun renders a run the way run files store it.
func EncodeRun(run model.MonitoringRun) ([]byte, error) {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding run: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteRun writes run into dir and returns the file name used.
func WriteRun(dir, prefix string, run model.MonitoringRun) (string, error) {
	data, err := EncodeRun(run)
	if err != nil {
		return "", err
	}
	name := RunFileName(prefix, run.RunTimestamp)
	if err := writeFileAtomic(dir, name, data); err != nil {
		return "", fmt.Errorf("writing run file: %w", err)
	}
	return name, nil
}

// WriteManifest regenerates dir/manifest.json from the run files present.
func WriteManifest(dir string) (Manifest, error) {
	names, err := globRunFiles(dir)
	if err != nil {
		return Manifest{}, err
	}
	m := Manifest{Files: names, UpdatedAt: time.Now().UTC().Format(time.RFC3339)}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return Manifest{}, err
	}
	if err := writeFileAtomic(dir, ManifestName, append(data, '\n')); err != nil {
		return Manifest{}, fmt.Errorf("writing manifest: %w", err)
	}
	return m, nil
}

func writeFileAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, name))
}
