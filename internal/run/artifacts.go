package run

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"paylab/internal/experiment"
	"paylab/internal/logging"
	"paylab/internal/person"
)

// Artifact layout under the output root, one directory per work item key:
//
//	<root>/<item_key>/artifact.go       generated calculator (code_gen)
//	<root>/<item_key>/dataset.csv       final dataset, attributes + compensation
//	<root>/<item_key>/metadata.json     generation metadata
//	<root>/<item_key>/result.json       sandbox execution result (code_gen)
//	<root>/<item_key>/response_INVALID.txt  raw response when extraction failed
//
// Everything is truncate-on-write, so re-running an item replaces its
// artifacts instead of accumulating versions.

// ArtifactWriter persists per-item outputs under a single root directory.
type ArtifactWriter struct {
	root string
}

// NewArtifactWriter creates the output root if needed.
func NewArtifactWriter(root string) (*ArtifactWriter, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating output root: %w", err)
	}
	return &ArtifactWriter{root: root}, nil
}

func (w *ArtifactWriter) itemDir(item experiment.WorkItem) (string, error) {
	dir := filepath.Join(w.root, item.Key())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating artifact directory for %s: %w", item.Key(), err)
	}
	return dir, nil
}

// WriteArtifact persists the extracted artifact and its metadata.
func (w *ArtifactWriter) WriteArtifact(item experiment.WorkItem, art *experiment.Artifact) error {
	dir, err := w.itemDir(item)
	if err != nil {
		return err
	}

	switch {
	case art.Code != nil:
		if err := os.WriteFile(filepath.Join(dir, "artifact.go"), []byte(art.Code.Source), 0644); err != nil {
			return fmt.Errorf("writing artifact source: %w", err)
		}
		return w.writeJSON(dir, "metadata.json", art.Code.Meta)

	case art.Dataset != nil:
		if err := writeCSV(filepath.Join(dir, "dataset.csv"), art.Dataset.Header, art.Dataset.Rows); err != nil {
			return err
		}
		return w.writeJSON(dir, "metadata.json", art.Dataset.Meta)

	default:
		return fmt.Errorf("artifact for %s has neither code nor dataset", item.Key())
	}
}

// WriteResult persists the sandbox execution result. For successful batches
// it also materializes the final dataset: one row per input person, the ten
// attributes plus the computed compensation.
func (w *ArtifactWriter) WriteResult(item experiment.WorkItem, res *experiment.ExecutionResult, people []person.Person) error {
	dir, err := w.itemDir(item)
	if err != nil {
		return err
	}
	if err := w.writeJSON(dir, "result.json", res); err != nil {
		return err
	}

	if res.Status != experiment.StatusOK {
		return nil
	}
	if len(res.Rows) != len(people) {
		return fmt.Errorf("result for %s has %d rows for %d people", item.Key(), len(res.Rows), len(people))
	}

	header := append(append([]string{}, person.AttributeNames...), "compensation")
	rows := make([][]string, len(people))
	for i, p := range people {
		rows[i] = append(p.Values(), strconv.FormatFloat(res.Rows[i], 'f', 2, 64))
	}
	return writeCSV(filepath.Join(dir, "dataset.csv"), header, rows)
}

// WriteInvalid persists a response that failed extraction so the model's
// actual output stays inspectable. Recorded but never executed.
func (w *ArtifactWriter) WriteInvalid(item experiment.WorkItem, raw string) error {
	if raw == "" {
		return nil
	}
	dir, err := w.itemDir(item)
	if err != nil {
		return err
	}
	logging.Store("persisting invalid response for %s (%d bytes)", item.Key(), len(raw))
	return os.WriteFile(filepath.Join(dir, "response_INVALID.txt"), []byte(raw), 0644)
}

func (w *ArtifactWriter) writeJSON(dir, name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", name, err)
	}
	return os.WriteFile(filepath.Join(dir, name), append(data, '\n'), 0644)
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			f.Close()
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	return f.Close()
}
