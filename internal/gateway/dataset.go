package gateway

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"paylab/internal/experiment"
	"paylab/internal/person"
)

// DatasetSpec is the expected shape of a directly generated dataset: the
// Person attribute columns plus one compensation column, one row per input
// record.
type DatasetSpec struct {
	Columns  []string
	RowCount int
}

// DefaultDatasetSpec returns the published dataset shape for a batch of n
// records.
func DefaultDatasetSpec(n int) DatasetSpec {
	cols := make([]string, 0, len(person.AttributeNames)+1)
	cols = append(cols, person.AttributeNames...)
	cols = append(cols, "compensation")
	return DatasetSpec{Columns: cols, RowCount: n}
}

// ExtractDataset parses a direct_data response as CSV and checks row count
// and column schema against spec. Shape mismatches are ParseErrors; the
// content of the cells is not judged here beyond the compensation column
// holding numbers.
func ExtractDataset(content string, spec DatasetSpec) (*experiment.DatasetArtifact, error) {
	text := stripCodeFence(content)

	reader := csv.NewReader(strings.NewReader(text))
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, &experiment.ParseError{Reason: fmt.Sprintf("dataset does not parse as CSV: %v", err)}
	}
	if len(records) == 0 {
		return nil, &experiment.ParseError{Reason: "dataset is empty"}
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.ToLower(h))
	}
	if err := checkColumns(header, spec.Columns); err != nil {
		return nil, err
	}

	rows := records[1:]
	if len(rows) != spec.RowCount {
		return nil, &experiment.ParseError{
			Reason: fmt.Sprintf("dataset has %d rows, want %d", len(rows), spec.RowCount),
		}
	}

	compIdx := indexOf(header, "compensation")
	for i, row := range rows {
		if len(row) != len(header) {
			return nil, &experiment.ParseError{
				Reason: fmt.Sprintf("row %d has %d columns, want %d", i, len(row), len(header)),
			}
		}
		if compIdx >= 0 {
			if _, err := strconv.ParseFloat(strings.TrimSpace(row[compIdx]), 64); err != nil {
				return nil, &experiment.ParseError{
					Reason: fmt.Sprintf("row %d compensation %q is not numeric", i, row[compIdx]),
				}
			}
		}
	}

	return &experiment.DatasetArtifact{Header: header, Rows: rows}, nil
}

func checkColumns(header, want []string) error {
	missing := []string{}
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[h] = true
	}
	for _, col := range want {
		if !have[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &experiment.ParseError{
			Reason: "dataset missing required columns: " + strings.Join(missing, ", "),
		}
	}
	if len(header) != len(want) {
		return &experiment.ParseError{
			Reason: fmt.Sprintf("dataset has %d columns, want %d", len(header), len(want)),
		}
	}
	return nil
}

func indexOf(ss []string, s string) int {
	for i, v := range ss {
		if v == s {
			return i
		}
	}
	return -1
}
