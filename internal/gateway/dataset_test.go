package gateway

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paylab/internal/experiment"
	"paylab/internal/person"
)

func datasetCSV(rows int, dropColumn string) string {
	cols := append(append([]string{}, person.AttributeNames...), "compensation")
	var keep []string
	for _, c := range cols {
		if c != dropColumn {
			keep = append(keep, c)
		}
	}
	var b strings.Builder
	b.WriteString(strings.Join(keep, ",") + "\n")
	for i := 0; i < rows; i++ {
		cells := make([]string, len(keep))
		for j, c := range keep {
			if c == "compensation" {
				cells[j] = fmt.Sprintf("%d", 50000+i)
			} else {
				cells[j] = "x"
			}
		}
		b.WriteString(strings.Join(cells, ",") + "\n")
	}
	return b.String()
}

func TestExtractDatasetValid(t *testing.T) {
	ds, err := ExtractDataset("```csv\n"+datasetCSV(3, "")+"```", DefaultDatasetSpec(3))
	require.NoError(t, err)
	assert.Len(t, ds.Rows, 3)
	assert.Contains(t, ds.Header, "compensation")
	assert.Len(t, ds.Header, len(person.AttributeNames)+1)
}

func TestExtractDatasetNormalizesHeaderCase(t *testing.T) {
	csv := datasetCSV(2, "")
	lines := strings.SplitN(csv, "\n", 2)
	csv = strings.ToUpper(lines[0]) + "\n" + lines[1]
	ds, err := ExtractDataset(csv, DefaultDatasetSpec(2))
	require.NoError(t, err)
	assert.Contains(t, ds.Header, "gender")
}

func TestExtractDatasetMissingColumn(t *testing.T) {
	_, err := ExtractDataset(datasetCSV(3, "compensation"), DefaultDatasetSpec(3))
	var pe *experiment.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Reason, "compensation")
}

func TestExtractDatasetWrongRowCount(t *testing.T) {
	_, err := ExtractDataset(datasetCSV(2, ""), DefaultDatasetSpec(3))
	var pe *experiment.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Reason, "rows")
}

func TestExtractDatasetNonNumericCompensation(t *testing.T) {
	csv := datasetCSV(2, "")
	csv = strings.Replace(csv, "50000", "about fifty grand", 1)
	_, err := ExtractDataset(csv, DefaultDatasetSpec(2))
	var pe *experiment.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Reason, "not numeric")
}

func TestExtractDatasetEmptyAndProse(t *testing.T) {
	for _, content := range []string{"", "I cannot produce this dataset."} {
		_, err := ExtractDataset(content, DefaultDatasetSpec(3))
		var pe *experiment.ParseError
		require.True(t, errors.As(err, &pe), "content %q gave %v", content, err)
	}
}
