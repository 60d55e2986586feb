package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	data := Dataset{
		Title:   "Result Sheet",
		Headers: []string{"Subject", "Score", "Grade"},
		Rows: []map[string]string{
			{"Subject": "Mathematics", "Score": "72.50", "Grade": "B"},
			{"Subject": "English, Lang", "Score": "55.00", "Grade": "C"},
		},
	}

	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Equal(t, "Subject,Score,Grade\nMathematics,72.50,B\n\"English, Lang\",55.00,C\n", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestCSVExporterMissingCellsAreEmpty(t *testing.T) {
	data := Dataset{
		Headers: []string{"Subject", "Score"},
		Rows:    []map[string]string{{"Subject": "Mathematics"}},
	}

	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Equal(t, "Subject,Score\nMathematics,\n", string(out))
}
