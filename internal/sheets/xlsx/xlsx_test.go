package xlsx

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	w := New(dir)

	path, err := w.WriteReport(context.Background(), "March 2024", [][]any{
		{"Group", "Total", "Transactions"},
		{"Food", "Rp 60.000", 2},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "March_2024.xlsx"), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"March 2024"}, f.GetSheetList())
	rows, err := f.GetRows("March 2024")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Group", "Total", "Transactions"},
		{"Food", "Rp 60.000", "2"},
	}, rows)
}

func TestWriteReport_EmptyTitle(t *testing.T) {
	_, err := New(t.TempDir()).WriteReport(context.Background(), " ", nil)
	assert.Error(t, err)
}

func TestSheetName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"March 2024", "March 2024"},
		{"2024/03 [food]", "2024-03 -food-"},
		{strings.Repeat("a", 40), strings.Repeat("a", 31)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sheetName(tt.in), tt.in)
	}
}
