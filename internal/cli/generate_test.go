package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ng-nicholas/tabbench/internal/dataset"
)

func TestGenerateWritesDataset(t *testing.T) {
	out := filepath.Join(t.TempDir(), "contacts.csv")

	buf := &bytes.Buffer{}
	cmd := NewGenerateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--rows", "1500", "--seed", "9", "--out", out})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Wrote 1,500 rows to "+out)

	tbl, err := dataset.Load(out, dataset.DefaultFormat())
	require.NoError(t, err)
	assert.Equal(t, 1500, tbl.NumRows())
	assert.Equal(t, []string{"user_id", "prop_id", "contact_date", "price", "channel"}, tbl.Names())
}

func TestGenerateIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.csv", "b.csv"} {
		cmd := NewGenerateCommand(&RootOptions{Format: "json"})
		buf := &bytes.Buffer{}
		cmd.SetOut(buf)
		cmd.SetArgs([]string{"--rows", "50", "--seed", "4", "--out", filepath.Join(dir, name)})
		require.NoError(t, cmd.Execute())

		var resp struct {
			Status string         `json:"status"`
			Data   GenerateResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		assert.Equal(t, 50, resp.Data.Rows)
		assert.Positive(t, resp.Data.Bytes)
	}

	a, err := os.ReadFile(filepath.Join(dir, "a.csv"))
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(dir, "b.csv"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerateRequiresOut(t *testing.T) {
	cmd := NewGenerateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--rows", "10"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestGenerateNegativeRows(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewGenerateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--rows=-1", "--out", filepath.Join(t.TempDir(), "x.csv")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E002]")
}
