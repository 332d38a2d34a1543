package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rpattn/sapingest/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config-dir", t.TempDir(), "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeExport(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zmm_export.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestImportDryRun(t *testing.T) {
	path := writeExport(t, "Contract No,STO,Trip No\nCT-1,STO-1,T-1\nCT-1,STO-1,T-2\n")

	stdout, err := runCLI(t, "import", "--file", path)
	require.NoError(t, err)

	var out importOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, "dry-run", out.Mode)
	assert.Equal(t, domain.BatchStatusCompleted, out.Summary.Status)
	assert.Equal(t, 2, out.Summary.ProcessedRows)
	assert.Equal(t, map[string]int{
		"contracts":           1,
		"shipments":           1,
		"trucking_operations": 2,
		"quality_surveys":     0,
	}, out.Entities)
}

func TestImportFailedRowsExitCode(t *testing.T) {
	path := writeExport(t, "Contract No,STO,ETD,ETA\nCT-1,STO-1,2024-03-10,2024-03-01\n")

	stdout, err := runCLI(t, "import", "--file", path)
	var exit *exitError
	require.True(t, errors.As(err, &exit))
	assert.Equal(t, 2, exit.code)
	assert.Contains(t, stdout, `"failedRows": 1`)
}

func TestImportRequiresFile(t *testing.T) {
	_, err := runCLI(t, "import")
	assert.ErrorContains(t, err, "file")
}

func TestInspectCommand(t *testing.T) {
	path := writeExport(t, "Group,,Product\nA,X,Widget\n")

	stdout, err := runCLI(t, "inspect", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, `"sheet": "zmm_export"`)
	assert.Contains(t, stdout, `"Column_1"`)
}
