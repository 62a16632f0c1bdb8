package sitesafecli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/elite6108/sitesafe/internal/security"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// isolate points every path the commands touch at a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SITESAFE_DB_PATH", filepath.Join(dir, "sitesafe.db"))
	t.Setenv("SITESAFE_STORAGE_DIR", filepath.Join(dir, "storage"))
	t.Setenv("SITESAFE_SIGNING_SECRET", "test-secret")
	return dir
}

func TestSetupWritesEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "conf", ".env")

	_, err := run(t, "setup", "--env-file", envFile)
	require.Error(t, err)

	_, err = run(t, "setup", "--env-file", envFile, "--admin-password", "short")
	require.Error(t, err)

	out, err := run(t, "setup", "--env-file", envFile, "--admin-password", "correct horse battery", "--admin-username", "boss")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+envFile)

	raw, err := os.ReadFile(envFile)
	require.NoError(t, err)
	values := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		key, value, ok := strings.Cut(line, "=")
		require.True(t, ok, line)
		values[key] = strings.Trim(value, "'")
	}
	assert.Equal(t, "boss", values["SITESAFE_ADMIN_USERNAME"])
	assert.True(t, security.VerifyPassword("correct horse battery", values["SITESAFE_ADMIN_PASSWORD_HASH"]))
	assert.Len(t, values["SITESAFE_SIGNING_SECRET"], 64)
	assert.NotContains(t, string(raw), "correct horse battery")

	_, err = run(t, "setup", "--env-file", envFile, "--admin-password", "correct horse battery")
	require.Error(t, err)
	_, err = run(t, "setup", "--env-file", envFile, "--admin-password", "correct horse battery", "--force")
	require.NoError(t, err)
}

func TestStaffImportAndLeaveExport(t *testing.T) {
	dir := isolate(t)
	envFile := filepath.Join(dir, "missing.env")
	configFile := filepath.Join(dir, "missing.yaml")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range [][]any{
		{"Name", "Email"},
		{"Reyes, Ana", "ana@example.com"},
		{"Sam Hill", "sam@example.com"},
	} {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	staffFile := filepath.Join(dir, "staff.xlsx")
	require.NoError(t, f.SaveAs(staffFile))
	require.NoError(t, f.Close())

	out, err := run(t, "--env-file", envFile, "--config", configFile, "staff", "import", staffFile)
	require.NoError(t, err)
	assert.Contains(t, out, "created 2, skipped 0")

	out, err = run(t, "--env-file", envFile, "--config", configFile, "staff", "import", staffFile)
	require.NoError(t, err)
	assert.Contains(t, out, "created 0, skipped 2")

	register := filepath.Join(dir, "reports", "leave.xlsx")
	_, err = run(t, "--env-file", envFile, "--config", configFile, "leave", "export", register)
	require.NoError(t, err)

	book, err := excelize.OpenFile(register)
	require.NoError(t, err)
	defer func() { _ = book.Close() }()
	rows, err := book.GetRows("Summary")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestGenerateRejectsUnknownKind(t *testing.T) {
	dir := isolate(t)
	_, err := run(t, "--env-file", filepath.Join(dir, "missing.env"), "generate", "widgets", "1")
	require.Error(t, err)

	_, err = run(t, "--env-file", filepath.Join(dir, "missing.env"), "generate", "incidents")
	require.Error(t, err)
}

func TestUnknownStorageDriver(t *testing.T) {
	dir := isolate(t)
	t.Setenv("SITESAFE_STORAGE_DRIVER", "ftp")
	_, err := run(t, "--env-file", filepath.Join(dir, "missing.env"), "export", "--out", filepath.Join(dir, "b.tar.xz"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ftp")
}
