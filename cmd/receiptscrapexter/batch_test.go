// cmd/receiptscrapexter/batch_test.go
package main

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/ReceiptScrapexter/internal/output"
)

func writeLinks(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "links.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const batchLinks = `# receipts from May
https://nfce.fazenda.sp.gov.br/qrcode?vNF=150,00&dhEmi=20240504120000

https://nfce.sefaz.rs.gov.br/qrcode?vNF=87,45&dhEmi=2024-03-02
`

func TestBatchCmd_WritesJSON(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "out", "receipts.json")

	out, err := execute(t, "batch", writeLinks(t, batchLinks), "--output", outPath, "--concurrency", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Extracted 2 links (2 complete, 0 partial, 0 identifier only)")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)

	var records []output.Record
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 2)

	// Order follows the input file
	assert.Equal(t, "150,00", records[0].Value)
	assert.Equal(t, "04/05/2024", records[0].Date)
	assert.Equal(t, "87,45", records[1].Value)
	assert.Equal(t, "02/03/2024", records[1].Date)
	assert.Equal(t, "url_parameter", records[1].ValueSource)
}

func TestBatchCmd_WritesExcel(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "receipts.xlsx")

	_, err := execute(t, "batch", writeLinks(t, batchLinks), "-o", outPath)
	require.NoError(t, err)

	info, err := os.Stat(outPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestBatchCmd_AuditsWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "audit.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	cfgYAML := "audit:\n  enabled: true\n  driver: sqlite3\n  dsn: " + dbPath + "\n  table: extractions\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYAML), 0644))

	_, err := execute(t, "batch", writeLinks(t, batchLinks), "--output", filepath.Join(dir, "out.csv"), "--config", cfgPath)
	require.NoError(t, err)

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM extractions`).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestBatchCmd_Errors(t *testing.T) {
	links := writeLinks(t, batchLinks)
	empty := writeLinks(t, "# nothing here\n\n")
	outDir := t.TempDir()

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing output", []string{"batch", links}, `required flag(s) "output" not set`},
		{"unknown format", []string{"batch", links, "-o", filepath.Join(outDir, "out.pdf")}, "validation failed"},
		{"bad concurrency", []string{"batch", links, "-o", filepath.Join(outDir, "out.json"), "-n", "0"}, "concurrency"},
		{"missing file", []string{"batch", filepath.Join(outDir, "none.txt"), "-o", filepath.Join(outDir, "out.json")}, "failed to open links file"},
		{"no links", []string{"batch", empty, "-o", filepath.Join(outDir, "out.json")}, "no links found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
