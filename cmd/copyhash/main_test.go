package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go-copyhash"
)

// writeGradient writes a 64x64 horizontal grayscale gradient, dark to light
// or light to dark when inverted.
func writeGradient(t *testing.T, path string, inverted bool) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := range 64 {
		for x := range 64 {
			v := uint8(x * 4)
			if inverted {
				v = 255 - v
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func writeCSV(t *testing.T, path string, rows [][]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	w := csv.NewWriter(f)
	require.NoError(t, w.WriteAll(rows))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// fixture lays out an original image, a copy, an inverted image, a catalog
// holding the original and an input batch comparing the other two.
type fixture struct {
	dir, original, copied, inverted, catalog, input string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	fx := fixture{
		dir:      dir,
		original: filepath.Join(dir, "original.png"),
		copied:   filepath.Join(dir, "copy.png"),
		inverted: filepath.Join(dir, "inverted.png"),
		catalog:  filepath.Join(dir, "catalog.csv"),
		input:    filepath.Join(dir, "input.csv"),
	}
	writeGradient(t, fx.original, false)
	writeGradient(t, fx.copied, false)
	writeGradient(t, fx.inverted, true)

	h, err := copyhash.NewCodec().ComputeFile(fx.original)
	require.NoError(t, err)
	writeCSV(t, fx.catalog, [][]string{
		copyhash.CatalogFields,
		{"cat-1", h.String(), "original.png", "https://www.shutterstock.com/image-photo/1"},
	})
	writeCSV(t, fx.input, [][]string{
		copyhash.RecordFields,
		{"r1", "COMPARE", fx.copied, "", "", "", "", "", ""},
		{"r2", "COMPARE", fx.inverted, "", "", "", "", "", ""},
		{"r3", "COMPUTE HASH", filepath.Join(dir, "missing.png"), "", "", "", "", "", ""},
		{"r4", "COMPARE", "", "", "", "", "", "", ""},
	})
	return fx
}

func readResults(t *testing.T, path string) map[string]copyhash.ComparisonRecord {
	t.Helper()
	src, err := copyhash.OpenResults(path, 4)
	require.NoError(t, err)
	defer src.Close()

	byID := map[string]copyhash.ComparisonRecord{}
	for rec := range src.All() {
		byID[rec.ID] = rec
	}
	require.NoError(t, src.Err())
	return byID
}

func TestHashCommand(t *testing.T) {
	fx := newFixture(t)

	out, err := execute(t, "hash", fx.original, fx.copied)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	h0, p0, _ := strings.Cut(lines[0], "\t")
	h1, p1, _ := strings.Cut(lines[1], "\t")
	assert.Equal(t, fx.original, p0)
	assert.Equal(t, fx.copied, p1)
	assert.Equal(t, h0, h1)
	assert.Equal(t, 3, strings.Count(h0, copyhash.HashSeparator))
}

func TestHashCommand_MissingFile(t *testing.T) {
	fx := newFixture(t)

	out, err := execute(t, "hash", fx.original, filepath.Join(fx.dir, "absent.png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 images")
	assert.Contains(t, out, fx.original)
}

func TestHashCommand_Submit(t *testing.T) {
	fx := newFixture(t)
	batch := filepath.Join(fx.dir, "submitted.csv")

	_, err := execute(t, "hash", "--output", batch, "--submit", fx.copied)
	require.NoError(t, err)

	results := readResults(t, batch)
	require.Len(t, results, 1)
	for _, rec := range results {
		assert.Equal(t, copyhash.RequestCompare, rec.Request)
		assert.Equal(t, copyhash.StatusNotStarted, rec.Status)
		assert.NotEmpty(t, rec.Hash)
	}
}

func TestCompareCommand(t *testing.T) {
	fx := newFixture(t)
	output := filepath.Join(fx.dir, "output.csv")
	metricsFile := filepath.Join(fx.dir, "copyhash.prom")
	cache := filepath.Join(fx.dir, "hashes.db")

	_, err := execute(t, "compare",
		"--catalog", fx.catalog,
		"--input", fx.input,
		"--output", output,
		"--compute-missing",
		"--workers", "2",
		"--cache", cache,
		"--metrics-file", metricsFile,
	)
	require.NoError(t, err)

	results := readResults(t, output)
	require.Len(t, results, 4)

	assert.Equal(t, copyhash.StatusSuccess, results["r1"].Status)
	assert.Equal(t, "[ cat-1: identical ]", results["r1"].CopyrightComparisons)
	assert.NotEmpty(t, results["r1"].Hash)

	assert.Equal(t, copyhash.StatusSuccess, results["r2"].Status)
	assert.Equal(t, "[ cat-1: different ]", results["r2"].CopyrightComparisons)

	assert.Equal(t, copyhash.StatusError, results["r3"].Status)
	assert.Equal(t, copyhash.RequestComputeHash, results["r3"].Request)
	assert.NotEmpty(t, results["r3"].Traceback)

	assert.Equal(t, copyhash.StatusError, results["r4"].Status)
	assert.Contains(t, results["r4"].Message, "asset path is empty")
	assert.Contains(t, results["r4"].ObjectDump, `"id":"r4"`)

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "copyhash_catalog_entries 1")

	_, err = os.Stat(cache)
	assert.NoError(t, err)
}

func TestCompareCommand_RequireHash(t *testing.T) {
	fx := newFixture(t)
	output := filepath.Join(fx.dir, "output.csv")

	_, err := execute(t, "compare", "-c", fx.catalog, "-i", fx.input, "-o", output)
	require.NoError(t, err)

	results := readResults(t, output)
	assert.Equal(t, copyhash.StatusError, results["r1"].Status)
	assert.Contains(t, results["r1"].Message, "has no hash")
}

func TestCompareCommand_BadCatalog(t *testing.T) {
	fx := newFixture(t)
	writeCSV(t, fx.catalog, [][]string{
		{"id", "hash", "original", "link"},
		{"cat-1", "00, 00, 00, 00", "a.png", ""},
	})

	_, err := execute(t, "compare", "-c", fx.catalog, "-i", fx.input, "-o", filepath.Join(fx.dir, "out.csv"))
	require.Error(t, err)
	assert.ErrorIs(t, err, copyhash.ErrSchema)
	assert.NoFileExists(t, filepath.Join(fx.dir, "out.csv"))
}

func TestCompareCommand_InvalidThresholds(t *testing.T) {
	fx := newFixture(t)

	_, err := execute(t, "compare", "-c", fx.catalog, "-i", fx.input, "-o", filepath.Join(fx.dir, "out.csv"),
		"--identity-threshold", "5", "--similarity-threshold", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "similarity_threshold")
}

func TestReportCommand(t *testing.T) {
	fx := newFixture(t)
	output := filepath.Join(fx.dir, "output.csv")
	_, err := execute(t, "compare", "-c", fx.catalog, "-i", fx.input, "-o", output, "--compute-missing")
	require.NoError(t, err)

	out, err := execute(t, "report", "-i", output, "-c", fx.catalog)
	require.NoError(t, err)
	assert.Contains(t, out, fx.copied+" (r1)")
	assert.Contains(t, out, "identical")
	assert.Contains(t, out, "[blocked]")
	assert.NotContains(t, out, fx.inverted)

	out, err = execute(t, "report", "-i", output, "--keep", "different")
	require.NoError(t, err)
	assert.Contains(t, out, fx.inverted+" (r2)")
	assert.NotContains(t, out, fx.copied)
}

func TestExifCommand(t *testing.T) {
	fx := newFixture(t)
	list := filepath.Join(fx.dir, "paths.txt")
	require.NoError(t, os.WriteFile(list, []byte(fx.original+"\n\n"+filepath.Join(fx.dir, "absent.png")+"\n"), 0o600))
	report := filepath.Join(fx.dir, "report.csv")

	_, err := execute(t, "exif", "-i", list, "-o", report)
	require.NoError(t, err)

	f, err := os.Open(report)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, copyhash.ImageReportFields, rows[0])
	assert.Equal(t, "original.png", rows[1][0])
	assert.NotEqual(t, "ok", rows[1][2], "gradient fixture carries no copyright")
	assert.Equal(t, "ok", rows[1][7])
	assert.Equal(t, "error", rows[2][7])
}
