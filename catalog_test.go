package copyhash

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

const catalogCSV = `id,hash,original_name,link
cat-1,"00, 00, 00, 00",a.png,https://www.shutterstock.com/image-photo/1
cat-2,"ff, 00, 00, 00",b.png,
`

func TestLoadCatalog(t *testing.T) {
	t.Parallel()

	c, count, err := LoadCatalog(strings.NewReader(catalogCSV), 4)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 || c.Len() != 2 {
		t.Fatalf("count = %d, Len = %d, want 2, 2", count, c.Len())
	}

	var ids []string
	for img := range c.All() {
		ids = append(ids, img.ID)
	}
	if !slices.Equal(ids, []string{"cat-1", "cat-2"}) {
		t.Errorf("ids = %v, want load order", ids)
	}

	img, ok := c.Lookup("cat-2")
	if !ok {
		t.Fatal("cat-2 not found")
	}
	if img.OriginalName != "b.png" || img.Link != "" {
		t.Errorf("cat-2 = %+v", img)
	}
	if got := img.CompositeHash(); !got.Equal(CompositeHash{"ff", "00", "00", "00"}) {
		t.Errorf("CompositeHash = %v", got)
	}
	if _, ok := c.Lookup("cat-3"); ok {
		t.Error("Lookup(cat-3) found an entry")
	}
}

func TestLoadCatalog_ByteOrderMark(t *testing.T) {
	t.Parallel()

	c, _, err := LoadCatalog(strings.NewReader("\ufeff"+catalogCSV), 4)
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestLoadCatalog_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"no header", "", ErrSchema},
		{"renamed column", "id,hash,original,link\ncat-1,\"00, 00, 00, 00\",a.png,\n", ErrSchema},
		{"reordered columns", "hash,id,original_name,link\n", ErrSchema},
		{"empty id", "id,hash,original_name,link\n,\"00, 00, 00, 00\",a.png,\n", ErrValidation},
		{"empty hash", "id,hash,original_name,link\ncat-1,,a.png,\n", ErrValidation},
		{"too few separators", "id,hash,original_name,link\ncat-1,\"00, 00, 00\",a.png,\n", ErrValidation},
		{"comma without space", "id,hash,original_name,link\ncat-1,\"00,00,00,00\",a.png,\n", ErrValidation},
		{"duplicate id", "id,hash,original_name,link\nx,\"00, 00, 00, 00\",,\nx,\"ff, 00, 00, 00\",,\n", ErrValidation},
		{"extra cell", "id,hash,original_name,link\nx,\"00, 00, 00, 00\",,,surplus\n", ErrValidation},
		{"unbalanced quote", "id,hash,original_name,link\nx,\"00, 00, 00, 00,,\n", ErrValidation},
	}
	for _, tc := range tests {
		c, _, err := LoadCatalog(strings.NewReader(tc.input), 4)
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
		if c != nil {
			t.Errorf("%s: got a partial catalog", tc.name)
		}
	}
}

func TestLoadCatalog_ErrorNamesRow(t *testing.T) {
	t.Parallel()

	input := "id,hash,original_name,link\nok,\"00, 00, 00, 00\",,\nbad,,,\n"
	_, count, err := LoadCatalog(strings.NewReader(input), 4)
	if err == nil {
		t.Fatal("expected an error")
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	if !strings.Contains(err.Error(), "catalog row 2") || !strings.Contains(err.Error(), `"bad"`) {
		t.Errorf("error %q does not locate the bad row", err)
	}
}

func TestLoadCatalog_HeaderMessage(t *testing.T) {
	t.Parallel()

	_, _, err := LoadCatalog(strings.NewReader("id,hash,original,link\n"), 4)
	if err == nil || !strings.Contains(err.Error(), "expected, in order [id hash original_name link]") {
		t.Errorf("err = %v", err)
	}
}

func TestNewCatalog(t *testing.T) {
	t.Parallel()

	images := []KnownImage{{ID: "a", Hash: "00, 00"}, {ID: "b", Hash: "01, 02"}}
	c, err := NewCatalog(images, 2)
	if err != nil {
		t.Fatal(err)
	}
	images[0].ID = "changed"
	if _, ok := c.Lookup("a"); !ok {
		t.Error("catalog shares its backing array with the caller")
	}

	if _, err := NewCatalog(append(images, KnownImage{ID: "b", Hash: "00, 00"}), 2); !errors.Is(err, ErrValidation) {
		t.Errorf("duplicate id: err = %v, want ErrValidation", err)
	}

	var nilCatalog *Catalog
	if nilCatalog.Len() != 0 {
		t.Error("nil catalog has entries")
	}
	for range nilCatalog.All() {
		t.Error("nil catalog yielded an entry")
	}
}

func TestLoadCatalogFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "catalog.csv")
	if err := os.WriteFile(csvPath, []byte(catalogCSV), 0o600); err != nil {
		t.Fatal(err)
	}

	c, count, err := LoadCatalogFile(csvPath, 4)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 || c.Len() != 2 {
		t.Errorf("csv: count = %d, Len = %d", count, c.Len())
	}

	xlsxPath := filepath.Join(dir, "catalog.xlsx")
	w, err := createTable(xlsxPath)
	if err != nil {
		t.Fatal(err)
	}
	err = writeTable(w, CatalogFields, [][]string{
		{"cat-1", "00, 00, 00, 00", "a.png", "https://www.shutterstock.com/image-photo/1"},
		{"cat-2", "ff, 00, 00, 00", "b.png", ""},
	})
	if err != nil {
		t.Fatal(err)
	}

	c, count, err = LoadCatalogFile(xlsxPath, 4)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 || c.Len() != 2 {
		t.Errorf("xlsx: count = %d, Len = %d", count, c.Len())
	}
	img, _ := c.Lookup("cat-1")
	if img.Provenance() != LicenseBlocked {
		t.Errorf("cat-1 provenance = %s, want blocked", img.Provenance())
	}
}

func TestLoadCatalogFile_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, _, err := LoadCatalogFile(filepath.Join(dir, "absent.csv"), 4); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing file: err = %v, want fs.ErrNotExist", err)
	}

	txt := filepath.Join(dir, "catalog.txt")
	if err := os.WriteFile(txt, []byte(catalogCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadCatalogFile(txt, 4); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("txt file: err = %v, want ErrUnsupportedFormat", err)
	}
}
