package copyhash

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"slices"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// CatalogFields is the exact header of a catalog table.
var CatalogFields = []string{"id", "hash", "original_name", "link"}

// KnownImage is one catalog entry.
type KnownImage struct {
	ID           string
	Hash         string // serialized CompositeHash
	OriginalName string
	Link         string
}

// CompositeHash splits the serialized hash. The catalog validated its length at load.
func (k KnownImage) CompositeHash() CompositeHash {
	return strings.Split(k.Hash, HashSeparator)
}

// Provenance classifies the entry's link against the stock and free domain lists.
func (k KnownImage) Provenance() ImageLicense {
	return CheckLicense(k.Link)
}

func (k KnownImage) validate(n int) error {
	if k.ID == "" {
		return newError(ErrValidation, "id is empty")
	}
	if k.Hash == "" {
		return newError(ErrValidation, "hash is empty for image with id %q", k.ID)
	}
	return checkSeparators("hash", k.Hash, n)
}

// Catalog is the read-only set of known images for a run.
type Catalog struct {
	images []KnownImage
	byID   map[string]int
}

// NewCatalog validates images for composite hashes of n elements. Ids must be unique.
func NewCatalog(images []KnownImage, n int) (*Catalog, error) {
	c := &Catalog{
		images: slices.Clone(images),
		byID:   make(map[string]int, len(images)),
	}
	for i, img := range c.images {
		if err := c.add(i, img, n); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) add(i int, img KnownImage, n int) error {
	if err := img.validate(n); err != nil {
		return err
	}
	if _, dup := c.byID[img.ID]; dup {
		return newError(ErrValidation, "duplicate id %q", img.ID)
	}
	c.byID[img.ID] = i
	return nil
}

// Len is the number of entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.images)
}

// All yields the entries in load order.
func (c *Catalog) All() iter.Seq[KnownImage] {
	if c == nil {
		return func(func(KnownImage) bool) {}
	}
	return slices.Values(c.images)
}

// Lookup returns the entry with the given id.
func (c *Catalog) Lookup(id string) (KnownImage, bool) {
	if c == nil {
		return KnownImage{}, false
	}
	i, ok := c.byID[id]
	if !ok {
		return KnownImage{}, false
	}
	return c.images[i], true
}

// LoadCatalog reads a CSV catalog for composite hashes of n elements.
// It returns the catalog and the number of data rows read. Any bad row
// aborts the whole load.
func LoadCatalog(r io.Reader, n int) (*Catalog, int, error) {
	return loadCatalog(newCSVRows(r, nil), n)
}

// LoadCatalogFile reads a .csv or .xlsx catalog.
func LoadCatalogFile(path string, n int) (*Catalog, int, error) {
	rows, err := openTable(path)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	c, count, err := loadCatalog(rows, n)
	if err != nil {
		return nil, count, err
	}
	slog.Debug("copyhash: catalog loaded", "path", path, "entries", c.Len(), "rows", count)
	return c, count, nil
}

func loadCatalog(rows rowReader, n int) (*Catalog, int, error) {
	header, err := readHeader(rows, CatalogFields)
	if err != nil {
		return nil, 0, err
	}

	c := &Catalog{byID: map[string]int{}}
	count := 0
	for {
		cells, err := rows.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		count++
		if err != nil {
			return nil, count, wrapError(ErrValidation, fmt.Sprintf("catalog row %d", count), err)
		}

		img, err := parseKnownImage(header, cells)
		if err == nil {
			err = c.add(len(c.images), img, n)
		}
		if err != nil {
			return nil, count, pkgerrors.WithMessagef(err, "catalog row %d", count)
		}
		c.images = append(c.images, img)
	}
	return c, count, nil
}

func parseKnownImage(header, cells []string) (KnownImage, error) {
	m, err := rowMap(header, cells)
	if err != nil {
		return KnownImage{}, err
	}
	return KnownImage{
		ID:           m["id"],
		Hash:         m["hash"],
		OriginalName: m["original_name"],
		Link:         m["link"],
	}, nil
}
