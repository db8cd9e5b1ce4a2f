package copyhash

import (
	"slices"
	"strconv"
	"strings"

	"github.com/corona10/goimagehash"
	"github.com/patrickmn/go-cache"
	pkgerrors "github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const hexDigitsPerWord = 16

// Engine computes distances between composite hashes of a fixed length.
// It is safe for concurrent use.
type Engine struct {
	n int

	// decoded memoizes catalog elements only, so it is bounded by the
	// catalog size whatever the number of candidates.
	decoded *cache.Cache
}

// NewEngine returns an Engine for composite hashes of n elements.
func NewEngine(n int) *Engine {
	return &Engine{
		n:       n,
		decoded: cache.New(cache.NoExpiration, 0),
	}
}

// Len is the composite hash length this engine accepts.
func (e *Engine) Len() int {
	return e.n
}

// DecodeElement parses one hex-encoded hash element into a bit pattern of
// 4 bits per digit.
func (e *Engine) DecodeElement(text string) (*goimagehash.ExtImageHash, error) {
	return e.decode(text, false)
}

// decode parses text, reusing a memoized catalog element when there is one.
// Only elements decoded with remember set are added to the memo.
func (e *Engine) decode(text string, remember bool) (*goimagehash.ExtImageHash, error) {
	if text == "" {
		return nil, newError(ErrFormat, "empty hash element")
	}
	if v, ok := e.decoded.Get(text); ok {
		return v.(*goimagehash.ExtImageHash), nil
	}

	h, err := decodeHex(text)
	if err != nil {
		return nil, err
	}
	if remember {
		e.decoded.SetDefault(text, h)
	}
	return h, nil
}

func decodeHex(text string) (*goimagehash.ExtImageHash, error) {
	pad := (hexDigitsPerWord - len(text)%hexDigitsPerWord) % hexDigitsPerWord
	padded := strings.Repeat("0", pad) + text

	words := make([]uint64, 0, len(padded)/hexDigitsPerWord)
	for i := 0; i < len(padded); i += hexDigitsPerWord {
		w, err := strconv.ParseUint(padded[i:i+hexDigitsPerWord], 16, 64)
		if err != nil {
			return nil, newError(ErrFormat, "hash element %q is not hexadecimal", text)
		}
		words = append(words, w)
	}
	return goimagehash.NewExtImageHash(words, goimagehash.Unknown, len(text)*4), nil
}

// ElementDistance is the Hamming distance between two hash elements of equal width.
func (e *Engine) ElementDistance(a, b string) (int, error) {
	ha, err := e.DecodeElement(a)
	if err != nil {
		return 0, err
	}
	hb, err := e.DecodeElement(b)
	if err != nil {
		return 0, err
	}
	return elementDistance(ha, hb, a, b)
}

func elementDistance(ha, hb *goimagehash.ExtImageHash, a, b string) (int, error) {
	d, err := ha.Distance(hb)
	if err != nil {
		return 0, newError(ErrFormat, "compare %q with %q: %v", a, b, err)
	}
	return d, nil
}

func (e *Engine) checkShape(h CompositeHash) error {
	if len(h) == 0 {
		return newError(ErrShape, "empty composite hash")
	}
	if len(h) != e.n {
		return newError(ErrShape, "expected %d hashes, got %d", e.n, len(h))
	}
	return nil
}

// decodeAll decodes every element of h after checking its length.
func (e *Engine) decodeAll(h CompositeHash, remember bool) ([]*goimagehash.ExtImageHash, error) {
	if err := e.checkShape(h); err != nil {
		return nil, err
	}
	out := make([]*goimagehash.ExtImageHash, len(h))
	for i, text := range h {
		d, err := e.decode(text, remember)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

// Distance is the mean element distance of a and b, computed exactly.
func (e *Engine) Distance(a, b CompositeHash) (decimal.Decimal, error) {
	if err := e.checkShape(a); err != nil {
		return decimal.Zero, err
	}
	if err := e.checkShape(b); err != nil {
		return decimal.Zero, err
	}
	da, err := e.decodeAll(a, false)
	if err != nil {
		return decimal.Zero, err
	}
	db, err := e.decodeAll(b, false)
	if err != nil {
		return decimal.Zero, err
	}
	return e.meanDistance(da, db, a, b)
}

func (e *Engine) meanDistance(da, db []*goimagehash.ExtImageHash, a, b CompositeHash) (decimal.Decimal, error) {
	var sum int64
	for i := range da {
		d, err := elementDistance(da[i], db[i], a[i], b[i])
		if err != nil {
			return decimal.Zero, err
		}
		sum += int64(d)
	}
	return decimal.NewFromInt(sum).Div(decimal.NewFromInt(int64(e.n))), nil
}

// Categorize buckets the distance of a and b. Both bounds are inclusive.
func (e *Engine) Categorize(a, b CompositeHash, identity, similarity int) (Category, error) {
	d, err := e.Distance(a, b)
	if err != nil {
		return "", err
	}
	return bucket(d, identity, similarity), nil
}

func bucket(d decimal.Decimal, identity, similarity int) Category {
	switch {
	case d.LessThanOrEqual(decimal.NewFromInt(int64(identity))):
		return CategoryIdentical
	case d.LessThanOrEqual(decimal.NewFromInt(int64(similarity))):
		return CategorySimilar
	default:
		return CategoryDifferent
	}
}

// CategorizeAgainstCatalog categorizes candidate against every catalog entry.
// The candidate is decoded once per call and never memoized; catalog
// elements are decoded on first use and kept for the engine's lifetime.
// The first failing entry aborts the comparison.
func (e *Engine) CategorizeAgainstCatalog(candidate CompositeHash, catalog *Catalog, identity, similarity int) (HashComparisonResult, error) {
	result := make(HashComparisonResult, catalog.Len())
	if catalog.Len() == 0 {
		return result, nil
	}
	cand, err := e.decodeAll(candidate, false)
	if err != nil {
		return nil, err
	}
	for img := range catalog.All() {
		known := img.CompositeHash()
		dk, err := e.decodeAll(known, true)
		if err == nil {
			var d decimal.Decimal
			if d, err = e.meanDistance(cand, dk, candidate, known); err == nil {
				result[img.ID] = bucket(d, identity, similarity)
				continue
			}
		}
		return nil, pkgerrors.WithMessagef(err, "catalog entry %q", img.ID)
	}
	return result, nil
}

// Filter returns the entries of result whose category is one of wanted.
func Filter(result HashComparisonResult, wanted ...Category) HashComparisonResult {
	return lo.PickBy(result, func(_ string, c Category) bool {
		return slices.Contains(wanted, c)
	})
}
