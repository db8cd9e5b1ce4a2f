package copyhash

import (
	"bufio"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/corona10/goimagehash"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// HashSeparator joins the elements of a serialized CompositeHash.
const HashSeparator = ", "

// CompositeHash is the ordered list of hex-encoded perceptual hashes of one
// image, one element per configured Algorithm.
type CompositeHash []string

// String serializes h.
func (h CompositeHash) String() string {
	return strings.Join(h, HashSeparator)
}

// Equal reports whether h and other hold the same elements in the same order.
func (h CompositeHash) Equal(other CompositeHash) bool {
	return slices.Equal(h, other)
}

// Algorithm is one perceptual hash contributing an element to a CompositeHash.
type Algorithm struct {
	Name string
	Hash func(img image.Image) (string, error)
}

var (
	AverageHash    = Algorithm{Name: "average", Hash: imageHashFunc(goimagehash.AverageHash)}
	PerceptionHash = Algorithm{Name: "perception", Hash: imageHashFunc(goimagehash.PerceptionHash)}
	DifferenceHash = Algorithm{Name: "difference", Hash: imageHashFunc(goimagehash.DifferenceHash)}
	WaveletHash    = Algorithm{Name: "wavelet", Hash: waveletHash}
)

// DefaultAlgorithms returns the average, perception, difference and wavelet
// hashes, in that order.
func DefaultAlgorithms() []Algorithm {
	return []Algorithm{AverageHash, PerceptionHash, DifferenceHash, WaveletHash}
}

// AlgorithmByName looks up one of the built-in algorithms.
func AlgorithmByName(name string) (Algorithm, error) {
	for _, a := range DefaultAlgorithms() {
		if a.Name == name {
			return a, nil
		}
	}
	return Algorithm{}, newError(ErrValidation, "unknown hash algorithm %q", name)
}

func imageHashFunc(fn func(image.Image) (*goimagehash.ImageHash, error)) func(image.Image) (string, error) {
	return func(img image.Image) (string, error) {
		h, err := fn(img)
		if err != nil {
			return "", err
		}
		return formatHash(h.GetHash()), nil
	}
}

func formatHash(v uint64) string {
	return fmt.Sprintf("%016x", v)
}

// Codec computes and (de)serializes composite hashes for a fixed algorithm set.
type Codec struct {
	algs []Algorithm
}

// NewCodec returns a Codec over algs; no algorithms means DefaultAlgorithms().
func NewCodec(algs ...Algorithm) *Codec {
	if len(algs) == 0 {
		algs = DefaultAlgorithms()
	}
	return &Codec{algs: slices.Clone(algs)}
}

// Len is the number of elements in every composite hash of this codec.
func (c *Codec) Len() int {
	return len(c.algs)
}

// Names returns the algorithm names in hashing order.
func (c *Codec) Names() []string {
	names := make([]string, len(c.algs))
	for i, a := range c.algs {
		names[i] = a.Name
	}
	return names
}

// Compute runs every algorithm over img in order.
func (c *Codec) Compute(img image.Image) (CompositeHash, error) {
	if img == nil {
		return nil, newError(ErrDecode, "no image")
	}
	h := make(CompositeHash, 0, len(c.algs))
	for _, a := range c.algs {
		s, err := a.Hash(img)
		if err != nil {
			return nil, wrapError(ErrDecode, a.Name+" hash", err)
		}
		h = append(h, s)
	}
	return h, nil
}

// ComputeReader decodes an image from r and hashes it.
func (c *Codec) ComputeReader(r io.Reader) (CompositeHash, error) {
	img, _, err := image.Decode(bufio.NewReader(r))
	if err != nil {
		return nil, wrapError(ErrDecode, "decode image", err)
	}
	return c.Compute(img)
}

// ComputeFile hashes the image stored at path. A missing or unreadable file
// is reported as ErrDecode.
func (c *Codec) ComputeFile(path string) (CompositeHash, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapError(ErrDecode, "open "+path, err)
	}
	defer f.Close()

	h, err := c.ComputeReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

// Serialize joins h with HashSeparator.
func (c *Codec) Serialize(h CompositeHash) string {
	return h.String()
}

// Deserialize splits text on HashSeparator. Elements are not decoded here;
// a malformed element surfaces when a distance is computed.
func (c *Codec) Deserialize(text string) (CompositeHash, error) {
	parts := strings.Split(text, HashSeparator)
	if len(parts) != len(c.algs) {
		return nil, newError(ErrFormat, "expected %d hashes separated by %q, got %d in %q",
			len(c.algs), HashSeparator, len(parts), text)
	}
	return CompositeHash(parts), nil
}

// cacheKey identifies the hash of the file at path as of info, for this
// algorithm set.
func (c *Codec) cacheKey(path string, info fs.FileInfo) string {
	return fmt.Sprintf("%s|%d|%d|%s", path, info.Size(), info.ModTime().UnixNano(), strings.Join(c.Names(), ","))
}

// checkSeparators validates a serialized composite hash of n elements
// without splitting it.
func checkSeparators(field, text string, n int) error {
	if got := strings.Count(text, HashSeparator); got != n-1 {
		return newError(ErrValidation, "%q must contain exactly %d occurrences of %q, got %d",
			field, n-1, HashSeparator, got)
	}
	return nil
}
