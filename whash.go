package copyhash

import (
	"errors"
	"image"
	"slices"

	"github.com/nfnt/resize"
	"github.com/rivo/duplo/haar"
)

const (
	waveletScale = 32 // side of the square fed to the Haar transform; must be a power of two
	waveletSide  = 8  // low-frequency block kept, 8x8 = 64 bits
)

// waveletHash thresholds the low-frequency luminance coefficients of a Haar
// decomposition against their median.
func waveletHash(img image.Image) (string, error) {
	if img == nil {
		return "", errors.New("copyhash: wavelet hash of nil image")
	}

	scaled := resize.Resize(waveletScale, waveletScale, img, resize.Bilinear)
	m := haar.Transform(scaled)
	width := int(m.Width)

	coefs := make([]float64, 0, waveletSide*waveletSide)
	for y := range waveletSide {
		for x := range waveletSide {
			coefs = append(coefs, m.Coefs[y*width+x][0]) // Y channel
		}
	}

	med := median(coefs)
	var bits uint64
	for i, c := range coefs {
		if c > med {
			bits |= 1 << (63 - i)
		}
	}
	return formatHash(bits), nil
}

func median(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	n := len(sorted)
	switch {
	case n == 0:
		return 0
	case n%2 == 0:
		return (sorted[n/2-1] + sorted[n/2]) / 2
	default:
		return sorted[n/2]
	}
}
