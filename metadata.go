package copyhash

import (
	"bytes"
	"image"
	"io"
	"strings"

	"github.com/bep/imagemeta"
)

// ImageMetadata holds the rights-related EXIF, IPTC, XMP and Dublin Core
// fields of an image.
type ImageMetadata struct {
	EXIFCopyright   string
	EXIFArtist      string
	IPTCCopyright   string
	IPTCCredit      string
	IPTCSource      string
	IPTCByline      string
	XMPLicense      string
	XMPWebStatement string
	XMPUsageTerms   string
	XMPMarked       bool // xmpRights:Marked
	DCRights        string
	DCCreator       string
}

// Copyright returns the first copyright statement found, preferring EXIF.
func (m *ImageMetadata) Copyright() string {
	if m == nil {
		return ""
	}
	for _, s := range []string{m.EXIFCopyright, m.IPTCCopyright, m.DCRights} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (m *ImageMetadata) rightsFields() []string {
	return []string{
		m.EXIFCopyright,
		m.EXIFArtist,
		m.IPTCCopyright,
		m.IPTCCredit,
		m.IPTCSource,
		m.IPTCByline,
		m.DCRights,
		m.DCCreator,
	}
}

func (m *ImageMetadata) licenseFields() []string {
	return []string{
		m.XMPLicense,
		m.XMPWebStatement,
		m.XMPUsageTerms,
		m.DCRights,
	}
}

// stockMetadataKeywords identify a stock agency when found (case-insensitive)
// in a rights field.
var stockMetadataKeywords = []string{
	"shutterstock",
	"gettyimages",
	"getty images",
	"istockphoto",
	"istock",
	"alamy",
	"depositphotos",
	"dreamstime",
	"123rf",
	"adobestock",
	"adobe stock",
	"bigstockphoto",
	"stocksy",
	"pond5",
	"masterfile",
	"superstock",
	"agefotostock",
	"age fotostock",
	"colourbox",
	"yayimages",
	"vectorstock",
	"freepik",
	"canstockphoto",
}

// IsStockByMetadata reports whether a rights field names a stock agency.
func IsStockByMetadata(meta *ImageMetadata) bool {
	return stockField(meta) != ""
}

func stockField(meta *ImageMetadata) string {
	if meta == nil {
		return ""
	}
	for _, f := range meta.rightsFields() {
		lower := strings.ToLower(f)
		for _, kw := range stockMetadataKeywords {
			if lower != "" && strings.Contains(lower, kw) {
				return f
			}
		}
	}
	return ""
}

// IsCCByMetadata reports whether a license field carries a Creative Commons
// license URL, possibly inside free text.
func IsCCByMetadata(meta *ImageMetadata) bool {
	return ccField(meta) != ""
}

func ccField(meta *ImageMetadata) string {
	if meta == nil {
		return ""
	}
	for _, f := range meta.licenseFields() {
		if IsCCLicenseURL(f) {
			return f
		}
	}
	return ""
}

// metadataSetters assigns the string value of each wanted tag, per source.
var metadataSetters = map[imagemeta.Source]map[string]func(*ImageMetadata, string){
	imagemeta.EXIF: {
		"Copyright": func(m *ImageMetadata, s string) { m.EXIFCopyright = s },
		"Artist":    func(m *ImageMetadata, s string) { m.EXIFArtist = s },
	},
	imagemeta.IPTC: {
		"CopyrightNotice": func(m *ImageMetadata, s string) { m.IPTCCopyright = s },
		"Credit":          func(m *ImageMetadata, s string) { m.IPTCCredit = s },
		"Byline":          func(m *ImageMetadata, s string) { m.IPTCByline = s },
		"Source":          func(m *ImageMetadata, s string) { m.IPTCSource = s },
	},
	imagemeta.XMP: {
		"WebStatement": func(m *ImageMetadata, s string) { m.XMPWebStatement = s },
		"UsageTerms":   func(m *ImageMetadata, s string) { m.XMPUsageTerms = s },
		"License":      func(m *ImageMetadata, s string) { m.XMPLicense = s },
		"Rights":       func(m *ImageMetadata, s string) { m.DCRights = s },
		"Creator":      func(m *ImageMetadata, s string) { m.DCCreator = s },
	},
}

func wantTag(ti imagemeta.TagInfo) bool {
	if ti.Source == imagemeta.XMP && ti.Tag == "Marked" {
		return true
	}
	_, ok := metadataSetters[ti.Source][ti.Tag]
	return ok
}

// metadataFormats maps image.DecodeConfig format names to the containers
// imagemeta can read.
var metadataFormats = map[string]imagemeta.ImageFormat{
	"jpeg": imagemeta.JPEG,
	"png":  imagemeta.PNG,
	"tiff": imagemeta.TIFF,
	"webp": imagemeta.WebP,
}

// DecodeImageMetadata reads the rights fields from an encoded image of the
// given image.DecodeConfig format. It returns nil metadata and nil error when
// the image carries none of them or the format holds no metadata.
func DecodeImageMetadata(r io.ReadSeeker, format string) (*ImageMetadata, error) {
	imageFormat, ok := metadataFormats[format]
	if !ok {
		return nil, nil
	}
	meta := &ImageMetadata{}
	found := false

	_, err := imagemeta.Decode(imagemeta.Options{
		R:               r,
		ImageFormat:     imageFormat,
		Sources:         imagemeta.EXIF | imagemeta.IPTC | imagemeta.XMP,
		ShouldHandleTag: wantTag,
		HandleTag: func(ti imagemeta.TagInfo) error {
			if ti.Source == imagemeta.XMP && ti.Tag == "Marked" {
				if b, ok := ti.Value.(bool); ok {
					meta.XMPMarked = b
					found = true
				}
				return nil
			}
			if s := tagValueString(ti.Value); s != "" {
				metadataSetters[ti.Source][ti.Tag](meta, s)
				found = true
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return meta, nil
}

// ExtractImageMetadata is DecodeImageMetadata over raw bytes that treats
// every failure as absent metadata.
func ExtractImageMetadata(data []byte) *ImageMetadata {
	if len(data) == 0 {
		return nil
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	meta, err := DecodeImageMetadata(bytes.NewReader(data), format)
	if err != nil {
		return nil
	}
	return meta
}

// tagValueString extracts a string from a tag value.
// XMP values may be string or []string (from altList/seqList).
func tagValueString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []byte:
		return strings.TrimSpace(string(bytes.TrimRight(val, "\x00")))
	case []string:
		if len(val) > 0 {
			return strings.TrimSpace(val[0])
		}
	case []any:
		if len(val) > 0 {
			if s, ok := val[0].(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
