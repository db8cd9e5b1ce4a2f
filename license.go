package copyhash

import (
	"net/url"
	"strings"
)

// ImageLicense classifies where an image comes from by copyright risk.
type ImageLicense int

const (
	LicenseSafe    ImageLicense = iota // free or CC source
	LicenseUnknown                     // no evidence either way
	LicenseBlocked                     // stock agency that enforces copyright
)

func (l ImageLicense) String() string {
	switch l {
	case LicenseSafe:
		return "safe"
	case LicenseBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// BlockedDomains are stock agencies, matched as host substrings.
var BlockedDomains = []string{
	"shutterstock",
	"gettyimages",
	"istockphoto",
	"adobestock",
	"depositphotos",
	"dreamstime",
	"123rf",
	"alamy",
	"bigstockphoto",
	"stocksy",
	"pond5",
	"thinkstockphotos",
	"canstockphoto",
	"masterfile",
	"superstock",
	"agefotostock",
	"colourbox",
	"vectorstock",
	"freepik",
}

// BlockedURLPatterns are path fragments of stock photo pages on any host.
var BlockedURLPatterns = []string{
	"/stock-photo",
	"/stock-image",
	"/editorial-image",
	"/premium-photo",
}

// SafeDomains are free and CC image sources.
var SafeDomains = []string{
	"unsplash",
	"pexels",
	"pixabay",
	"wikimedia",
	"flickr",
	"rawpixel",
	"stocksnap",
	"burst.shopify",
}

// CheckLicense classifies rawURL against the blocked and safe lists.
// Blocked wins over safe; anything unmatched, unparsable or empty is unknown.
func CheckLicense(rawURL string) ImageLicense {
	return CheckLicenseWith(rawURL, nil, nil)
}

// CheckLicenseWith is CheckLicense with additional blocked and safe host
// substrings.
func CheckLicenseWith(rawURL string, extraBlocked, extraSafe []string) ImageLicense {
	if rawURL == "" {
		return LicenseUnknown
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return LicenseUnknown
	}
	host := strings.ToLower(parsed.Host)
	path := strings.ToLower(parsed.Path)

	if hostMatches(host, BlockedDomains, extraBlocked) {
		return LicenseBlocked
	}
	for _, p := range BlockedURLPatterns {
		if strings.Contains(path, p) {
			return LicenseBlocked
		}
	}
	if hostMatches(host, SafeDomains, extraSafe) {
		return LicenseSafe
	}
	return LicenseUnknown
}

func hostMatches(host string, lists ...[]string) bool {
	if host == "" {
		return false
	}
	for _, list := range lists {
		for _, d := range list {
			if strings.Contains(host, d) {
				return true
			}
		}
	}
	return false
}
