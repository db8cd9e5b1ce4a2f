package copyhash

import "strings"

// ccLicensePathSegments identify a Creative Commons license or public-domain
// dedication, as opposed to the CC homepage.
var ccLicensePathSegments = []string{
	"creativecommons.org/licenses/",
	"creativecommons.org/publicdomain/",
}

// IsCCLicenseURL reports whether text contains a Creative Commons license
// URL. Case-insensitive; scheme and surrounding text are ignored.
func IsCCLicenseURL(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, seg := range ccLicensePathSegments {
		if strings.Contains(lower, seg) {
			return true
		}
	}
	return false
}
