package copyhash

// LicenseSignal is one piece of evidence about an image's license.
type LicenseSignal struct {
	Source  string // "domain", "metadata_stock" or "metadata_cc"
	Detail  string
	License ImageLicense
}

// LicenseAssessment is the verdict combined from all signals.
type LicenseAssessment struct {
	License ImageLicense    // Blocked > Safe > Unknown
	Signals []LicenseSignal // never nil
}

// AssessLicense combines the source URL (may be empty) with the image's
// rights metadata (may be nil). A blocked signal always wins.
func AssessLicense(meta *ImageMetadata, sourceURL string) LicenseAssessment {
	signals := make([]LicenseSignal, 0, 3)

	switch l := CheckLicense(sourceURL); l {
	case LicenseBlocked, LicenseSafe:
		signals = append(signals, LicenseSignal{
			Source:  "domain",
			Detail:  l.String() + " source: " + sourceURL,
			License: l,
		})
	}
	if f := stockField(meta); f != "" {
		signals = append(signals, LicenseSignal{
			Source:  "metadata_stock",
			Detail:  "stock agency in metadata: " + f,
			License: LicenseBlocked,
		})
	}
	if f := ccField(meta); f != "" {
		signals = append(signals, LicenseSignal{
			Source:  "metadata_cc",
			Detail:  "Creative Commons license in metadata: " + f,
			License: LicenseSafe,
		})
	}

	final := LicenseUnknown
	for _, sig := range signals {
		if sig.License == LicenseBlocked {
			final = LicenseBlocked
			break
		}
		if sig.License == LicenseSafe {
			final = LicenseSafe
		}
	}
	return LicenseAssessment{License: final, Signals: signals}
}
