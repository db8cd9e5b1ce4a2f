package copyhash

import "testing"

func TestCheckLicense(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
		want ImageLicense
	}{
		{"shutterstock host", "https://www.shutterstock.com/image-photo/cat-123", LicenseBlocked},
		{"getty CDN", "https://media.gettyimages.com/id/1/photo.jpg", LicenseBlocked},
		{"uppercase host", "https://WWW.ALAMY.COM/stock-image-x.html", LicenseBlocked},
		{"stock path on unknown host", "https://cdn.example.com/stock-photo/cat.jpg", LicenseBlocked},
		{"premium path", "https://images.example.org/premium-photo/dog.jpg", LicenseBlocked},
		{"unsplash", "https://unsplash.com/photos/abc", LicenseSafe},
		{"wikimedia commons", "https://upload.wikimedia.org/wikipedia/commons/a/ab/X.jpg", LicenseSafe},
		{"flickr static", "https://live.staticflickr.com/65535/1.jpg", LicenseSafe},
		{"blocked path wins over safe host", "https://pixabay.com/stock-photo/cat", LicenseBlocked},
		{"personal site", "https://janedoe.example/portfolio/1.jpg", LicenseUnknown},
		{"empty", "", LicenseUnknown},
		{"relative path", "images/cat.jpg", LicenseUnknown},
		{"unparsable", "http://[::1", LicenseUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := CheckLicense(tc.url); got != tc.want {
				t.Errorf("CheckLicense(%q) = %v, want %v", tc.url, got, tc.want)
			}
		})
	}
}

func TestCheckLicenseWith(t *testing.T) {
	t.Parallel()

	const archive = "https://archive.philosophie.example/images/1.jpg"
	if got := CheckLicense(archive); got != LicenseUnknown {
		t.Fatalf("CheckLicense(%q) = %v, want unknown", archive, got)
	}
	if got := CheckLicenseWith(archive, nil, []string{"philosophie"}); got != LicenseSafe {
		t.Errorf("extra safe: got %v, want safe", got)
	}
	if got := CheckLicenseWith(archive, []string{"archive."}, []string{"philosophie"}); got != LicenseBlocked {
		t.Errorf("extra blocked and safe: got %v, want blocked", got)
	}
}

func TestImageLicenseString(t *testing.T) {
	t.Parallel()

	for l, want := range map[ImageLicense]string{
		LicenseSafe:      "safe",
		LicenseUnknown:   "unknown",
		LicenseBlocked:   "blocked",
		ImageLicense(42): "unknown",
	} {
		if got := l.String(); got != want {
			t.Errorf("ImageLicense(%d).String() = %q, want %q", int(l), got, want)
		}
	}
}

func TestKnownImageProvenance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		link string
		want ImageLicense
	}{
		{"https://www.istockphoto.com/photo/x-123", LicenseBlocked},
		{"https://www.pexels.com/photo/456/", LicenseSafe},
		{"", LicenseUnknown},
	}
	for _, tc := range tests {
		img := KnownImage{ID: "k", Hash: "00", Link: tc.link}
		if got := img.Provenance(); got != tc.want {
			t.Errorf("Provenance(%q) = %v, want %v", tc.link, got, tc.want)
		}
	}
}
