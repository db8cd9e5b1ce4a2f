package copyhash

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ReportStatus is the outcome of one check in an image report.
type ReportStatus string

const (
	ReportNone     ReportStatus = ""
	ReportOK       ReportStatus = "ok"
	ReportNotFound ReportStatus = "not_found"
	ReportError    ReportStatus = "error"
)

// ExifReport is the result of looking for an EXIF copyright statement.
type ExifReport struct {
	Copyright    string
	Status       ReportStatus
	ErrorMessage string
	ErrorContext string
}

// CheckCopyright reads the EXIF copyright of the image at path.
func CheckCopyright(path string) ExifReport {
	report, _ := inspectImage(path)
	return report
}

func inspectImage(path string) (ExifReport, *ImageMetadata) {
	fail := func(err error) (ExifReport, *ImageMetadata) {
		return ExifReport{
			Status:       ReportError,
			ErrorMessage: err.Error(),
			ErrorContext: fmt.Sprintf("processing image %q: %s", path, Traceback(err)),
		}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fail(wrapError(ErrDecode, "open "+path, err))
	}
	defer f.Close()

	_, format, err := image.DecodeConfig(bufio.NewReader(f))
	if err != nil {
		return fail(wrapError(ErrDecode, "decode "+path, err))
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fail(wrapError(ErrDecode, "rewind "+path, err))
	}
	meta, err := DecodeImageMetadata(f, format)
	if err != nil {
		return fail(wrapError(ErrDecode, "read metadata of "+path, err))
	}

	if meta == nil || meta.EXIFCopyright == "" {
		return ExifReport{
			Status:       ReportNotFound,
			ErrorMessage: "no copyright information found",
		}, meta
	}
	return ExifReport{Copyright: meta.EXIFCopyright, Status: ReportOK}, meta
}

// ImageReportFields is the header of an image report table.
var ImageReportFields = []string{
	"image_name", "image_path", "exif_status", "exif_copyright",
	"exif_error_message", "exif_error_context", "license",
	"status", "error_message", "error_context",
}

// ImageReport aggregates every check run on one image.
type ImageReport struct {
	ImageName string
	ImagePath string
	Exif      ExifReport
	License   ImageLicense // metadata-only assessment

	Status       ReportStatus
	ErrorMessage string
	ErrorContext string
}

func (r ImageReport) row() []string {
	return []string{
		r.ImageName, r.ImagePath, string(r.Exif.Status), r.Exif.Copyright,
		r.Exif.ErrorMessage, r.Exif.ErrorContext, r.License.String(),
		string(r.Status), r.ErrorMessage, r.ErrorContext,
	}
}

// CheckImage runs the copyright and license checks on the image at path.
// A path that is not a regular file yields a report with status "error".
func CheckImage(path string) ImageReport {
	info, err := os.Stat(path)
	if err == nil && !info.Mode().IsRegular() {
		err = fmt.Errorf("%s is not a regular file", path)
	}
	if err != nil {
		err = wrapError(ErrDecode, "check image", err)
		return ImageReport{
			ImagePath:    path,
			License:      LicenseUnknown,
			Status:       ReportError,
			ErrorMessage: err.Error(),
			ErrorContext: fmt.Sprintf("processing image %q: %s", path, Traceback(err)),
		}
	}

	exif, meta := inspectImage(path)
	return ImageReport{
		ImageName: filepath.Base(path),
		ImagePath: path,
		Exif:      exif,
		License:   AssessLicense(meta, "").License,
		Status:    ReportOK,
	}
}

// CheckImages runs CheckImage on every path, in order.
func CheckImages(paths []string) []ImageReport {
	reports := make([]ImageReport, len(paths))
	for i, p := range paths {
		reports[i] = CheckImage(p)
	}
	return reports
}

// ReadPathList reads one path per line, skipping blank lines.
func ReadPathList(r io.Reader) ([]string, error) {
	var paths []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if p := strings.TrimSpace(sc.Text()); p != "" {
			paths = append(paths, p)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read path list: %w", err)
	}
	return paths, nil
}

// WriteImageReports writes reports as CSV with the ImageReportFields header.
func WriteImageReports(w io.Writer, reports []ImageReport) error {
	if len(reports) == 0 {
		return newError(ErrEmptyInput, "no image reports")
	}
	return writeTable(&csvWriter{w: csv.NewWriter(w)}, ImageReportFields, imageReportRows(reports))
}

// WriteImageReportsFile writes reports to a .csv or .xlsx file.
func WriteImageReportsFile(path string, reports []ImageReport) error {
	if len(reports) == 0 {
		return newError(ErrEmptyInput, "no image reports for %s", path)
	}
	w, err := createTable(path)
	if err != nil {
		return err
	}
	return writeTable(w, ImageReportFields, imageReportRows(reports))
}

func imageReportRows(reports []ImageReport) [][]string {
	rows := make([][]string, len(reports))
	for i, r := range reports {
		rows[i] = r.row()
	}
	return rows
}
