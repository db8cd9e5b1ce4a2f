package copyhash

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/google/uuid"
)

// Request is the work a ComparisonRecord asks for.
type Request string

const (
	RequestNone        Request = ""
	RequestComputeHash Request = "COMPUTE_HASH"
	RequestCompare     Request = "COMPARE"
)

// legacyComputeHash is the spelling written by older batch files.
const legacyComputeHash = "COMPUTE HASH"

// ParseRequest maps a request cell to its Request.
func ParseRequest(s string) (Request, error) {
	switch s {
	case string(RequestNone), string(RequestComputeHash), string(RequestCompare):
		return Request(s), nil
	case legacyComputeHash:
		return RequestComputeHash, nil
	default:
		return "", newError(ErrValidation, "unknown request %q", s)
	}
}

// Status is the workflow state of a ComparisonRecord.
type Status string

const (
	StatusNone           Status = ""
	StatusNotStarted     Status = "not started"
	StatusProcessing     Status = "processing"
	StatusSuccess        Status = "success"
	StatusError          Status = "error"
	StatusUnhandledError Status = "unhandled error"
)

// Terminal reports whether s ends a record's run.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError || s == StatusUnhandledError
}

// ParseStatus maps a status cell to its Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusNone, StatusNotStarted, StatusProcessing, StatusSuccess, StatusError, StatusUnhandledError:
		return st, nil
	default:
		return "", newError(ErrValidation, "unknown status %q", s)
	}
}

// RecordFields is the exact header of a comparison batch table.
var RecordFields = []string{
	"id", "request", "asset_path", "hash", "copyright_comparisons",
	"status", "message", "traceback", "object_dump",
}

// ComparisonRecord is one candidate image moving through the workflow.
type ComparisonRecord struct {
	ID                   string
	Request              Request
	AssetPath            string
	Hash                 string // serialized CompositeHash, empty until computed
	CopyrightComparisons string // serialized HashComparisonResult
	Status               Status
	Message              string
	Traceback            string
	ObjectDump           string // raw row, set only when the row could not be parsed
}

// NewComparisonRecord returns a fresh record for path with a generated id.
func NewComparisonRecord(path string, req Request) ComparisonRecord {
	return ComparisonRecord{
		ID:        uuid.NewString(),
		Request:   req,
		AssetPath: path,
		Status:    StatusNotStarted,
	}
}

// Comparisons parses CopyrightComparisons.
func (r ComparisonRecord) Comparisons() (HashComparisonResult, error) {
	return ParseComparisons(r.CopyrightComparisons)
}

func (r ComparisonRecord) row() []string {
	return []string{
		r.ID, string(r.Request), r.AssetPath, r.Hash, r.CopyrightComparisons,
		string(r.Status), r.Message, r.Traceback, r.ObjectDump,
	}
}

// RecordParseResult is the outcome of parsing one batch row: either Record,
// or Err together with the raw cells.
type RecordParseResult struct {
	Record ComparisonRecord
	Err    error
	Raw    map[string]string
}

// OK reports whether the row parsed.
func (p RecordParseResult) OK() bool {
	return p.Err == nil
}

// Fallback returns the parsed record, or an error record describing the
// parse failure when there is none.
func (p RecordParseResult) Fallback() ComparisonRecord {
	if p.OK() {
		return p.Record
	}
	id := p.Raw["id"]
	if id == "" {
		id = "<unknown>"
	}
	dump, err := json.Marshal(p.Raw)
	if err != nil {
		dump = fmt.Appendf(nil, "%v", p.Raw)
	}
	return ComparisonRecord{
		ID:         id,
		Status:     StatusError,
		Message:    "parse comparison record: " + p.Err.Error(),
		Traceback:  Traceback(p.Err),
		ObjectDump: string(dump),
	}
}

// ParseRecord validates a batch row keyed by RecordFields, for composite
// hashes of n elements. The legacy request spelling is normalized; every
// other field is carried verbatim.
func ParseRecord(raw map[string]string, n int) RecordParseResult {
	fail := func(err error) RecordParseResult {
		return RecordParseResult{Err: err, Raw: raw}
	}

	id := raw["id"]
	req, err := ParseRequest(raw["request"])
	if err != nil {
		return fail(err)
	}
	status, err := ParseStatus(raw["status"])
	if err != nil {
		return fail(err)
	}
	path := raw["asset_path"]
	if path == "" {
		return fail(newError(ErrValidation, "asset path is empty for image with id %q", id))
	}
	hash := raw["hash"]
	if hash != "" {
		if err := checkSeparators("hash", hash, n); err != nil {
			return fail(err)
		}
	}

	return RecordParseResult{
		Record: ComparisonRecord{
			ID:                   id,
			Request:              req,
			AssetPath:            path,
			Hash:                 hash,
			CopyrightComparisons: raw["copyright_comparisons"],
			Status:               status,
			Message:              raw["message"],
			Traceback:            raw["traceback"],
			ObjectDump:           raw["object_dump"],
		},
		Raw: raw,
	}
}

// Reset returns the record's inputs as a fresh "not started" record.
func (r ComparisonRecord) Reset() ComparisonRecord {
	return ComparisonRecord{
		ID:        r.ID,
		Request:   r.Request,
		AssetPath: r.AssetPath,
		Hash:      r.Hash,
		Status:    StatusNotStarted,
	}
}

// RecordSource reads a comparison batch one row at a time.
type RecordSource struct {
	rows   rowReader
	header []string
	n      int
	count  int
	err    error
	used   bool
	reset  bool
}

// LoadRecords reads a CSV comparison batch for composite hashes of n
// elements as workflow input: every well-formed record starts over as
// "not started" with its outputs cleared. Only the header is read here;
// rows are parsed as All is iterated, so the row count is only known from
// RecordSource.Count once All has been exhausted.
func LoadRecords(r io.Reader, n int) (*RecordSource, error) {
	return newRecordSource(newCSVRows(r, nil), n, true)
}

// OpenRecords is LoadRecords for a .csv or .xlsx file. The caller must Close it.
func OpenRecords(path string, n int) (*RecordSource, error) {
	return openRecordSource(path, n, true)
}

// OpenResults opens a finished batch and yields its records as written,
// outputs included. The caller must Close it.
func OpenResults(path string, n int) (*RecordSource, error) {
	return openRecordSource(path, n, false)
}

func openRecordSource(path string, n int, reset bool) (*RecordSource, error) {
	rows, err := openTable(path)
	if err != nil {
		return nil, err
	}
	src, err := newRecordSource(rows, n, reset)
	if err != nil {
		rows.Close()
		return nil, err
	}
	return src, nil
}

func newRecordSource(rows rowReader, n int, reset bool) (*RecordSource, error) {
	header, err := readHeader(rows, RecordFields)
	if err != nil {
		return nil, err
	}
	return &RecordSource{rows: rows, header: header, n: n, reset: reset}, nil
}

// All yields one record per data row. A row that fails to parse is yielded
// as an error record. All can be ranged over once.
func (s *RecordSource) All() iter.Seq[ComparisonRecord] {
	return func(yield func(ComparisonRecord) bool) {
		if s.used {
			return
		}
		s.used = true

		for {
			cells, err := s.rows.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			s.count++

			var rec ComparisonRecord
			var parseErr *csv.ParseError
			switch {
			case errors.As(err, &parseErr):
				rec = RecordParseResult{
					Err: wrapError(ErrValidation, fmt.Sprintf("row %d", s.count), err),
					Raw: map[string]string{"line": fmt.Sprint(parseErr.Line)},
				}.Fallback()
			case err != nil:
				s.err = err
				slog.Warn("copyhash: record source stopped", "rows", s.count, "error", err)
				return
			default:
				rec = s.parse(cells)
			}

			if !yield(rec) {
				return
			}
		}
	}
}

func (s *RecordSource) parse(cells []string) ComparisonRecord {
	raw, err := rowMap(s.header, cells)
	if err != nil {
		return RecordParseResult{Err: err, Raw: raw}.Fallback()
	}
	res := ParseRecord(raw, s.n)
	if res.OK() && s.reset {
		return res.Record.Reset()
	}
	return res.Fallback()
}

// Count is the number of data rows read so far; the total once All is exhausted.
func (s *RecordSource) Count() int {
	return s.count
}

// Err returns the read error that ended iteration early, if any.
func (s *RecordSource) Err() error {
	return s.err
}

// Close releases the underlying file.
func (s *RecordSource) Close() error {
	return s.rows.Close()
}

// SaveRecords writes records as CSV with the RecordFields header.
func SaveRecords(w io.Writer, records []ComparisonRecord) error {
	if len(records) == 0 {
		return newError(ErrEmptyInput, "no comparison records")
	}
	return writeTable(&csvWriter{w: csv.NewWriter(w)}, RecordFields, recordRows(records))
}

// SaveRecordsFile writes records to a .csv or .xlsx file. Nothing is created
// when records is empty.
func SaveRecordsFile(path string, records []ComparisonRecord) error {
	w, err := NewRecordWriter(path)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			return errors.Join(err, w.Close())
		}
	}
	return w.Close()
}

// RecordWriter writes a comparison batch one record at a time. The file is
// created with its header on the first Write, so a writer that never
// receives a record leaves nothing behind. CSV rows are flushed as they
// are written and a partially written batch stays readable; an .xlsx
// workbook is saved by Close.
type RecordWriter struct {
	path  string
	w     rowWriter
	count int
	err   error
}

// NewRecordWriter returns a writer for the .csv or .xlsx file at path.
func NewRecordWriter(path string) (*RecordWriter, error) {
	if err := checkTableExt(path); err != nil {
		return nil, err
	}
	return &RecordWriter{path: path}, nil
}

// Write appends rec. After a failed write every further call fails the same way.
func (rw *RecordWriter) Write(rec ComparisonRecord) error {
	if rw.err != nil {
		return rw.err
	}
	if rw.w == nil {
		w, err := createTable(rw.path)
		if err != nil {
			rw.err = err
			return err
		}
		rw.w = w
		rw.err = w.Write(RecordFields)
	}
	if rw.err == nil {
		rw.err = rw.w.Write(rec.row())
	}
	if rw.err == nil {
		rw.err = rw.w.Flush()
	}
	if rw.err != nil {
		rw.err = fmt.Errorf("save records to %s: %w", rw.path, rw.err)
		return rw.err
	}
	rw.count++
	return nil
}

// Count is the number of records written.
func (rw *RecordWriter) Count() int {
	return rw.count
}

// Close finishes the file. It fails with ErrEmptyInput when nothing was
// written; closing twice is a no-op.
func (rw *RecordWriter) Close() error {
	if rw.w == nil {
		if rw.err != nil || rw.count > 0 {
			return rw.err
		}
		return newError(ErrEmptyInput, "no comparison records for %s", rw.path)
	}
	w := rw.w
	rw.w = nil
	if err := w.Close(); err != nil {
		return fmt.Errorf("save records to %s: %w", rw.path, err)
	}
	slog.Debug("copyhash: records saved", "path", rw.path, "records", rw.count)
	return nil
}

func recordRows(records []ComparisonRecord) [][]string {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = r.row()
	}
	return rows
}
