package copyhash

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Matcher advances comparison records through the workflow against one catalog.
// It is safe for concurrent use; the catalog is only read.
type Matcher struct {
	cfg     Config
	codec   *Codec
	engine  *Engine
	catalog *Catalog
}

// NewMatcher returns a Matcher comparing against catalog.
func NewMatcher(cfg Config, catalog *Catalog) *Matcher {
	cfg.defaults()
	codec := NewCodec(cfg.Algorithms...)
	return &Matcher{
		cfg:     cfg,
		codec:   codec,
		engine:  NewEngine(codec.Len()),
		catalog: catalog,
	}
}

// Codec returns the codec the matcher hashes with.
func (m *Matcher) Codec() *Codec { return m.codec }

// Engine returns the distance engine the matcher compares with.
func (m *Matcher) Engine() *Engine { return m.engine }

// panicError carries a recovered panic and the stack where it happened.
type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

// Process runs rec to a terminal status and returns the updated record.
// Records that are already terminal come back unchanged. Process never
// panics and never drops a record.
func (m *Matcher) Process(ctx context.Context, rec ComparisonRecord) ComparisonRecord {
	if rec.Status.Terminal() {
		m.emit(rec, 0, nil)
		return rec
	}

	start := time.Now()
	rec.Status = StatusProcessing
	err := m.advanceSafe(ctx, &rec)
	settle(&rec, err)
	m.emit(rec, time.Since(start), err)
	return rec
}

func (m *Matcher) advanceSafe(ctx context.Context, rec *ComparisonRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if m.cfg.OnPanic != nil {
				m.cfg.OnPanic("processRecord", r)
			}
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()
	return m.advance(ctx, rec)
}

func (m *Matcher) advance(ctx context.Context, rec *ComparisonRecord) error {
	switch rec.Request {
	case RequestNone:
		rec.Message = "no request"
		return nil

	case RequestComputeHash:
		h, err := m.hashFor(ctx, rec.AssetPath)
		if err != nil {
			return err
		}
		rec.Hash = h.String()
		rec.Message = "hash computed"
		return nil

	case RequestCompare:
		h, err := m.candidateHash(ctx, rec)
		if err != nil {
			return err
		}
		result, err := m.engine.CategorizeAgainstCatalog(h, m.catalog, m.cfg.IdentityThreshold, m.cfg.SimilarityThreshold)
		if err != nil {
			return err
		}
		rec.Message = fmt.Sprintf("compared against %d catalog images: %d identical, %d similar, %d different",
			len(result), result.Count(CategoryIdentical), result.Count(CategorySimilar), result.Count(CategoryDifferent))
		if len(m.cfg.Keep) > 0 {
			result = Filter(result, m.cfg.Keep...)
		}
		rec.CopyrightComparisons = result.String()
		return nil

	default:
		return newError(ErrValidation, "unknown request %q", rec.Request)
	}
}

// candidateHash returns the record's hash, computing it first when the
// policy allows and the record has none.
func (m *Matcher) candidateHash(ctx context.Context, rec *ComparisonRecord) (CompositeHash, error) {
	if rec.Hash != "" {
		return m.codec.Deserialize(rec.Hash)
	}
	if m.cfg.ComparePolicy != CompareComputeMissing {
		return nil, newError(ErrValidation, "record %q has no hash, request %s first", rec.ID, RequestComputeHash)
	}
	h, err := m.hashFor(ctx, rec.AssetPath)
	if err != nil {
		return nil, err
	}
	rec.Hash = h.String()
	return h, nil
}

// hashFor hashes the image at path, going through the hash cache when one
// is configured. Cache misbehavior never fails the record.
func (m *Matcher) hashFor(ctx context.Context, path string) (CompositeHash, error) {
	cache := m.cfg.HashCache
	if cache == nil {
		return m.codec.ComputeFile(path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, wrapError(ErrDecode, "stat "+path, err)
	}
	key := m.codec.cacheKey(path, info)
	if cached, ok := cache.Get(ctx, key); ok {
		if h, err := m.codec.Deserialize(cached); err == nil {
			return h, nil
		}
		slog.Warn("copyhash: ignoring malformed cached hash", "path", path, "hash", cached)
	}

	h, err := m.codec.ComputeFile(path)
	if err != nil {
		return nil, err
	}
	cache.Set(ctx, key, h.String())
	return h, nil
}

// settle moves a processing record to its terminal status.
func settle(rec *ComparisonRecord, err error) {
	if err == nil {
		rec.Status = StatusSuccess
		return
	}

	rec.Message = err.Error()
	rec.Traceback = Traceback(err)

	var pe *panicError
	switch {
	case errors.As(err, &pe):
		rec.Status = StatusUnhandledError
		rec.Traceback = string(pe.stack)
	case IsAnticipated(err):
		rec.Status = StatusError
	default:
		rec.Status = StatusUnhandledError
	}
}

func (m *Matcher) emit(rec ComparisonRecord, d time.Duration, err error) {
	slog.Debug("copyhash: record processed",
		"id", rec.ID, "request", rec.Request, "status", rec.Status, "duration", d)
	if m.cfg.OnRecord != nil {
		m.cfg.OnRecord(RecordEvent{
			ID:       rec.ID,
			Request:  rec.Request,
			Status:   rec.Status,
			Duration: d,
			Err:      err,
		})
	}
}

// Run processes every record and returns one output per input, in input
// order. With Config.Workers > 1 records are processed concurrently.
// When ctx is done no further records are taken from records; the ones
// already taken are returned along with ctx.Err().
func (m *Matcher) Run(ctx context.Context, records iter.Seq[ComparisonRecord]) ([]ComparisonRecord, error) {
	var out []ComparisonRecord
	err := m.Stream(ctx, records, func(rec ComparisonRecord) error {
		out = append(out, rec)
		return nil
	})
	return out, err
}

// Stream processes records like Run but hands each output to sink as soon
// as it and every earlier output are done, so outputs reach sink in input
// order without the batch being held in memory. sink is never called
// concurrently. A sink error stops taking further records and is returned
// once the records in flight have finished.
func (m *Matcher) Stream(ctx context.Context, records iter.Seq[ComparisonRecord], sink func(ComparisonRecord) error) error {
	if m.cfg.Workers <= 1 {
		for rec := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := sink(m.Process(ctx, rec)); err != nil {
				return err
			}
		}
		return nil
	}

	var (
		mu      sync.Mutex
		pending = make(map[int]ComparisonRecord)
		next    int
		sinkErr error
		stopped error
	)
	// deliver parks a finished output and releases the in-order prefix.
	deliver := func(slot int, rec ComparisonRecord) {
		mu.Lock()
		defer mu.Unlock()
		pending[slot] = rec
		for {
			done, ok := pending[next]
			if !ok {
				return
			}
			delete(pending, next)
			next++
			if sinkErr == nil {
				sinkErr = sink(done)
			}
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(m.cfg.Workers)

	slot := 0
	for rec := range records {
		if err := ctx.Err(); err != nil {
			stopped = err
			break
		}
		mu.Lock()
		failed := sinkErr != nil
		mu.Unlock()
		if failed {
			break
		}

		i := slot
		slot++
		g.Go(func() error {
			deliver(i, m.Process(ctx, rec))
			return nil
		})
	}
	_ = g.Wait() // workers never fail; errors live in the records

	if sinkErr != nil {
		return sinkErr
	}
	return stopped
}
