// Package catalog owns the Catalog value type — the latency-ordered,
// circular sequence of known-live upstream proxies — and the Loader that
// builds one from a candidate file and an optional validated-cache file.
package catalog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"socksrotate/internal/probe"
	"socksrotate/internal/proxyrecord"
)

// ErrLoadProxies is returned when the candidate file cannot be opened or
// read; it is fatal at startup, unlike per-line parse/probe failures.
var ErrLoadProxies = errors.New("catalog: failed to load candidates")

// Catalog is an ordered, distinct sequence of ProxyRecords sorted
// ascending by latency. It is append-only during Load and read-mostly
// thereafter; Next treats it as a circular queue.
type Catalog struct {
	records []proxyrecord.Record
}

// New wraps an already-sorted slice of records into a Catalog. Callers
// that build a Catalog outside of Load are responsible for sorting.
func New(records []proxyrecord.Record) *Catalog {
	return &Catalog{records: append([]proxyrecord.Record(nil), records...)}
}

// Len reports the number of records currently in the catalog.
func (c *Catalog) Len() int { return len(c.records) }

// Records returns a snapshot copy of the catalog's current order.
func (c *Catalog) Records() []proxyrecord.Record {
	return append([]proxyrecord.Record(nil), c.records...)
}

// Front returns the head of the catalog without rotating it. The second
// return value is false if the catalog is empty.
func (c *Catalog) Front() (proxyrecord.Record, bool) {
	if len(c.records) == 0 {
		return proxyrecord.Record{}, false
	}
	return c.records[0], true
}

// Next implements the rotation policy: remove the head, append it to the
// tail, and return it. This yields round-robin rotation that defers
// recently-used proxies. The second return value is false if the catalog
// is empty.
func (c *Catalog) Next() (proxyrecord.Record, bool) {
	if len(c.records) == 0 {
		return proxyrecord.Record{}, false
	}
	head := c.records[0]
	c.records = append(c.records[1:], head)
	return head, true
}

// Loader reads candidate and cache files and produces a latency-sorted
// Catalog, persisting the validated set back to the cache file.
type Loader struct {
	CandidatesPath string
	CachePath      string
	Target         probe.Target
	// MaxWorkers bounds probe concurrency; zero means
	// runtime.GOMAXPROCS(0).
	MaxWorkers int
}

// Load parses both files (per-line failures
// are logged and skipped, never fatal for the batch), trust cache entries
// without re-probing them, probe the remaining candidates in parallel
// bounded by hardware parallelism, sort ascending by latency, and persist
// the sorted set back to the cache file.
func (l Loader) Load() (*Catalog, error) {
	candidateLines, err := readLines(l.CandidatesPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadProxies, err)
	}

	cacheLines, err := readLines(l.CachePath)
	if err != nil {
		slog.Info("catalog: no usable cache file, starting from candidates only", "path", l.CachePath, "error", err)
		cacheLines = nil
	}

	seen := make(map[string]struct{})
	working := make([]proxyrecord.Record, 0, len(cacheLines))

	for _, line := range cacheLines {
		rec, err := proxyrecord.Parse(line)
		if err != nil {
			slog.Warn("catalog: skipping unparsable cache line", "line", line, "error", err)
			continue
		}
		key := rec.Addr()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		working = append(working, rec)
	}

	var candidates []proxyrecord.Record
	for _, line := range candidateLines {
		rec, err := proxyrecord.Parse(line)
		if err != nil {
			slog.Warn("catalog: skipping unparsable candidate line", "line", line, "error", err)
			continue
		}
		if _, dup := seen[rec.Addr()]; dup {
			continue
		}
		seen[rec.Addr()] = struct{}{}
		candidates = append(candidates, rec)
	}

	probed := probeAll(candidates, l.Target, l.MaxWorkers)
	working = append(working, probed...)

	sort.SliceStable(working, func(i, j int) bool {
		return working[i].Latency < working[j].Latency
	})

	if err := persist(l.CachePath, working); err != nil {
		slog.Warn("catalog: failed to persist validated cache", "path", l.CachePath, "error", err)
	}

	slog.Info("catalog: loaded live proxies", "count", len(working))
	return New(working), nil
}

// probeAll runs the liveness probe over candidates concurrently, bounded
// by a weighted semaphore sized to hardware parallelism. Failed probes are
// logged and dropped.
func probeAll(candidates []proxyrecord.Record, tgt probe.Target, maxWorkers int) []proxyrecord.Record {
	if len(candidates) == 0 {
		return nil
	}
	if maxWorkers <= 0 {
		maxWorkers = runtime.GOMAXPROCS(0)
	}

	sem := semaphore.NewWeighted(int64(maxWorkers))
	var mu sync.Mutex
	var wg sync.WaitGroup
	var live []proxyrecord.Record

	for _, rec := range candidates {
		if err := sem.Acquire(context.Background(), 1); err != nil {
			slog.Error("catalog: semaphore acquire failed", "error", err)
			continue
		}
		wg.Add(1)
		go func(rec proxyrecord.Record) {
			defer wg.Done()
			defer sem.Release(1)

			checked, err := probe.Run(rec, tgt)
			if err != nil {
				slog.Warn("catalog: probe failed, dropping candidate", "proxy", rec.String(), "error", err)
				return
			}
			slog.Info("catalog: proxy live", "proxy", checked.String(), "latency", checked.Latency)

			mu.Lock()
			live = append(live, checked)
			mu.Unlock()
		}(rec)
	}

	wg.Wait()
	return live
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

func persist(path string, records []proxyrecord.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, rec := range records {
		if _, err := fmt.Fprintf(w, "%s\n", rec.String()); err != nil {
			return err
		}
	}
	return w.Flush()
}
