// Package history keeps the observed account's normalized transactions,
// newest first.
package history

import (
	"github.com/mtlprog/trustview/internal/domain"
)

// Log is an ordered record sequence. Records are stored oldest first and
// reversed on read, so prepending stays O(1).
type Log struct {
	records []domain.Record
	seen    map[string]struct{}
	dedup   bool
	limit   int
}

// New creates a log. With dedup, a record whose hash was already logged is
// rejected; records without a hash are always kept. limit caps the number of
// records (oldest dropped); 0 means unbounded.
func New(dedup bool, limit int) *Log {
	return &Log{
		seen:  make(map[string]struct{}),
		dedup: dedup,
		limit: max(limit, 0),
	}
}

// Prepend places rec at the head of the log. It reports false when the
// record was rejected as a duplicate.
func (l *Log) Prepend(rec domain.Record) bool {
	if l.dedup && rec.Hash != "" {
		if _, ok := l.seen[rec.Hash]; ok {
			return false
		}
		l.seen[rec.Hash] = struct{}{}
	}

	l.records = append(l.records, rec)
	if l.limit > 0 && len(l.records) > l.limit {
		drop := len(l.records) - l.limit
		for _, old := range l.records[:drop] {
			delete(l.seen, old.Hash)
		}
		l.records = append(l.records[:0:0], l.records[drop:]...)
	}
	return true
}

// Contains reports whether a record with this hash is logged.
func (l *Log) Contains(hash string) bool {
	if hash == "" {
		return false
	}
	if l.dedup {
		_, ok := l.seen[hash]
		return ok
	}
	for _, r := range l.records {
		if r.Hash == hash {
			return true
		}
	}
	return false
}

// Len returns the number of records.
func (l *Log) Len() int {
	return len(l.records)
}

// Records returns a copy of the log, newest first.
func (l *Log) Records() []domain.Record {
	out := make([]domain.Record, len(l.records))
	for i, r := range l.records {
		out[len(l.records)-1-i] = r
	}
	return out
}
