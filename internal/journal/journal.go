// Package journal persists live-stream transactions so a projection can be
// rebuilt offline.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vadiminshakov/gowal"

	"github.com/mtlprog/trustview/internal/rippled"
)

const (
	defaultDir    = "./wal"
	segmentLimit  = 1000
	maxSegments   = 100
	txKeyPrefix   = "tx_"
	segmentPrefix = "journal_"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("journal is closed")

// Journal is a write-ahead log of transaction entries for one account.
type Journal struct {
	mu  sync.RWMutex
	wal *gowal.Wal
}

// Open opens (or creates) the journal of account under dir.
func Open(dir, account string) (*Journal, error) {
	if account == "" {
		return nil, errors.New("journal account is required")
	}
	if dir == "" {
		dir = defaultDir
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              filepath.Join(dir, account),
		Prefix:           segmentPrefix,
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening journal for %s: %w", account, err)
	}
	return &Journal{wal: wal}, nil
}

// Append writes entry at the next index.
func (j *Journal) Append(entry rippled.TxEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding journal entry: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.wal == nil {
		return ErrClosed
	}
	if err := j.wal.Write(j.wal.CurrentIndex()+1, txKeyPrefix+entry.Tx.Hash, payload); err != nil {
		return fmt.Errorf("writing journal entry %s: %w", entry.Tx.Hash, err)
	}
	return nil
}

// Entries returns every journaled transaction in write order.
func (j *Journal) Entries() ([]rippled.TxEntry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.wal == nil {
		return nil, ErrClosed
	}
	if j.wal.CurrentIndex() == 0 {
		return nil, nil
	}

	var entries []rippled.TxEntry
	for m := range j.wal.Iterator() {
		if !strings.HasPrefix(m.Key, txKeyPrefix) {
			continue
		}
		var entry rippled.TxEntry
		if err := json.Unmarshal(m.Value, &entry); err != nil {
			return nil, fmt.Errorf("decoding journal entry %s: %w", m.Key, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Len returns the index of the last written entry.
func (j *Journal) Len() uint64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.wal == nil {
		return 0
	}
	return j.wal.CurrentIndex()
}

// Close flushes and closes the log.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.wal == nil {
		return ErrClosed
	}
	err := j.wal.Close()
	j.wal = nil
	return err
}
