// Package chunkstore holds this node's local chunk of every file it has
// received, per spec §3/§4.5: one byte blob per known file name, with
// writes atomic against concurrent reads of the same key.
//
// Bytes are gzip-compressed at rest (github.com/klauspost/compress), the
// way the n-backup sibling in this corpus compresses archives before
// writing them out; compression/decompression is fully internal to Put/Get
// so it has no effect on the byte-for-byte push/pull contract (spec §8
// property 2).
package chunkstore

import (
	"bytes"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
)

type entry struct {
	mu   sync.RWMutex
	data []byte // gzip-compressed
}

// Store is a plain key->bytes mapping. A coarse mutex protects the
// directory of per-key entries; each entry then has its own lock so a
// write to key A never blocks a read of key B (spec §4.5).
type Store struct {
	dirMu sync.Mutex
	byKey map[string]*entry
}

func New() *Store {
	return &Store{byKey: make(map[string]*entry)}
}

func (s *Store) entryFor(name string) *entry {
	s.dirMu.Lock()
	defer s.dirMu.Unlock()
	e, ok := s.byKey[name]
	if !ok {
		e = &entry{}
		s.byKey[name] = e
	}
	return e
}

// Put stores bytes under name, atomically with respect to concurrent Get
// calls on the same name: a reader either sees the previous value in
// full, or the new one in full, never a partial write.
func (s *Store) Put(name string, data []byte) error {
	compressed, err := compress(data)
	if err != nil {
		return err
	}
	e := s.entryFor(name)
	e.mu.Lock()
	e.data = compressed
	e.mu.Unlock()
	return nil
}

// Get returns the stored bytes for name, or ok=false if nothing has been
// written under that key on this node (e.g. a respawned node that never
// re-received its chunk — spec §4.4 "chunk loss on respawn").
func (s *Store) Get(name string) (data []byte, ok bool, err error) {
	s.dirMu.Lock()
	e, exists := s.byKey[name]
	s.dirMu.Unlock()
	if !exists {
		return nil, false, nil
	}
	e.mu.RLock()
	compressed := e.data
	e.mu.RUnlock()
	if compressed == nil {
		return nil, false, nil
	}
	data, err = decompress(compressed)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
