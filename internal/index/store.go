// Package index implements the vector index and its metadata sidecar: an
// exact inner-product index persisted as a binary vector file next to a JSON
// metadata file mapping chunk ids to text and provenance.
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/solenko/tutord/internal/domain"
)

const (
	vectorFile = "index.bin"
	metaFile   = "meta.json"
)

// Chunk is one indexed slice of a document. Chunks are immutable once
// appended and are owned exclusively by the store.
type Chunk struct {
	ID       int64  `json:"-"`
	Text     string `json:"text"`
	Source   string `json:"source"`
	Filename string `json:"file"`
}

// Pending is a chunk awaiting an id, paired with its embedding.
type Pending struct {
	Text     string
	Source   string
	Filename string
	Vector   []float32
}

// metaSnapshot is the on-disk metadata shape. Integer map keys marshal as
// JSON strings.
type metaSnapshot struct {
	NextID int64           `json:"next_id"`
	Items  map[int64]Chunk `json:"items"`
}

// Store couples the vector index with its metadata sidecar under a single
// lock: the two are always mutated and persisted together. Queries share the
// read lock; every mutate-and-save cycle holds the write lock, so a reader
// never observes an id present in one structure and absent from the other.
type Store struct {
	mu     sync.RWMutex
	dir    string
	flat   *Flat
	nextID int64
	items  map[int64]Chunk
}

// Open loads the store from dir, creating empty state (next_id = 1, no
// items) when no files exist yet. A file that exists but cannot be parsed,
// whose vector dimension differs from dim, or whose index ids are missing
// from the metadata is a hard corrupt-state failure.
func Open(dir string, dim int) (*Store, error) {
	if dim <= 0 {
		return nil, domain.Newf(domain.CodeInvalidConfiguration, "embedding dimension must be positive, got %d", dim)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	s := &Store{
		dir:    dir,
		flat:   NewFlat(dim),
		nextID: 1,
		items:  make(map[int64]Chunk),
	}

	if err := s.loadMeta(); err != nil {
		return nil, err
	}
	if err := s.loadVectors(); err != nil {
		return nil, err
	}

	// Every indexed id must resolve to a metadata item.
	for _, id := range s.flat.ids {
		if _, ok := s.items[id]; !ok {
			return nil, domain.Newf(domain.CodeCorruptState, "index references id %d absent from metadata", id)
		}
	}
	return s, nil
}

func (s *Store) loadMeta() error {
	data, err := os.ReadFile(filepath.Join(s.dir, metaFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading metadata: %w", err)
	}

	var snap metaSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.Wrap(domain.CodeCorruptState, "metadata file is not valid JSON", err)
	}
	if snap.NextID < 1 {
		return domain.Newf(domain.CodeCorruptState, "metadata next_id %d is not positive", snap.NextID)
	}
	for id := range snap.Items {
		if id >= snap.NextID {
			return domain.Newf(domain.CodeCorruptState, "metadata item id %d is not below next_id %d", id, snap.NextID)
		}
	}
	s.nextID = snap.NextID
	if snap.Items != nil {
		s.items = snap.Items
	}
	for id, c := range s.items {
		c.ID = id
		s.items[id] = c
	}
	return nil
}

func (s *Store) loadVectors() error {
	f, err := os.Open(filepath.Join(s.dir, vectorFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading vector file: %w", err)
	}
	defer f.Close()

	flat, err := readVectors(f, s.flat.dim)
	if err != nil {
		return err
	}
	s.flat = flat
	return nil
}

// save writes the metadata sidecar first, then the vector file, each via a
// temp file and rename. A crash between the two renames leaves extra
// metadata items with no vectors, which Open tolerates; the reverse (vectors
// without metadata) is what Open rejects, and this ordering never produces it.
func (s *Store) save() error {
	snap := metaSnapshot{NextID: s.nextID, Items: s.items}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.dir, metaFile), data); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}

	vecData, err := encodeVectors(s.flat)
	if err != nil {
		return fmt.Errorf("encoding vectors: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.dir, vectorFile), vecData); err != nil {
		return fmt.Errorf("writing vector file: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Dim returns the configured embedding dimension.
func (s *Store) Dim() int { return s.flat.dim }

// Count returns the number of indexed chunks.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flat.Len()
}

// Search returns the k nearest chunk ids for q, best first. Ties break by
// ascending id; k is clamped to the number of indexed chunks.
func (s *Store) Search(q []float32, k int) []Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flat.Search(q, k)
}

// Resolve looks up the chunk for id.
func (s *Store) Resolve(id int64) (Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.items[id]
	return c, ok
}

// FirstChunk returns the chunk with the lowest id, if any. Used as a seed
// query when generating questions without a prompt.
func (s *Store) FirstChunk() (Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best Chunk
	found := false
	for id, c := range s.items {
		if !found || id < best.ID {
			best = c
			found = true
		}
	}
	return best, found
}

// Append assigns fresh ids to the pending chunks, adds their vectors and
// metadata together, and persists both files. The whole batch is applied or
// none of it: on any failure the in-memory state, including the id counter,
// is rolled back to its pre-call value so ids are never skipped by failed
// attempts. Returns the ids assigned.
func (s *Store) Append(pending []Pending) ([]int64, error) {
	if len(pending) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	startID := s.nextID
	startLen := s.flat.Len()

	rollback := func() {
		s.flat.truncate(startLen)
		for id := startID; id < s.nextID; id++ {
			delete(s.items, id)
		}
		s.nextID = startID
	}

	ids := make([]int64, 0, len(pending))
	for _, p := range pending {
		id := s.nextID
		if err := s.flat.Add(id, p.Vector); err != nil {
			rollback()
			return nil, domain.Wrap(domain.CodeCorruptState, "vector rejected by index", err)
		}
		s.items[id] = Chunk{ID: id, Text: p.Text, Source: p.Source, Filename: p.Filename}
		s.nextID++
		ids = append(ids, id)
	}

	if err := s.save(); err != nil {
		rollback()
		return nil, err
	}
	return ids, nil
}
