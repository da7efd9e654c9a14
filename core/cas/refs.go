package cas

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrRefNotFound is returned when no blob has been linked to a key.
var ErrRefNotFound = errors.New("ref not found")

// Ref maps a lookup key (a source URL) to the blob fetched for it.
type Ref struct {
	Key      string    `json:"key"`
	BLAKE3   string    `json:"blake3"`
	Size     int       `json:"size"`
	StoredAt time.Time `json:"stored_at"`
}

// PutRef stores data and links key to it. It returns the stored ref.
func (s *Store) PutRef(key string, data []byte) (*Ref, error) {
	hash, err := s.Put(data)
	if err != nil {
		return nil, err
	}

	ref := &Ref{Key: key, BLAKE3: hash, Size: len(data), StoredAt: time.Now().UTC()}
	raw, err := json.Marshal(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ref: %w", err)
	}
	if err := writeAtomic(s.pathForRef(key), raw, ".ref-*"); err != nil {
		return nil, fmt.Errorf("failed to link %q: %w", key, err)
	}
	return ref, nil
}

// LookupRef returns the ref linked to key.
// Returns ErrRefNotFound if key was never linked.
func (s *Store) LookupRef(key string) (*Ref, error) {
	raw, err := os.ReadFile(s.pathForRef(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrRefNotFound
		}
		return nil, fmt.Errorf("failed to read ref: %w", err)
	}

	var ref Ref
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, fmt.Errorf("failed to parse ref: %w", err)
	}
	if ref.Key != key {
		return nil, ErrRefNotFound
	}
	return &ref, nil
}

// GetRef returns the blob linked to key together with its ref.
func (s *Store) GetRef(key string) ([]byte, *Ref, error) {
	ref, err := s.LookupRef(key)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.Get(ref.BLAKE3)
	if err != nil {
		return nil, nil, err
	}
	return data, ref, nil
}

// pathForRef returns <root>/refs/<first2>/<blake3(key)>.json.
func (s *Store) pathForRef(key string) string {
	h := Hash([]byte(key))
	return filepath.Join(refRoot(s.root), h[:2], h+".json")
}

func refRoot(root string) string {
	return filepath.Join(root, "refs")
}
