// Package storage is the boundary to the external object store that holds
// attachment blobs. Uploads belong to the media subsystem; the engine only
// needs delete-by-key when messages are hard-deleted.
package storage

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"workflow-collab-backend/pkg/apperr"
)

// ObjectStore deletes stored objects by key.
type ObjectStore interface {
	DeleteObject(key string) error
}

// SupabaseStore talks to a Supabase-style Storage REST API.
type SupabaseStore struct {
	baseURL    string
	apiKey     string
	bucket     string
	httpClient *http.Client
}

// NewSupabaseStore creates a client for the given storage project/bucket.
func NewSupabaseStore(baseURL, apiKey, bucket string) *SupabaseStore {
	if !strings.HasPrefix(baseURL, "http") {
		baseURL = "https://" + baseURL
	}
	return &SupabaseStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		bucket:  bucket,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// DeleteObject removes one object by storage key. A missing object is not
// an error: hard delete must be idempotent against blobs that are already
// gone.
func (s *SupabaseStore) DeleteObject(key string) error {
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, url.PathEscape(key))
	req, err := http.NewRequest(http.MethodDelete, endpoint, nil)
	if err != nil {
		return apperr.Wrap(err, apperr.KindStorageFailure, "failed to create delete request")
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return apperr.Wrap(err, apperr.KindStorageFailure, "failed to delete object %s", key)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperr.New(apperr.KindStorageFailure, "delete object %s: status %d: %s", key, resp.StatusCode, string(body))
	}
	return nil
}

// MemoryStore is an in-memory ObjectStore for development and tests. It
// records every delete call so tests can assert exactly-once reclamation.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]bool
	Deleted []string
	// FailKeys forces DeleteObject to fail for specific keys, to exercise
	// partial-failure tolerance.
	FailKeys map[string]bool
}

// NewMemoryStore creates an empty in-memory object store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects:  make(map[string]bool),
		FailKeys: make(map[string]bool),
	}
}

// Put registers an object key, standing in for the media subsystem upload.
func (s *MemoryStore) Put(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = true
}

// Has reports whether the key still exists.
func (s *MemoryStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[key]
}

func (s *MemoryStore) DeleteObject(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailKeys[key] {
		return apperr.New(apperr.KindStorageFailure, "delete object %s: forced failure", key)
	}
	delete(s.objects, key)
	s.Deleted = append(s.Deleted, key)
	return nil
}
