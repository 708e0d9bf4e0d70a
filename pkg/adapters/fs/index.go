package fs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aretw0/marginalia/pkg/core"
)

const indexVersion = 3

// header is what List needs from one document file.
type header struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
	ModTime   time.Time `json:"mod_time"`
	Size      int64     `json:"size"`
}

// fresh reports whether h still describes the file behind info.
func (h header) fresh(info os.FileInfo) bool {
	return h.ModTime.Equal(info.ModTime()) && h.Size == info.Size()
}

type indexFile struct {
	Version int               `json:"version"`
	Headers map[string]header `json:"headers"`
}

// headerIndex caches document headers by slash-separated relative path, so
// List does not parse every file. It lives in {systemDir}/index.json.
type headerIndex struct {
	path string

	mu      sync.RWMutex
	headers map[string]header
	dirty   bool
}

func newHeaderIndex(root, systemDir string) *headerIndex {
	return &headerIndex{
		path:    filepath.Join(root, systemDir, "index.json"),
		headers: make(map[string]header),
	}
}

// load replaces the in-memory headers with the file. A missing, unreadable
// JSON or older-version file leaves the index empty.
func (x *headerIndex) load() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.headers = make(map[string]header)
	x.dirty = false

	data, err := os.ReadFile(x.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read index: %w", err)
	}

	var f indexFile
	if json.Unmarshal(data, &f) != nil || f.Version != indexVersion {
		return nil
	}
	for k, h := range f.Headers {
		x.headers[k] = h
	}
	return nil
}

// flush writes the index if it changed since load or the last flush.
func (x *headerIndex) flush() error {
	x.mu.RLock()
	if !x.dirty {
		x.mu.RUnlock()
		return nil
	}
	data, err := json.MarshalIndent(indexFile{Version: indexVersion, Headers: x.headers}, "", "  ")
	x.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := writeFileAtomic(x.path, data, 0644); err != nil {
		return err
	}

	x.mu.Lock()
	x.dirty = false
	x.mu.Unlock()
	return nil
}

// lookup returns the header of relPath unless the file changed since.
func (x *headerIndex) lookup(relPath string, info os.FileInfo) (header, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	h, ok := x.headers[relPath]
	if !ok || !h.fresh(info) {
		return header{}, false
	}
	return h, true
}

func (x *headerIndex) put(relPath string, h header) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if old, ok := x.headers[relPath]; ok && old == h {
		return
	}
	x.headers[relPath] = h
	x.dirty = true
}

// retain drops every path not in keep.
func (x *headerIndex) retain(keep map[string]bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	for p := range x.headers {
		if !keep[p] {
			delete(x.headers, p)
			x.dirty = true
		}
	}
}

func (x *headerIndex) remove(relPath string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.headers[relPath]; ok {
		delete(x.headers, relPath)
		x.dirty = true
	}
}

// all returns a copy of the headers.
func (x *headerIndex) all() map[string]header {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make(map[string]header, len(x.headers))
	for k, h := range x.headers {
		out[k] = h
	}
	return out
}

func (x *headerIndex) len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.headers)
}

func headerOf(d core.Document, info os.FileInfo) header {
	return header{ID: d.ID, Title: d.Title, UpdatedAt: d.UpdatedAt, ModTime: info.ModTime(), Size: info.Size()}
}
