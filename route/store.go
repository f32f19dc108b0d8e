package route

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FloorStore holds the current floor snapshots. Readers get owned copies so
// planning never observes a concurrent replacement.
type FloorStore struct {
	mu        sync.RWMutex
	floors    Floors
	version   uint64
	updated   time.Time
	cachePath string // empty disables persistence
}

// floorCache is the on-disk form of a FloorStore
type floorCache struct {
	Version uint64      `json:"version"`
	Updated time.Time   `json:"updated"`
	Floors  []FloorPlan `json:"floors"`
}

// NewFloorStore creates an empty store
func NewFloorStore() *FloorStore {
	return &FloorStore{floors: make(Floors)}
}

// NewFloorStoreWithCache creates a store persisted to cachePath. An existing
// cache file is loaded on creation.
func NewFloorStoreWithCache(cachePath string) *FloorStore {
	fs := &FloorStore{floors: make(Floors), cachePath: cachePath}
	if cachePath != "" {
		if c, err := loadFloorCache(cachePath); err == nil {
			for i := range c.Floors {
				fp := c.Floors[i]
				fs.floors[fp.Floor] = &fp
			}
			fs.version = c.Version
			fs.updated = c.Updated
			log.Printf("[ROUTE] Loaded %d floor(s) from cache %s", len(fs.floors), cachePath)
		}
	}
	return fs
}

// Replace swaps in a complete set of floors and bumps the version
func (fs *FloorStore) Replace(floors Floors) {
	fs.mu.Lock()
	next := make(Floors, len(floors))
	for k, v := range floors {
		next[k] = v.Clone()
	}
	fs.floors = next
	fs.version++
	fs.updated = time.Now()
	fs.mu.Unlock()
	fs.persist()
}

// Put sets one floor and bumps the version
func (fs *FloorStore) Put(fp *FloorPlan) {
	if fp == nil {
		return
	}
	fs.mu.Lock()
	fs.floors[fp.Floor] = fp.Clone()
	fs.version++
	fs.updated = time.Now()
	fs.mu.Unlock()
	fs.persist()
}

// FloorPlan returns a copy of one floor; it implements FloorSource
func (fs *FloorStore) FloorPlan(floor int) (*FloorPlan, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	fp, ok := fs.floors[floor]
	if !ok {
		return nil, false
	}
	return fp.Clone(), true
}

// Snapshot returns copies of every floor and the version they belong to
func (fs *FloorStore) Snapshot() (Floors, uint64) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	out := make(Floors, len(fs.floors))
	for k, v := range fs.floors {
		out[k] = v.Clone()
	}
	return out, fs.version
}

// Version increases on every change
func (fs *FloorStore) Version() uint64 {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.version
}

// FloorNumbers lists the stored floors in ascending order
func (fs *FloorStore) FloorNumbers() []int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	out := make([]int, 0, len(fs.floors))
	for k := range fs.floors {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// Updated is the time of the last change
func (fs *FloorStore) Updated() time.Time {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.updated
}

func (fs *FloorStore) persist() {
	if fs.cachePath == "" {
		return
	}
	fs.mu.RLock()
	c := floorCache{Version: fs.version, Updated: fs.updated}
	for _, n := range sortedFloorKeys(fs.floors) {
		c.Floors = append(c.Floors, *fs.floors[n])
	}
	fs.mu.RUnlock()

	if err := saveFloorCache(&c, fs.cachePath); err != nil {
		log.Printf("[ROUTE] warning: failed to save floor cache: %v", err)
	}
}

func sortedFloorKeys(f Floors) []int {
	keys := make([]int, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func saveFloorCache(c *floorCache, path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal floor cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write floor cache: %w", err)
	}
	return nil
}

func loadFloorCache(path string) (*floorCache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read floor cache: %w", err)
	}
	var c floorCache
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal floor cache: %w", err)
	}
	return &c, nil
}
