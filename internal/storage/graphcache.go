package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// GraphCacheFile is the canonical cache filename inside the cache directory.
const GraphCacheFile = "graph.json"

// GraphCachePath returns the canonical cache path for a vault.
func GraphCachePath(vaultPath, cacheDir string) string {
	return filepath.Join(vaultPath, cacheDir, GraphCacheFile)
}

// PersistGraph atomically replaces the cached graph: the JSON is written and
// fsynced to a uniquely named temp file next to the canonical path, then
// renamed over it. Readers of the canonical file never see a partial write.
func PersistGraph(vaultPath, cacheDir string, graph map[string][]string) error {
	data, err := json.Marshal(graph)
	if err != nil {
		return fmt.Errorf("storage: encode graph: %w", err)
	}

	dir := filepath.Join(vaultPath, cacheDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir cache: %w", err)
	}

	// Timestamp plus CreateTemp's random suffix keeps concurrent persists apart.
	pattern := fmt.Sprintf("%s.%d-*.tmp", GraphCacheFile, time.Now().UnixNano())
	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, GraphCachePath(vaultPath, cacheDir)); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// LoadCachedGraph reads the canonical cache file. Any failure, including a
// missing or unparsable file, reports no cache.
func LoadCachedGraph(vaultPath, cacheDir string) (map[string][]string, bool) {
	data, err := os.ReadFile(GraphCachePath(vaultPath, cacheDir))
	if err != nil {
		return nil, false
	}
	var graph map[string][]string
	if err := json.Unmarshal(data, &graph); err != nil || graph == nil {
		return nil, false
	}
	return graph, true
}
