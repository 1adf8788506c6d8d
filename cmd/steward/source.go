package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/districtops/steward/pkg/types"
)

// fileSource reads statistics snapshots from JSON files on disk. An external
// fetcher (out of scope here) is expected to write
// <data-dir>/snapshots/<district>/current.json on every refresh and roll the
// previous file to cached.json.
type fileSource struct {
	dir string
}

func newFileSource(dataDir string) *fileSource {
	return &fileSource{dir: filepath.Join(dataDir, "snapshots")}
}

func (f *fileSource) Current(districtID string) (*types.DistrictStatistics, error) {
	return f.read(districtID, "current.json")
}

func (f *fileSource) Cached(districtID string) (*types.DistrictStatistics, error) {
	stats, err := f.read(districtID, "cached.json")
	if os.IsNotExist(err) {
		// First observation for the district; the detector treats a nil
		// snapshot as a zero baseline.
		return nil, nil
	}
	return stats, err
}

func (f *fileSource) read(districtID, name string) (*types.DistrictStatistics, error) {
	path := filepath.Join(f.dir, districtID, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("reading snapshot %s: %w", path, err)
	}

	var stats types.DistrictStatistics
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}
	return &stats, nil
}
