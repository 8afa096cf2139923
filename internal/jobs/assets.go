package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bnema/craftctl/internal/layout"
)

// DefaultAssetsURL serves content addressed asset objects
const DefaultAssetsURL = "https://resources.download.minecraft.net/"

// AssetIndex maps virtual asset names to content hashes
type AssetIndex struct {
	Objects map[string]AssetObject `json:"objects"`
}

type AssetObject struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// ReadAssetIndex loads assets/indexes/<id>.json
func ReadAssetIndex(l layout.Layout, id string) (*AssetIndex, error) {
	data, err := os.ReadFile(l.AssetIndex(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read asset index %s: %w", id, err)
	}

	var idx AssetIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("failed to parse asset index %s: %w", id, err)
	}
	return &idx, nil
}

func runAssets(ctx context.Context, job AssetsJob, env Env) error {
	l := layout.New(job.Root)

	idx, err := ReadAssetIndex(l, job.IndexID)
	if err != nil {
		return err
	}

	base := job.BaseURL
	if base == "" {
		base = DefaultAssetsURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	// The same hash can back several names
	seen := make(map[string]bool, len(idx.Objects))
	var hashes []string
	for _, obj := range idx.Objects {
		h := strings.ToLower(obj.Hash)
		if len(h) < 2 || seen[h] {
			continue
		}
		seen[h] = true
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)

	env.Log.Debug("Validating assets", "index", job.IndexID, "objects", len(hashes))

	d := env.downloader()
	total := len(hashes)
	return forEach(ctx, job.Parallel, total, func(ctx context.Context, i int) error {
		h := hashes[i]
		_, err := d.Ensure(ctx, base+h[:2]+"/"+h, l.AssetObject(h), h)
		return err
	}, func(completed int) {
		env.Reporter.Progress(fmt.Sprintf("Downloading assets (%d/%d)", completed, total), fraction(completed, total))
	})
}
