package blobstore

import (
	"context"
	"fmt"
)

// MigrationResult reports what happened to one key during MigrateLocal.
type MigrationResult struct {
	Key    string `json:"key"`
	OldURL string `json:"old_url"`
	NewURL string `json:"new_url"`
	Err    error  `json:"-"`
	// Skipped is set when the object already existed in dst.
	Skipped bool `json:"skipped,omitempty"`
}

// MigrateLocal copies each key from src to dst. Local files are left in
// place so the run can be repeated; objects already present in dst are
// skipped. With dryRun set nothing is written and NewURL is the URL the
// object would get. Each result's Err is set independently so one bad file
// does not stop the batch.
func MigrateLocal(ctx context.Context, src *LocalStore, dst Store, keys []string, dryRun bool) []MigrationResult {
	results := make([]MigrationResult, 0, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			results = append(results, MigrationResult{Key: key, OldURL: src.URL(key), Err: err})
			continue
		}
		results = append(results, migrateOne(ctx, src, dst, key, dryRun))
	}
	return results
}

func migrateOne(ctx context.Context, src *LocalStore, dst Store, key string, dryRun bool) MigrationResult {
	res := MigrationResult{Key: key, OldURL: src.URL(key), NewURL: dst.URL(key)}

	exists, err := src.Exists(ctx, key)
	if err != nil {
		res.Err = fmt.Errorf("check source: %w", err)
		return res
	}
	if !exists {
		res.Err = fmt.Errorf("%w: %s", ErrBlobNotFound, key)
		return res
	}

	already, err := dst.Exists(ctx, key)
	if err != nil {
		res.Err = fmt.Errorf("check destination: %w", err)
		return res
	}
	if already {
		res.Skipped = true
		return res
	}
	if dryRun {
		return res
	}

	rc, obj, err := src.Get(ctx, key)
	if err != nil {
		res.Err = fmt.Errorf("read source: %w", err)
		return res
	}
	defer rc.Close()

	put, err := dst.Put(ctx, key, obj.ContentType, rc)
	if err != nil {
		res.Err = fmt.Errorf("write destination: %w", err)
		return res
	}
	res.NewURL = put.URL
	return res
}

// Failed counts results with an error.
func Failed(results []MigrationResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
