package main

import (
	"context"
	"fmt"

	"github.com/healthnet/healthnet/internal/platform/blobstore"
)

// fileIndex is a table column that stores blob keys and their public URLs.
type fileIndex struct {
	name    string
	keys    func(ctx context.Context) ([]string, error)
	rewrite func(ctx context.Context, key, url string) (int64, error)
}

func fileIndexes(a *app) []fileIndex {
	return []fileIndex{
		{name: "patient photos", keys: a.patients.ListPhotoKeys, rewrite: a.patients.RewritePhotoURL},
		{name: "lab result files", keys: a.labResults.ListFileKeys, rewrite: a.labResults.RewriteFileURL},
	}
}

type migrationReport struct {
	Results   []blobstore.MigrationResult
	Failed    int
	Rewritten int64
}

// migrateFiles copies every referenced file from src to dst and points the
// owning rows at the new URL. Objects already in dst still get their rows
// rewritten so an interrupted run can be repeated.
func migrateFiles(ctx context.Context, src *blobstore.LocalStore, dst blobstore.Store, indexes []fileIndex, dryRun bool) (*migrationReport, error) {
	report := &migrationReport{}
	for _, idx := range indexes {
		keys, err := idx.keys(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", idx.name, err)
		}

		results := blobstore.MigrateLocal(ctx, src, dst, keys, dryRun)
		for i := range results {
			r := &results[i]
			if r.Err != nil || dryRun {
				continue
			}
			n, err := idx.rewrite(ctx, r.Key, r.NewURL)
			if err != nil {
				r.Err = fmt.Errorf("rewrite url: %w", err)
				continue
			}
			report.Rewritten += n
		}
		report.Results = append(report.Results, results...)
	}
	report.Failed = blobstore.Failed(report.Results)
	return report, nil
}
