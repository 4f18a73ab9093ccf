package preflight

import (
	"context"
	"os"

	"subtitler/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// stagingFactor covers the staged upload, extracted audio and encoded output
// of one job.
const stagingFactor = 3

// RunAll executes the filesystem checks for the given config.
func RunAll(_ context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	root := cfg.Workspace.TempRoot
	results := []Result{CheckDirectoryAccess("Temp root", root)}
	if results[0].Passed {
		need := uint64(cfg.MaxUploadBytes()) * stagingFactor * uint64(cfg.Concurrency.MaxJobs) //nolint:gosec
		results = append(results, CheckFreeSpace("Temp root free space", root, need))
	}

	if cache := cfg.Transcription.CacheDir; cache != "" {
		if _, err := os.Stat(cache); err == nil {
			results = append(results, CheckDirectoryAccess("Model cache", cache))
		}
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
