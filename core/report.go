// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

// NewReport returns an empty report for a run. Files is never nil so the
// serialized form always carries a list.
func NewReport(runID, repo, branch string) *IngestionReport {
	return &IngestionReport{
		RunID:  runID,
		Repo:   repo,
		Branch: branch,
		Files:  []FileOutcome{},
	}
}

// Reduce folds per-file outcomes into the report. Each outcome lands in
// exactly one bucket and only successful files contribute chunks.
// It must be called once all outcomes are final.
func (r *IngestionReport) Reduce(outcomes []FileOutcome) {
	for _, outcome := range outcomes {
		switch outcome.Status {
		case StatusSuccess:
			r.Files = append(r.Files, outcome)
			r.TotalFiles++
			r.TotalChunks += outcome.ChunkCount
		case StatusSkipped:
			r.Skipped = append(r.Skipped, outcome)
			r.SkippedFiles++
		default:
			// An outcome that never reached a terminal state counts as a failure.
			if outcome.Status != StatusFailed {
				outcome.Status = StatusFailed
				outcome.Reason = "no outcome recorded"
			}
			outcome.ChunkCount = 0
			outcome.StoredIDs = nil
			r.Failed = append(r.Failed, outcome)
			r.FailedFiles++
		}
	}
}

// Accounted returns the number of files recorded across all buckets.
func (r *IngestionReport) Accounted() int {
	return r.TotalFiles + r.SkippedFiles + r.FailedFiles
}

// Degraded reports whether the run completed with at least one failed file.
func (r *IngestionReport) Degraded() bool {
	return r.Error == "" && r.FailedFiles > 0
}
