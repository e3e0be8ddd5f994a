package main

import (
	"testing"

	"loom/internal/pipeline"
)

func TestRenderRunSummary(t *testing.T) {
	download := pipeline.Ok(pipeline.F(pipeline.KeyTitle, "A Talk"))
	upload := pipeline.Skip("uploads disabled")
	analysis := pipeline.OkWith(pipeline.StatusUncertain)

	result := pipeline.RunResult{
		RunID:      "run-123",
		Status:     pipeline.RunStatusSuccess,
		DurationMS: 42,
		Download:   &download,
		Upload:     &upload,
		Analysis:   &analysis,
		Warnings:   []string{"graph_memory: database locked"},
	}

	out := renderRunSummary(result)
	requireContains(t, out, "run-123")
	requireContains(t, out, "success")
	requireContains(t, out, "skipped: uploads disabled")
	requireContains(t, out, "ok (uncertain)")
	requireContains(t, out, "graph_memory: database locked")
}

func TestRenderRunSummaryFailure(t *testing.T) {
	download := pipeline.Fail("downloader exited with status 1")

	result := pipeline.RunResult{
		RunID:    "run-456",
		Status:   pipeline.RunStatusError,
		Step:     pipeline.StepDownload,
		Error:    "downloader exited with status 1",
		Download: &download,
	}

	out := renderRunSummary(result)
	requireContains(t, out, "Failed step")
	requireContains(t, out, pipeline.StepDownload)
	requireContains(t, out, "failed: downloader exited with status 1")
}
