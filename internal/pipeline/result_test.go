package pipeline_test

import (
	"encoding/json"
	"strings"
	"testing"

	"loom/internal/pipeline"
)

func TestResultPreservesFieldOrder(t *testing.T) {
	res := pipeline.Ok(
		pipeline.F("zebra", 1),
		pipeline.F("alpha", 2),
		pipeline.F("mango", 3),
	)
	keys := res.Keys()
	want := []string{"zebra", "alpha", "mango"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %d", len(want), len(keys))
	}
	for i, key := range want {
		if keys[i] != key {
			t.Fatalf("expected key %q at %d, got %q", key, i, keys[i])
		}
	}

	encoded, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	text := string(encoded)
	if strings.Index(text, "zebra") > strings.Index(text, "alpha") {
		t.Fatalf("JSON output lost insertion order: %s", text)
	}
}

func TestFailAlwaysCarriesMessage(t *testing.T) {
	res := pipeline.Fail("")
	if res.Success() {
		t.Fatal("expected failure")
	}
	if res.Err() == "" {
		t.Fatal("failed result must carry an error message")
	}
	if res.Err() != "unknown error" {
		t.Fatalf("unexpected placeholder message %q", res.Err())
	}
}

func TestSkipRecordsReason(t *testing.T) {
	res := pipeline.Skip("uploads disabled")
	if !res.Success() || !res.Skipped() {
		t.Fatal("expected successful skip result")
	}
	if got := res.String(pipeline.KeyReason); got != "uploads disabled" {
		t.Fatalf("expected reason field, got %q", got)
	}
}

func TestMergeCombinesFieldsAndOutcomes(t *testing.T) {
	left := pipeline.Ok(pipeline.F("a", 1), pipeline.F("shared", "left"))
	right := pipeline.Ok(pipeline.F("b", 2), pipeline.F("shared", "right"))

	merged := left.Merge(right)
	if !merged.Success() {
		t.Fatal("merging two successes must succeed")
	}
	if v, _ := merged.Get("shared"); v != "left" {
		t.Fatalf("left operand should win shared keys, got %v", v)
	}
	keys := merged.Keys()
	if len(keys) != 3 {
		t.Fatalf("expected 3 keys after union, got %v", keys)
	}

	failed := left.Merge(pipeline.Fail("remote refused"))
	if failed.Success() {
		t.Fatal("merging with a failure must fail")
	}
	if !strings.Contains(failed.Err(), "remote refused") {
		t.Fatalf("expected joined error, got %q", failed.Err())
	}
}

func TestMergeStatusPropagation(t *testing.T) {
	degraded := pipeline.Degraded(pipeline.F("x", 1))
	plain := pipeline.Ok()
	if got := degraded.Merge(plain).CustomStatus(); got != pipeline.StatusDegraded {
		t.Fatalf("expected degraded union, got %q", got)
	}

	skipLeft := pipeline.Skip("off")
	skipRight := pipeline.Skip("also off")
	if got := skipLeft.Merge(skipRight).CustomStatus(); got != pipeline.StatusSkipped {
		t.Fatalf("expected skipped union, got %q", got)
	}
	if got := skipLeft.Merge(plain).CustomStatus(); got != "" {
		t.Fatalf("skip merged with plain success should clear status, got %q", got)
	}
}

func TestAttachMetaDoesNotTouchOutcome(t *testing.T) {
	res := pipeline.Ok(pipeline.F("a", 1))
	res.AttachMeta("observability", "attached")

	if !res.Success() {
		t.Fatal("metadata attachment must not flip the outcome")
	}
	if _, ok := res.Get("observability"); ok {
		t.Fatal("metadata must not leak into the data payload")
	}
	if v, ok := res.Meta("observability"); !ok || v != "attached" {
		t.Fatalf("expected attachment, got %v (%v)", v, ok)
	}
}
