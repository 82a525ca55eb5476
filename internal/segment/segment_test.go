package segment_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/hokomura/kousei/internal/segment"
)

const sampleTranscript = `[0:00:01 - 0:00:27]
皆さんこんばんは、松尾研究室の川崎と申します。

[0:00:27 - 0:00:58]
本日はDay2の講座になります。
`

func TestSplit(t *testing.T) {
	t.Parallel()

	segs, err := segment.Split(sampleTranscript)
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}

	first := segs[0]
	if first.ID != 1 {
		t.Errorf("first segment ID = %d, want 1", first.ID)
	}
	if first.StartTime != "0:00:01" || first.EndTime != "0:00:27" {
		t.Errorf("first segment times = %s - %s", first.StartTime, first.EndTime)
	}
	if !strings.Contains(first.OriginalText, "川崎と申します") {
		t.Errorf("unexpected first segment text: %q", first.OriginalText)
	}
	if first.CorrectedText != first.OriginalText {
		t.Error("CorrectedText should be initialised to OriginalText")
	}

	if segs[1].ID != 2 {
		t.Errorf("second segment ID = %d, want 2", segs[1].ID)
	}
}

func TestSplitEmptyInput(t *testing.T) {
	t.Parallel()

	segs, err := segment.Split("   \n\n  ")
	if err != nil {
		t.Fatalf("Split on blank input returned error: %v", err)
	}
	if len(segs) != 0 {
		t.Fatalf("expected no segments, got %d", len(segs))
	}
}

func TestSplitNoMarkers(t *testing.T) {
	t.Parallel()

	_, err := segment.Split("this is just prose with no timecodes at all")
	if err == nil {
		t.Fatal("expected a FormatError for marker-less input")
	}
	var fe *segment.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *segment.FormatError, got %T: %v", err, err)
	}
}

func TestSplitSkipsEmptyBlocks(t *testing.T) {
	t.Parallel()

	input := "[0:00:01 - 0:00:05]\n\n\n[0:00:05 - 0:00:10]\ncontent here\n"
	segs, err := segment.Split(input)
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment (empty block dropped), got %d", len(segs))
	}
	if segs[0].ID != 1 {
		t.Errorf("segment ID = %d, want 1 (IDs count kept segments only)", segs[0].ID)
	}
	if segs[0].OriginalText != "content here" {
		t.Errorf("unexpected text: %q", segs[0].OriginalText)
	}
}

func TestSplitIgnoresPreamble(t *testing.T) {
	t.Parallel()

	input := "lecture notes header\n" + sampleTranscript
	segs, err := segment.Split(input)
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if strings.Contains(segs[0].OriginalText, "header") {
		t.Error("preamble before the first marker must not leak into a segment")
	}
}

func TestSplitMalformedMarkerJoinsPrecedingBlock(t *testing.T) {
	t.Parallel()

	// A bracket pair missing the end time is not a marker: its line belongs
	// to the block opened by the last real marker.
	input := "[0:00:01 - 0:00:05]\n最初の部分。\n[0:00:05 - ]\n続きの部分。\n"
	segs, err := segment.Split(input)
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].StartTime != "0:00:01" || segs[0].EndTime != "0:00:05" {
		t.Errorf("segment times = %s - %s", segs[0].StartTime, segs[0].EndTime)
	}
	if !strings.Contains(segs[0].OriginalText, "続きの部分") {
		t.Errorf("malformed marker's text missing from preceding block: %q", segs[0].OriginalText)
	}
	if !strings.Contains(segs[0].OriginalText, "[0:00:05 - ]") {
		t.Errorf("malformed marker line itself should stay in the text: %q", segs[0].OriginalText)
	}
}

func TestRenderMirrorsInputFormat(t *testing.T) {
	t.Parallel()

	segs, err := segment.Split(sampleTranscript)
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	out := segment.Render(segs)

	if !strings.HasPrefix(out, "[0:00:01 - 0:00:27]\n") {
		t.Errorf("output does not start with the first marker:\n%s", out)
	}
	if !strings.HasSuffix(out, "\n\n") {
		t.Error("each rendered segment must end with a blank line")
	}

	// Rendered output must itself be splittable, with identical ordering.
	again, err := segment.Split(out)
	if err != nil {
		t.Fatalf("Split of rendered output returned error: %v", err)
	}
	if len(again) != len(segs) {
		t.Fatalf("round trip changed segment count: %d != %d", len(again), len(segs))
	}
	for i := range again {
		if again[i].StartTime != segs[i].StartTime || again[i].EndTime != segs[i].EndTime {
			t.Errorf("segment %d times changed in round trip", i)
		}
	}
}
