// Package segment splits raw lecture transcripts into ordered, timestamped
// segments and renders corrected segments back into the same text format.
//
// The input format is plain text with bracketed timecode markers:
//
//	[0:00:01 - 0:00:27]
//	<segment text>
//
//	[0:00:27 - 0:00:58]
//	<segment text>
//
// Each marker-delimited block becomes one [Segment]. Text before the first
// marker is ignored, and blocks that are empty after trimming are dropped.
package segment

import (
	"fmt"
	"regexp"
	"strings"
)

// markerRe matches one timecode marker and captures the start and end times.
// A bracket pair missing either time is not a marker; its text stays part of
// the preceding block.
var markerRe = regexp.MustCompile(`\[(\d+:\d+:\d+) - (\d+:\d+:\d+)\]`)

// Segment is one bounded span of transcript text. It is created by [Split]
// and carried through the correction pipeline, which fills in CorrectedText,
// AppliedCorrections, Quality, and ModelUsed.
type Segment struct {
	// ID is the 1-based ordinal position of the segment within its
	// transcript. Assigned at creation and never renumbered.
	ID int

	// StartTime and EndTime are the textual timecodes parsed from the
	// source marker.
	StartTime string
	EndTime   string

	// OriginalText is the raw segment text as found in the transcript.
	// Immutable once the segment is created.
	OriginalText string

	// CorrectedText starts equal to OriginalText and is overwritten by the
	// rule rewriter, and optionally once more by the remote model.
	CorrectedText string

	// AppliedCorrections is the ordered, append-only list of correction
	// category labels that fired for this segment.
	AppliedCorrections []string

	// Quality is the heuristic quality estimate in [0, 1]. Recomputed
	// whenever CorrectedText changes.
	Quality float64

	// ModelUsed is true iff the remote model's output was accepted.
	ModelUsed bool
}

// FormatError indicates that input text has no recognisable transcript
// structure. It aborts processing of the whole transcript; the batch driver
// reports it per file and continues.
type FormatError struct {
	// Reason describes what made the input unparseable.
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("segment: %s", e.Reason)
}

// Split parses raw transcript text into an ordered slice of Segments, one per
// marker-delimited block, in source order.
//
// Empty input yields an empty slice and no error. Non-empty input without a
// single timecode marker yields a [*FormatError], since it is most likely not
// transcript-formatted at all.
func Split(text string) ([]Segment, error) {
	if strings.TrimSpace(text) == "" {
		return []Segment{}, nil
	}

	locs := markerRe.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil, &FormatError{Reason: "no timecode markers found in non-empty input"}
	}

	segments := make([]Segment, 0, len(locs))
	for i, loc := range locs {
		blockEnd := len(text)
		if i+1 < len(locs) {
			blockEnd = locs[i+1][0]
		}
		content := strings.TrimSpace(text[loc[1]:blockEnd])
		if content == "" {
			continue
		}

		segments = append(segments, Segment{
			ID:            len(segments) + 1,
			StartTime:     text[loc[2]:loc[3]],
			EndTime:       text[loc[4]:loc[5]],
			OriginalText:  content,
			CorrectedText: content,
		})
	}

	return segments, nil
}

// Render writes segments back into the transcript text format, mirroring the
// input layout: one marker line followed by the corrected text and a blank
// line, in segment order.
func Render(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		fmt.Fprintf(&b, "[%s - %s]\n%s\n\n", s.StartTime, s.EndTime, s.CorrectedText)
	}
	return b.String()
}
