package entities

import "strings"

// Speaker identifies who is talking in a transcript segment
type Speaker string

const (
	SpeakerTherapist Speaker = "therapist"
	SpeakerClient    Speaker = "client"
)

// TranscriptSegment is a single attributed utterance. Immutable once
// assigned to a session.
type TranscriptSegment struct {
	Speaker      Speaker `json:"speaker" db:"speaker"`
	Text         string  `json:"text" db:"text"`
	StartSeconds float64 `json:"start_seconds" db:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds" db:"end_seconds"`
}

// DiarizedTranscript is a speaker-attributed transcript. FullText is the
// concatenation of segment texts in original temporal order, independent
// of speaker.
type DiarizedTranscript struct {
	Segments []TranscriptSegment `json:"segments"`
	FullText string              `json:"full_text"`
}

// Transcript is either a diarized transcript or a plain unstructured
// string; when diarization was unavailable only Raw is set.
type Transcript struct {
	Diarized *DiarizedTranscript `json:"diarized,omitempty"`
	Raw      string              `json:"raw,omitempty"`
}

// IsEmpty reports whether the transcript carries no usable text.
func (t Transcript) IsEmpty() bool {
	if t.Diarized != nil {
		return strings.TrimSpace(t.Diarized.FullText) == "" && len(t.Diarized.Segments) == 0
	}
	return strings.TrimSpace(t.Raw) == ""
}

// Text returns the flat transcript text regardless of form.
func (t Transcript) Text() string {
	if t.Diarized != nil {
		return t.Diarized.FullText
	}
	return t.Raw
}

// PromptText renders the transcript for a generation prompt. Diarized
// segments become "[SPEAKER]: text" lines in temporal order, uppercase
// role name, separated by blank lines; raw transcripts pass through
// unchanged.
func (t Transcript) PromptText() string {
	if t.Diarized == nil {
		return t.Raw
	}

	lines := make([]string, 0, len(t.Diarized.Segments))
	for _, seg := range t.Diarized.Segments {
		lines = append(lines, "["+strings.ToUpper(string(seg.Speaker))+"]: "+seg.Text)
	}
	return strings.Join(lines, "\n\n")
}

// RawSegment is a speaker-tagged segment as produced by the
// speech-to-text capability. SpeakerTag is an opaque per-audio label
// (e.g. "A"/"B") not yet mapped to a role.
type RawSegment struct {
	SpeakerTag   string  `json:"speaker_tag"`
	Text         string  `json:"text"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
}

// TranscriptionResult is the raw output of the speech-to-text capability.
type TranscriptionResult struct {
	Text     string       `json:"text"`
	Segments []RawSegment `json:"segments,omitempty"`
}
