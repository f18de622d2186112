package domain

import "time"

// Score categories. Every processed attempt carries all eight keys.
const (
	CategoryStructure       = "Structure"
	CategoryCommunication   = "Communication"
	CategoryEmpathy         = "Empathy"
	CategoryEthics          = "Ethics"
	CategoryProfessionalism = "Professionalism"
	CategoryMotivation      = "Motivation"
	CategoryTeamwork        = "Teamwork"
	CategoryOverall         = "Overall"
)

// Categories lists all score categories in canonical order.
var Categories = []string{
	CategoryStructure,
	CategoryCommunication,
	CategoryEmpathy,
	CategoryEthics,
	CategoryProfessionalism,
	CategoryMotivation,
	CategoryTeamwork,
	CategoryOverall,
}

// ScoreSet maps a category name to an integer score in [0, 100].
type ScoreSet map[string]int

// NewZeroScoreSet returns a ScoreSet with every category present and zeroed.
func NewZeroScoreSet() ScoreSet {
	s := make(ScoreSet, len(Categories))
	for _, c := range Categories {
		s[c] = 0
	}
	return s
}

// Normalize returns a copy with all categories present. Missing categories
// are zero-filled; unknown keys are dropped.
func (s ScoreSet) Normalize() ScoreSet {
	out := make(ScoreSet, len(Categories))
	for _, c := range Categories {
		out[c] = s[c]
	}
	return out
}

// TranscriptSegment is a transcribed span of speech. Segments are ordered by
// start time and never mutated after the transcriber produces them.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Metrics holds delivery metrics derived from the recording. EyeContactPct is
// a pointer because video-based metrics may be unavailable (null, not zero).
type Metrics struct {
	WordsPerMinute  float64  `json:"wordsPerMinute"`
	FillerWordCount int      `json:"fillerWordCount"`
	EyeContactPct   *float64 `json:"eyeContactPct"`
	Note            string   `json:"note,omitempty"`
}

// FeedbackItem is a qualitative note anchored to a transcript timestamp.
type FeedbackItem struct {
	Timestamp string `json:"ts"`
	Note      string `json:"note"`
}

// Attempt is the user-facing record that accumulates analysis output.
type Attempt struct {
	ID                  string         `json:"id"`
	StationIDs          []string       `json:"station_ids"`
	Transcript          string         `json:"transcript"`
	Scores              ScoreSet       `json:"scores"`
	Metrics             Metrics        `json:"metrics"`
	Feedback            []FeedbackItem `json:"feedback"`
	RecommendedArticles []string       `json:"recommended_articles"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// AttemptResults is the full set of fields a pipeline run writes onto an
// Attempt. The write is a complete overwrite, not a merge.
type AttemptResults struct {
	Transcript          string         `json:"transcript"`
	Scores              ScoreSet       `json:"scores"`
	Metrics             Metrics        `json:"metrics"`
	Feedback            []FeedbackItem `json:"feedback"`
	RecommendedArticles []string       `json:"recommended_articles"`
}

// Transcription is the transcriber's output: full text plus timestamped
// segments in chronological order.
type Transcription struct {
	Text     string
	Segments []TranscriptSegment
}

// Assessment is the assessor's parsed output. Metrics and Feedback may be
// absent in the raw response and are backfilled by the state machine.
type Assessment struct {
	Scores   ScoreSet
	Metrics  *Metrics
	Feedback []FeedbackItem
}
