package pipeline

import (
	"strings"

	"github.com/mmiprep/assessment-worker/internal/domain"
)

// Quality gate thresholds. A recording failing any of them carries too
// little speech to assess meaningfully.
const (
	minWordCount = 15
	minCharCount = 50
	// densityWindow/densityFloor catch long recordings that yield almost no
	// words: silence, background noise, or non-speech audio.
	densityWindowSecs = 10.0
	densityFloor      = 0.3
)

// Verdict is the quality gate's classification of a transcript.
type Verdict struct {
	Usable        bool
	WordCount     int
	TotalDuration float64
}

// EvaluateQuality classifies a transcript as usable or not. TotalDuration is
// the end time of the last segment, or zero when there are no segments.
func EvaluateQuality(transcript string, segments []domain.TranscriptSegment) Verdict {
	wordCount := len(strings.Fields(transcript))

	totalDuration := 0.0
	if len(segments) > 0 {
		totalDuration = segments[len(segments)-1].End
	}

	verdict := Verdict{
		Usable:        true,
		WordCount:     wordCount,
		TotalDuration: totalDuration,
	}

	switch {
	case wordCount < minWordCount:
		verdict.Usable = false
	case len(strings.TrimSpace(transcript)) < minCharCount:
		verdict.Usable = false
	case totalDuration > densityWindowSecs && float64(wordCount)/totalDuration < densityFloor:
		verdict.Usable = false
	}
	return verdict
}

// NotUsableResults is the canned payload written when the gate rejects a
// recording. The job still completes: an unusable recording is a valid
// pipeline outcome, not a failure.
func NotUsableResults(transcript string) *domain.AttemptResults {
	return &domain.AttemptResults{
		Transcript: transcript,
		Scores:     domain.NewZeroScoreSet(),
		Metrics: domain.Metrics{
			WordsPerMinute:  0,
			FillerWordCount: 0,
			EyeContactPct:   nil,
			Note:            "No clear speech was detected in this recording.",
		},
		Feedback: []domain.FeedbackItem{
			{
				Timestamp: "00:00",
				Note:      "We couldn't detect enough clear speech to assess this response. Please re-record in a quiet environment with your microphone close by.",
			},
		},
		RecommendedArticles: []string{},
	}
}
