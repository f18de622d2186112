package pipeline

import (
	"strings"
	"testing"

	"github.com/mmiprep/assessment-worker/internal/domain"
)

func segmentsWithEnd(end float64) []domain.TranscriptSegment {
	return []domain.TranscriptSegment{
		{Start: 0, End: end / 2, Text: "first half"},
		{Start: end / 2, End: end, Text: "second half"},
	}
}

func TestEvaluateQuality_EmptyTranscript(t *testing.T) {
	verdict := EvaluateQuality("", nil)

	if verdict.Usable {
		t.Error("expected empty transcript to be not usable")
	}
	if verdict.WordCount != 0 {
		t.Errorf("expected word count 0, got %d", verdict.WordCount)
	}
	if verdict.TotalDuration != 0 {
		t.Errorf("expected total duration 0, got %f", verdict.TotalDuration)
	}
}

func TestEvaluateQuality_FewWordsAlwaysRejected(t *testing.T) {
	// Under 15 words is not usable regardless of duration.
	transcript := "only a handful of words spoken here in total really"
	for _, end := range []float64{0, 5, 60, 600} {
		verdict := EvaluateQuality(transcript, segmentsWithEnd(end))
		if verdict.Usable {
			t.Errorf("expected not usable at duration %f", end)
		}
	}
}

func TestEvaluateQuality_ShortCharLengthRejected(t *testing.T) {
	// 16 single-letter words: word count passes, character length does not.
	transcript := strings.TrimSpace(strings.Repeat("a ", 16))
	verdict := EvaluateQuality(transcript, segmentsWithEnd(8))

	if verdict.Usable {
		t.Error("expected short transcript to be not usable")
	}
	if verdict.WordCount != 16 {
		t.Errorf("expected word count 16, got %d", verdict.WordCount)
	}
}

func TestEvaluateQuality_LowDensityRejected(t *testing.T) {
	// 20 words over 100 seconds: 0.2 words/sec is below the density floor
	// even though the word count and character length both pass.
	transcript := strings.TrimSpace(strings.Repeat("mumble ", 20))
	verdict := EvaluateQuality(transcript, segmentsWithEnd(100))

	if verdict.Usable {
		t.Error("expected low-density transcript to be not usable")
	}
}

func TestEvaluateQuality_DensityIgnoredForShortRecordings(t *testing.T) {
	// Density only applies above the 10 second window.
	transcript := strings.TrimSpace(strings.Repeat("quick ", 20))
	verdict := EvaluateQuality(transcript, segmentsWithEnd(9))

	if !verdict.Usable {
		t.Error("expected short dense recording to be usable")
	}
}

func TestEvaluateQuality_NormalResponseUsable(t *testing.T) {
	transcript := strings.TrimSpace(strings.Repeat("a considered answer with substance ", 30))
	verdict := EvaluateQuality(transcript, segmentsWithEnd(240))

	if !verdict.Usable {
		t.Error("expected normal response to be usable")
	}
	if verdict.TotalDuration != 240 {
		t.Errorf("expected total duration 240, got %f", verdict.TotalDuration)
	}
}

func TestNotUsableResults_CannedPayload(t *testing.T) {
	results := NotUsableResults("some transcript")

	if len(results.Scores) != len(domain.Categories) {
		t.Fatalf("expected %d score categories, got %d", len(domain.Categories), len(results.Scores))
	}
	for category, score := range results.Scores {
		if score != 0 {
			t.Errorf("expected zero score for %s, got %d", category, score)
		}
	}
	if results.Metrics.EyeContactPct != nil {
		t.Error("expected eyeContactPct to be null")
	}
	if results.Metrics.Note == "" {
		t.Error("expected a no-speech note on metrics")
	}
	if len(results.Feedback) != 1 || results.Feedback[0].Timestamp != "00:00" {
		t.Fatalf("expected a single 00:00 feedback entry, got %+v", results.Feedback)
	}
	if len(results.RecommendedArticles) != 0 {
		t.Errorf("expected no recommended articles, got %v", results.RecommendedArticles)
	}
	if results.Transcript != "some transcript" {
		t.Errorf("expected transcript preserved, got %q", results.Transcript)
	}
}
