package pipeline

import (
	"strings"

	"github.com/mmiprep/assessment-worker/internal/domain"
)

const (
	// shortResponseSecs is the duration under which scores are capped. A
	// response under two minutes cannot demonstrate enough depth for a full
	// score regardless of content quality.
	shortResponseSecs = 120.0
	// shortResponseCap is the maximum score awarded to a short response.
	shortResponseCap = 30
)

const durationCapNote = "Your scores were capped at 30 because the response duration was under two minutes. Aim for a 4-5 minute response to fully demonstrate your reasoning."

// durationMentions are the substrings that mark existing feedback as already
// covering response length, so the disclosure note is not duplicated.
var durationMentions = []string{"duration", "length", "time"}

// ApplyDurationCap clamps scores for short responses and prepends a
// disclosure note explaining the cap. The inputs are not mutated and the
// rule is idempotent: re-applying it to capped output changes nothing.
func ApplyDurationCap(scores domain.ScoreSet, feedback []domain.FeedbackItem, totalDuration float64) (domain.ScoreSet, []domain.FeedbackItem) {
	if totalDuration > shortResponseSecs {
		return scores, feedback
	}

	capped := make(domain.ScoreSet, len(scores))
	for category, score := range scores {
		if score > shortResponseCap {
			score = shortResponseCap
		}
		capped[category] = score
	}

	if mentionsDuration(feedback) {
		return capped, feedback
	}

	out := make([]domain.FeedbackItem, 0, len(feedback)+1)
	out = append(out, domain.FeedbackItem{Timestamp: "00:00", Note: durationCapNote})
	out = append(out, feedback...)
	return capped, out
}

func mentionsDuration(feedback []domain.FeedbackItem) bool {
	for _, item := range feedback {
		note := strings.ToLower(item.Note)
		for _, mention := range durationMentions {
			if strings.Contains(note, mention) {
				return true
			}
		}
	}
	return false
}
