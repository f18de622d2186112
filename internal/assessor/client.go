// Package assessor provides the LLM-backed scoring client. It sends the
// timestamped transcript to Claude and parses the structured JSON verdict.
package assessor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mmiprep/assessment-worker/internal/config"
	"github.com/mmiprep/assessment-worker/internal/domain"
)

var (
	// ErrMissingScores indicates the model response lacked the required
	// scores object. This is a contract violation, not a transient fault.
	ErrMissingScores = errors.New("assessor response missing scores object")
	// ErrNoJSON indicates no JSON object could be located in the reply.
	ErrNoJSON = errors.New("assessor response contains no JSON object")
)

const systemPrompt = `You are an experienced multiple mini interview (MMI) examiner.
You will receive a timestamped transcript of a candidate's recorded practice response.
Score the response and reply with a single JSON object and nothing else:
{
  "scores": {"Structure": 0-100, "Communication": 0-100, "Empathy": 0-100, "Ethics": 0-100, "Professionalism": 0-100, "Motivation": 0-100, "Teamwork": 0-100, "Overall": 0-100},
  "metrics": {"wordsPerMinute": number, "fillerWordCount": number, "eyeContactPct": number or null},
  "feedback": [{"ts": "mm:ss", "note": "specific, actionable observation"}]
}
Anchor every feedback note to a transcript timestamp.`

// Client assesses transcripts with the Anthropic Messages API.
type Client struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// NewClient creates an assessor client.
func NewClient(cfg config.AssessorConfig) *Client {
	return &Client{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

// Assess submits the timestamped transcript and returns the parsed result.
// Metrics and Feedback may be nil when the model omitted them; the caller
// backfills safe defaults. A missing scores object returns ErrMissingScores.
func (c *Client) Assess(ctx context.Context, stampedTranscript string) (*domain.Assessment, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(stampedTranscript)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("assessor request: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return parseAssessment(sb.String())
}

type rawAssessment struct {
	Scores   map[string]int        `json:"scores"`
	Metrics  *domain.Metrics       `json:"metrics"`
	Feedback []domain.FeedbackItem `json:"feedback"`
}

// parseAssessment extracts the first JSON object from the model reply and
// validates the scores contract.
func parseAssessment(reply string) (*domain.Assessment, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, ErrNoJSON
	}

	var raw rawAssessment
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("decode assessment: %w", err)
	}
	if raw.Scores == nil {
		return nil, ErrMissingScores
	}

	return &domain.Assessment{
		Scores:   domain.ScoreSet(raw.Scores),
		Metrics:  raw.Metrics,
		Feedback: raw.Feedback,
	}, nil
}
