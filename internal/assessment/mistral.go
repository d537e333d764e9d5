package assessment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mlehnert/videokurs-bot/internal/config"
	"github.com/mlehnert/videokurs-bot/internal/domain/entities"
)

const placementSystemPrompt = "You are a placement test evaluator. " +
	"Given a question and a user's answer, respond with ONLY ONE WORD: " +
	`"Beginner", "Intermediate", or "Advanced". ` +
	"Do not include any explanation or extra text."

const assessmentSystemPrompt = "You are an educational assistant AI. " +
	"Help the user improve their understanding of the video content. " +
	"Engage with the user answer in a short chat style. Stay positive and encouraging. " +
	"Finish with a question to the user to deepen their understanding."

// MistralOracle implements Oracle against Mistral's OpenAI-compatible
// chat-completions API.
type MistralOracle struct {
	client          *openai.Client
	placementModel  string
	assessmentModel string
}

// NewMistralOracle creates an oracle for the configured endpoint and models.
func NewMistralOracle(cfg config.Mistral) *MistralOracle {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &MistralOracle{
		client:          openai.NewClientWithConfig(clientConfig),
		placementModel:  cfg.PlacementModel,
		assessmentModel: cfg.AssessmentModel,
	}
}

func (o *MistralOracle) ClassifyPlacement(ctx context.Context, question, answer string) (entities.Level, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.placementModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf("%s Question: %s", placementSystemPrompt, question)},
			{Role: openai.ChatMessageRoleUser, Content: answer},
		},
		MaxTokens:   2,
		Temperature: 0.1,
	})
	if err != nil {
		return "", fmt.Errorf("placement completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("placement completion: no choices")
	}

	return ParsePlacement(resp.Choices[0].Message.Content)
}

func (o *MistralOracle) AssessResponse(ctx context.Context, question, answer, benchmark, history string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.assessmentModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: assessmentSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildAssessmentPrompt(question, answer, benchmark, history)},
		},
		MaxTokens:   200,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("assessment completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("assessment completion: no choices")
	}

	return ParseFeedback(resp.Choices[0].Message.Content), nil
}

func buildAssessmentPrompt(question, answer, benchmark, history string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Question: %s\n", question)
	fmt.Fprintf(&b, "User's Answer: %s\n", answer)
	if benchmark != "" {
		fmt.Fprintf(&b, "Context: %s\n", benchmark)
	}
	if history != "" {
		fmt.Fprintf(&b, "Previous conversation:\n%s\n", history)
	}
	b.WriteString("\nPlease provide a JSON response with the following structure:\n")
	b.WriteString(`{"feedback": "<constructive feedback about their response>"}`)

	return b.String()
}

// ParsePlacement validates the model's one-word placement label.
func ParsePlacement(raw string) (entities.Level, error) {
	switch entities.Level(strings.TrimSpace(raw)) {
	case entities.LevelBeginner:
		return entities.LevelBeginner, nil
	case entities.LevelIntermediate:
		return entities.LevelIntermediate, nil
	case entities.LevelAdvanced:
		return entities.LevelAdvanced, nil
	default:
		return "", fmt.Errorf("unexpected placement group: %q", raw)
	}
}

// ParseFeedback extracts the feedback field from the model's response. The
// model is asked for JSON but does not always comply; fenced blocks are
// unwrapped and malformed output is returned verbatim.
func ParseFeedback(raw string) string {
	text := stripFences(strings.TrimSpace(raw))

	var parsed struct {
		Feedback string `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil || parsed.Feedback == "" {
		return text
	}

	return parsed.Feedback
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")

	return strings.TrimSpace(s)
}
