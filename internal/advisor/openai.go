package advisor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"mailtriage/internal/model"
	"mailtriage/pkg/config"
)

// OpenAI answers every request with a chat completion. It returns errors
// instead of falling back; wrap it in Resilient for fallback behaviour.
type OpenAI struct {
	client openai.Client
	model  string
}

func NewOpenAI(cfg config.AIConfig) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(base, "/")+"/"))
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	return &OpenAI{client: openai.NewClient(opts...), model: model}
}

func (o *OpenAI) complete(ctx context.Context, system, user string, maxTokens int64, temperature float64) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		MaxTokens:   openai.Int(maxTokens),
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices returned")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("chat completion: empty content")
	}
	return content, nil
}

func emailPrompt(subject, body string, limit int) string {
	return fmt.Sprintf("Subject: %s\n\nBody: %s...", subject, truncateRunes(body, limit))
}

func (o *OpenAI) Summarize(ctx context.Context, subject, body string) (string, error) {
	return o.complete(ctx,
		"You are an email summarizer. Create concise, informative summaries of emails in 1-2 sentences.",
		emailPrompt(subject, body, 1000)+"\n\nSummarize this email:",
		100, 0.3)
}

// SuggestFollowUps returns the generated suggestions only, one per
// non-empty line.
func (o *OpenAI) SuggestFollowUps(ctx context.Context, subject, body string, category model.Category) ([]string, error) {
	out, err := o.complete(ctx,
		"You are an email assistant. Generate 2-3 specific, actionable follow-up suggestions for emails. Keep them concise and practical.",
		fmt.Sprintf("%s\n\nCategory: %s\n\nGenerate follow-up suggestions:", emailPrompt(subject, body, 500), category),
		150, 0.7)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func (o *OpenAI) Sentiment(ctx context.Context, subject, body string) (model.Sentiment, error) {
	out, err := o.complete(ctx,
		"Analyze the sentiment of this email. Respond with only: positive, negative, neutral, or urgent.",
		emailPrompt(subject, body, 500),
		10, 0.1)
	if err != nil {
		return "", err
	}
	s := model.Sentiment(strings.Trim(strings.ToLower(out), " .!\"'"))
	switch s {
	case model.SentimentPositive, model.SentimentNegative, model.SentimentNeutral, model.SentimentUrgent:
		return s, nil
	}
	return "", fmt.Errorf("unexpected sentiment %q", out)
}

func (o *OpenAI) DailyNarrative(ctx context.Context, summaries []model.EmailSummary) (string, error) {
	if len(summaries) == 0 {
		return "No emails to summarize.", nil
	}
	var b strings.Builder
	for i, s := range summaries {
		if i == 10 {
			break
		}
		fmt.Fprintf(&b, "- subject: %s | sender: %s | category: %s | priority: %s | summary: %s\n",
			s.Subject, s.Sender, s.Category, s.Priority, s.Summary)
	}
	return o.complete(ctx,
		"You are an email assistant creating a natural language daily summary. Write a conversational summary that highlights important emails, urgent items, and key themes from the day's emails.",
		"Create a natural language summary of these emails:\n\n"+b.String(),
		300, 0.7)
}

func (o *OpenAI) EstimateUrgency(ctx context.Context, subject, body string) (float64, error) {
	out, err := o.complete(ctx,
		"You are an email urgency analyzer. Rate the urgency of emails from 0 to 1, where 0 is not urgent and 1 is extremely urgent.",
		emailPrompt(subject, body, 500)+"\n\nRate the urgency from 0 to 1:",
		10, 0.1)
	if err != nil {
		return 0, err
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("parse urgency %q: %w", out, err)
	}
	return score, nil
}
