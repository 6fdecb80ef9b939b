package openai

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cloo-solutions/pdfrag/internal/domain"
)

const (
	DefaultChatModel = openai.GPT4oMini

	answerMaxTokens   = 1024
	answerTemperature = 0.2

	answerSystemPrompt = "You answer questions using only the provided context."
)

// ChatAPI defines the interface for chat completions
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Answerer generates an answer to a question from retrieved context passages.
type Answerer struct {
	api   ChatAPI
	model string
}

func NewAnswerer(cfg Config) *Answerer {
	cfg = cfg.withDefaults()
	return NewAnswererWithAPI(NewAPIClient(cfg), cfg.ChatModel)
}

// NewAnswererWithAPI accepts any ChatAPI; *openai.Client satisfies it.
func NewAnswererWithAPI(api ChatAPI, model string) *Answerer {
	if model == "" {
		model = DefaultChatModel
	}
	return &Answerer{api: api, model: model}
}

// GenerateAnswer asks the chat model to answer question using only contexts.
func (a *Answerer) GenerateAnswer(ctx context.Context, question string, contexts []string) (string, error) {
	resp, err := a.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		MaxTokens:   answerMaxTokens,
		Temperature: answerTemperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: answerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildAnswerPrompt(question, contexts)},
		},
	})
	if err != nil {
		return "", domain.NewServiceError("answer", "chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.NewServiceError("answer", "malformed response: no choices returned", nil)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// BuildAnswerPrompt renders contexts as a bullet list followed by the question.
func BuildAnswerPrompt(question string, contexts []string) string {
	bullets := make([]string, len(contexts))
	for i, c := range contexts {
		bullets[i] = "- " + c
	}

	var b strings.Builder
	b.WriteString("Use the following context to answer the question.\n\n")
	b.WriteString("Context:\n")
	b.WriteString(strings.Join(bullets, "\n\n"))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\nAnswer concisely using the context above.")
	return b.String()
}
