// Package completion реализует клиента внешнего сервиса генерации текста.
// Поверх одного chat-completion API сервис предоставляет четыре задачи:
// краткое изложение, заполнение поля, генерацию и анализ текста.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Задачи генерации текста.
const (
	TaskSummarize = "summarize"
	TaskFillField = "fill-field"
	TaskGenerate  = "generate"
	TaskAnalyze   = "analyze"
)

// ErrUnknownTask возвращается для задачи вне известного набора.
var ErrUnknownTask = errors.New("unknown completion task")

// ErrProviderUnavailable возвращается, когда внешний сервис недоступен
// или ответил ошибкой. Запрос при этом не списывается с квоты.
var ErrProviderUnavailable = errors.New("completion provider unavailable")

// Provider описывает выполнение одной задачи генерации текста.
type Provider interface {
	Complete(ctx context.Context, task, input string, maxLength int) (string, error)
}

// Client — HTTP-клиент chat-completion API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient создаёт нового клиента сервиса генерации.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// prompts — системные промпты по задачам.
var prompts = map[string]string{
	TaskSummarize: "Summarize the following text concisely, keeping the key facts.",
	TaskFillField: "Suggest a value for the described form field. Reply with the value only.",
	TaskGenerate:  "Write a text based on the following instructions.",
	TaskAnalyze:   "Analyze the following text: main points, tone, notable issues.",
}

type chatRequest struct {
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete выполняет задачу task над входным текстом input.
// maxLength ограничивает длину ответа в токенах; 0 — без ограничения.
func (c *Client) Complete(ctx context.Context, task, input string, maxLength int) (string, error) {
	const op = "completion.Complete"

	prompt, ok := prompts[task]
	if !ok {
		return "", fmt.Errorf("%s: %s: %w", op, task, ErrUnknownTask)
	}

	payload := chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: input},
		},
		MaxTokens: maxLength,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: status %s: %w", op, resp.Status, ErrProviderUnavailable)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, ErrProviderUnavailable, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%s: empty response: %w", op, ErrProviderUnavailable)
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// KnownTask сообщает, входит ли task в поддерживаемый набор.
func KnownTask(task string) bool {
	_, ok := prompts[task]
	return ok
}
