package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/docuchat/backend/internal/metrics"
	"github.com/docuchat/backend/pkg/circuitbreaker"
	"github.com/docuchat/backend/pkg/logger"
)

// Message roles for the chat capability.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn handed to the chat capability.
type Message struct {
	Role    string
	Content string
}

// Client provides the embedding and chat capabilities. It is a process-wide
// singleton constructed in main and safe for concurrent use. Calls go
// through a circuit breaker but are never retried here; retry policy
// belongs to the caller.
type Client struct {
	client         *openai.Client
	model          string
	embeddingModel string
	temperature    float32
	maxTokens      int
	cb             *circuitbreaker.CircuitBreaker
}

func NewClient(apiKey, model, embeddingModel string, temperature float32, maxTokens int) *Client {
	cb := circuitbreaker.New("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	logger.Info("LLM client initialized",
		zap.String("model", model),
		zap.String("embedding_model", embeddingModel),
	)

	return &Client{
		client:         openai.NewClient(apiKey),
		model:          model,
		embeddingModel: embeddingModel,
		temperature:    temperature,
		maxTokens:      maxTokens,
		cb:             cb,
	}
}

// Chat sends the ordered message sequence and returns the model's reply.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	var content string

	err := c.cb.Execute(ctx, func() error {
		resp, err := c.client.CreateChatCompletion(
			ctx,
			openai.ChatCompletionRequest{
				Model:       c.model,
				Messages:    chatMessages,
				Temperature: c.temperature,
				MaxTokens:   c.maxTokens,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to create completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("completion returned no choices")
		}

		metrics.LLMTokensUsed.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

		logger.Debug("Chat completion generated",
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		)

		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}

	return content, nil
}

// Embed computes the embedding vector for one text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var embedding []float32

	err := c.cb.Execute(ctx, func() error {
		resp, err := c.client.CreateEmbeddings(
			ctx,
			openai.EmbeddingRequest{
				Input: []string{text},
				Model: openai.EmbeddingModel(c.embeddingModel),
			},
		)
		if err != nil {
			return fmt.Errorf("failed to generate embedding: %w", err)
		}
		if len(resp.Data) == 0 {
			return fmt.Errorf("embedding response was empty")
		}

		embedding = append([]float32(nil), resp.Data[0].Embedding...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return embedding, nil
}

// EmbedBatch embeds texts in batches of 100, preserving input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	const batchSize = 100

	embeddings := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]

		err := c.cb.Execute(ctx, func() error {
			resp, err := c.client.CreateEmbeddings(
				ctx,
				openai.EmbeddingRequest{
					Input: batch,
					Model: openai.EmbeddingModel(c.embeddingModel),
				},
			)
			if err != nil {
				return fmt.Errorf("failed to generate batch embeddings: %w", err)
			}
			if len(resp.Data) != len(batch) {
				return fmt.Errorf("embedding count mismatch: got %d, expected %d", len(resp.Data), len(batch))
			}

			for _, data := range resp.Data {
				embeddings = append(embeddings, append([]float32(nil), data.Embedding...))
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	logger.Debug("Batch embeddings generated", zap.Int("count", len(embeddings)))

	return embeddings, nil
}
