package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/docuchat/backend/internal/apperr"
	"github.com/docuchat/backend/internal/llm"
	"github.com/docuchat/backend/internal/metrics"
	"github.com/docuchat/backend/internal/retrieval"
	"github.com/docuchat/backend/internal/storage/models"
	"github.com/docuchat/backend/pkg/logger"
)

const systemPrompt = `You are a helpful AI assistant. Answer the user's question based on the provided context from documents and the conversation history. If the context doesn't contain relevant information, say so. Keep your answer concise and accurate.`

// noContextMarker replaces the document context when nothing clears the
// similarity threshold, so the model never receives an empty, unexplained
// context block.
const noContextMarker = "No relevant documents were found for this question."

// Retriever finds chunks relevant to the question.
type Retriever interface {
	Search(ctx context.Context, query string, k int, threshold float64) ([]retrieval.SearchResult, error)
}

// Chatter is the chat capability.
type Chatter interface {
	Chat(ctx context.Context, messages []llm.Message) (string, error)
}

// ConversationStore persists conversations and their message logs.
type ConversationStore interface {
	CreateConversation(ctx context.Context, title string) (string, error)
	ConversationExists(ctx context.Context, conversationID string) (bool, error)
	History(ctx context.Context, conversationID string, limit int) ([]models.Message, error)
	AppendTurn(ctx context.Context, conversationID, question, answer string) error
}

type Config struct {
	TopK                int
	SimilarityThreshold float64
	HistoryLimit        int
}

type Answer struct {
	Question       string `json:"question"`
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id"`
}

// Engine assembles retrieval output and conversation history into a bounded
// prompt, invokes the chat capability, and records the turn.
type Engine struct {
	retriever Retriever
	store     ConversationStore
	chatter   Chatter
	cfg       Config
}

func NewEngine(retriever Retriever, store ConversationStore, chatter Chatter, cfg Config) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.7
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	return &Engine{
		retriever: retriever,
		store:     store,
		chatter:   chatter,
		cfg:       cfg,
	}
}

// Answer resolves the conversation, gathers context, and generates a reply.
// The user question and the assistant answer are persisted together only
// after the chat call succeeds; a failed turn leaves no message behind.
func (e *Engine) Answer(ctx context.Context, question, conversationID string) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, apperr.Wrapf(apperr.ErrValidation, "question cannot be empty")
	}

	if conversationID != "" {
		exists, err := e.store.ConversationExists(ctx, conversationID)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrAnswerFailed, fmt.Errorf("conversation lookup: %w", err))
		}
		if !exists {
			return nil, apperr.Wrapf(apperr.ErrConversationNotFound, "conversation %s", conversationID)
		}
	} else {
		id, err := e.store.CreateConversation(ctx, "")
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrAnswerFailed, fmt.Errorf("create conversation: %w", err))
		}
		conversationID = id
	}

	start := time.Now()

	answer, err := e.generate(ctx, question, conversationID)
	if err != nil {
		metrics.AnswersTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.AnswersTotal.WithLabelValues("success").Inc()
	metrics.AnswerDuration.Observe(time.Since(start).Seconds())

	logger.Info("Answer generated",
		zap.String("conversation_id", conversationID),
		zap.Int("answer_length", len(answer)),
	)

	return &Answer{
		Question:       question,
		Answer:         answer,
		ConversationID: conversationID,
	}, nil
}

func (e *Engine) generate(ctx context.Context, question, conversationID string) (string, error) {
	results, err := e.retriever.Search(ctx, question, e.cfg.TopK, e.cfg.SimilarityThreshold)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrAnswerFailed, err)
	}

	history, err := e.store.History(ctx, conversationID, e.cfg.HistoryLimit)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrAnswerFailed, fmt.Errorf("load history: %w", err))
	}

	messages := buildMessages(question, buildContext(results), history)

	answer, err := e.chatter.Chat(ctx, messages)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrAnswerFailed, fmt.Errorf("chat completion: %w", err))
	}
	answer = strings.TrimSpace(answer)

	if err := e.store.AppendTurn(ctx, conversationID, question, answer); err != nil {
		return "", apperr.Wrap(apperr.ErrAnswerFailed, fmt.Errorf("persist turn: %w", err))
	}

	return answer, nil
}

// buildContext concatenates retrieved chunks as source + relevance + text,
// or substitutes the explicit no-context marker.
func buildContext(results []retrieval.SearchResult) string {
	if len(results) == 0 {
		return noContextMarker
	}

	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, fmt.Sprintf("[Source: %s (relevance: %.2f)]\n%s", r.SourceFilename, r.Score, r.Content))
	}
	return strings.Join(parts, "\n\n")
}

// buildMessages orders the sequence: fixed system instruction, history
// turns mapped to their role, then the current question combined with the
// document context as the final user turn.
func buildMessages(question, context string, history []models.Message) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})

	for _, msg := range history {
		role := llm.RoleUser
		if msg.Role == models.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: msg.Content})
	}

	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf("Context from documents:\n%s\n\nCurrent question: %s", context, question),
	})

	return messages
}
