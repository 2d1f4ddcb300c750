// Package utils provides small shared helpers: token counting and the
// state directory.
package utils

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts tokens for a specific model.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
	mu       sync.RWMutex
}

// Message is a role/content pair for token counting.
type Message struct {
	Role    string
	Content string
}

var (
	// Encodings are expensive to build; cache them per model.
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// NewTokenCounter creates a counter for the given model. Models without
// a native tiktoken mapping (deepseek among them) fall back to
// cl100k_base, which is close enough for budgeting.
func NewTokenCounter(model string) (*TokenCounter, error) {
	cacheMu.RLock()
	cached, exists := encodingCache[model]
	cacheMu.RUnlock()

	if exists {
		return &TokenCounter{encoding: cached, model: model}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding(EncodingForModel(model))
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}

	cacheMu.Lock()
	encodingCache[model] = encoding
	cacheMu.Unlock()

	return &TokenCounter{encoding: encoding, model: model}, nil
}

// Count returns the token count for text.
func (tc *TokenCounter) Count(text string) int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	return len(tc.encoding.Encode(text, nil, nil))
}

// CountMessages counts tokens in a message list including the per-message
// framing overhead and the reply priming, following OpenAI's accounting.
func (tc *TokenCounter) CountMessages(messages []Message) int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	const tokensPerMessage = 3

	totalTokens := 0
	for _, msg := range messages {
		totalTokens += tokensPerMessage
		totalTokens += len(tc.encoding.Encode(msg.Role, nil, nil))
		totalTokens += len(tc.encoding.Encode(msg.Content, nil, nil))
	}

	// Every reply is primed with <|start|>assistant<|message|>
	totalTokens += 3

	return totalTokens
}

// FitWithinLimit returns the suffix of messages that fits the token
// budget, keeping the most recent turns.
func (tc *TokenCounter) FitWithinLimit(messages []Message, maxTokens int) []Message {
	if len(messages) == 0 {
		return messages
	}

	fitted := []Message{}
	currentTokens := 3 // reply priming

	for i := len(messages) - 1; i >= 0; i-- {
		msgTokens := tc.CountMessages([]Message{messages[i]})
		if currentTokens+msgTokens > maxTokens {
			break
		}
		fitted = append([]Message{messages[i]}, fitted...)
		currentTokens += msgTokens
	}

	return fitted
}

// Model returns the model name this counter was built for.
func (tc *TokenCounter) Model() string {
	return tc.model
}

// EstimateTokens gives a rough estimate (4 chars per token) for call
// sites that cannot afford an encoding.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// EncodingForModel maps a model name to its tiktoken encoding name.
func EncodingForModel(model string) string {
	encodingMap := map[string]string{
		"gpt-4o":            "o200k_base",
		"gpt-4o-mini":       "o200k_base",
		"gpt-4":             "cl100k_base",
		"gpt-3.5-turbo":     "cl100k_base",
		"deepseek-chat":     "cl100k_base",
		"deepseek-reasoner": "cl100k_base",
		"deepseek-coder":    "cl100k_base",
	}

	if encoding, exists := encodingMap[model]; exists {
		return encoding
	}

	for modelPrefix, encoding := range encodingMap {
		if strings.HasPrefix(model, modelPrefix) {
			return encoding
		}
	}

	return "cl100k_base"
}
