// Package tokenizer counts prompt tokens so oversized schema prompts are
// rejected before they reach the model.
package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/querysense/querysense/llm"
)

// Tokenizer counts tokens for a model family.
type Tokenizer interface {
	CountTokens(text string) (int, error)
	CountMessages(messages []llm.Message) (int, error)
}

// modelEncodings maps model name prefixes to tiktoken encodings.
var modelEncodings = map[string]string{
	"gpt-4o":        "o200k_base",
	"gpt-4":         "cl100k_base",
	"gpt-3.5-turbo": "cl100k_base",
}

// TiktokenTokenizer counts tokens with tiktoken, lazily initialized.
type TiktokenTokenizer struct {
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
}

// New creates a tokenizer for the given model. Unknown models fall back to
// cl100k_base, which over-counts slightly for newer encodings; the budget
// check only needs an upper-bound estimate.
func New(model string) *TiktokenTokenizer {
	encoding := "cl100k_base"
	for prefix, enc := range modelEncodings {
		if strings.HasPrefix(model, prefix) {
			encoding = enc
			break
		}
	}
	return &TiktokenTokenizer{encoding: encoding}
}

// init lazily loads the encoding (may download data on first use).
func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

// CountTokens counts tokens in a text.
func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

// CountMessages counts tokens for a message list, including the per-message
// framing overhead used by OpenAI chat models.
func (t *TiktokenTokenizer) CountMessages(messages []llm.Message) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}

	total := 0
	for _, msg := range messages {
		// Per-message overhead: <|start|>role\n content<|end|>\n
		total += 4
		total += len(t.enc.Encode(msg.Content, nil, nil))
		total += len(t.enc.Encode(string(msg.Role), nil, nil))
	}
	total += 3 // conversation-end overhead
	return total, nil
}

// Estimator approximates token counts without encoding data, used when
// tiktoken data is unavailable (e.g. air-gapped deployments).
type Estimator struct{}

// CountTokens estimates ~4 characters per token.
func (Estimator) CountTokens(text string) (int, error) {
	return (len(text) + 3) / 4, nil
}

// CountMessages estimates message tokens with framing overhead.
func (e Estimator) CountMessages(messages []llm.Message) (int, error) {
	total := 3
	for _, msg := range messages {
		n, _ := e.CountTokens(msg.Content)
		total += n + 4
	}
	return total, nil
}
