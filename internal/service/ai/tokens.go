package ai

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/zhouzirui/poet-chat/backend/internal/model/chat"
)

// fallbackEncoding covers fine-tuned and non-OpenAI model ids tiktoken does
// not know by name.
const fallbackEncoding = "cl100k_base"

// retryInterval 编码加载失败后的最短重试间隔
const retryInterval = time.Minute

// ErrEncodingNotReady is returned by Count until the encoding has loaded.
var ErrEncodingNotReady = errors.New("token encoding not loaded yet")

type encoder interface {
	Encode(text string, allowedSpecial []string, disallowedSpecial []string) []int
}

// TokenCounter estimates the prompt size of a transcript. tiktoken downloads
// its BPE ranks on first load, so loading always runs in the background and
// Count never waits for it.
type TokenCounter struct {
	model string
	load  func(model string) (encoder, error)

	mu       sync.Mutex
	enc      encoder
	loading  chan struct{}
	lastErr  error
	failedAt time.Time
}

// NewTokenCounter returns a counter for the given model id. Call Warm at
// startup to begin loading the encoding.
func NewTokenCounter(model string) *TokenCounter {
	return &TokenCounter{model: model, load: loadEncoding}
}

func loadEncoding(model string) (encoder, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
	}
	if err != nil {
		return nil, err
	}
	return enc, nil
}

// Warm starts loading the encoding unless it is loaded or already loading.
// The returned channel closes when the current attempt finishes.
func (tc *TokenCounter) Warm() <-chan struct{} {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.warmLocked()
}

func (tc *TokenCounter) warmLocked() <-chan struct{} {
	if tc.enc != nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	if tc.loading != nil {
		return tc.loading
	}

	done := make(chan struct{})
	tc.loading = done
	go func() {
		enc, err := tc.load(tc.model)

		tc.mu.Lock()
		defer tc.mu.Unlock()
		tc.loading = nil
		if err != nil {
			tc.lastErr = err
			tc.failedAt = time.Now()
			log.Printf("[ai] tiktoken encoding for model=%s failed to load: %v", tc.model, err)
		} else {
			tc.enc = enc
			tc.lastErr = nil
		}
		close(done)
	}()
	return done
}

// Count returns the approximate prompt tokens for turns, using the
// per-message overhead of the gpt-3.5/gpt-4 chat format. While the encoding
// is not loaded it returns ErrEncodingNotReady and, after a failed load,
// schedules a retry at most once per retryInterval.
func (tc *TokenCounter) Count(turns []chat.Turn) (int, error) {
	tc.mu.Lock()
	enc := tc.enc
	if enc == nil {
		lastErr := tc.lastErr
		if tc.loading == nil && (lastErr == nil || time.Since(tc.failedAt) >= retryInterval) {
			tc.warmLocked()
		}
		tc.mu.Unlock()
		if lastErr != nil {
			return 0, fmt.Errorf("%w: %v", ErrEncodingNotReady, lastErr)
		}
		return 0, ErrEncodingNotReady
	}
	tc.mu.Unlock()

	const (
		tokensPerMessage = 3
		replyPriming     = 3
	)
	total := replyPriming
	for _, turn := range turns {
		total += tokensPerMessage
		total += len(enc.Encode(string(turn.Role), nil, nil))
		total += len(enc.Encode(turn.Content, nil, nil))
	}
	return total, nil
}
