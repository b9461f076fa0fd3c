package fallback

import "sync"

// CostSummary is the accumulated token usage and its price
type CostSummary struct {
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	USDTotal         float64 `json:"usd_total"`
}

// UsageTracker accumulates token usage across calls. Safe for concurrent use.
type UsageTracker struct {
	mu               sync.Mutex
	promptTokens     int64
	completionTokens int64
	priceInPer1K     float64
	priceOutPer1K    float64
}

// NewUsageTracker creates a tracker priced in USD per 1000 tokens
func NewUsageTracker(priceInPer1K, priceOutPer1K float64) *UsageTracker {
	return &UsageTracker{priceInPer1K: priceInPer1K, priceOutPer1K: priceOutPer1K}
}

// Add records one call. A nil tracker ignores it.
func (u *UsageTracker) Add(prompt, completion int64) {
	if u == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.promptTokens += prompt
	u.completionTokens += completion
}

func (u *UsageTracker) Summary() CostSummary {
	if u == nil {
		return CostSummary{}
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return CostSummary{
		PromptTokens:     u.promptTokens,
		CompletionTokens: u.completionTokens,
		USDTotal:         float64(u.promptTokens)/1000*u.priceInPer1K + float64(u.completionTokens)/1000*u.priceOutPer1K,
	}
}

func (u *UsageTracker) Reset() {
	if u == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.promptTokens, u.completionTokens = 0, 0
}
