package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encoderMu    sync.Mutex
	encoderCache = map[string]*tiktoken.Tiktoken{}
)

// CountTokens estimates the token count of text for the given model. It is
// used when an upstream response omits usage numbers, so metering never
// records zero for a non-empty exchange. Unknown models fall back to the
// cl100k_base encoding, and if the tokenizer itself is unavailable a
// four-characters-per-token heuristic is used.
func CountTokens(model, text string) int {
	if text == "" {
		return 0
	}

	enc := encoderFor(model)
	if enc == nil {
		return (len(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// CountMessageTokens sums the token estimate over all message contents.
func CountMessageTokens(model string, messages []Message) int {
	total := 0
	for _, m := range messages {
		total += CountTokens(model, m.Content)
	}
	return total
}

func encoderFor(model string) *tiktoken.Tiktoken {
	encoderMu.Lock()
	defer encoderMu.Unlock()

	if enc, ok := encoderCache[model]; ok {
		return enc
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			encoderCache[model] = nil
			return nil
		}
	}
	encoderCache[model] = enc
	return enc
}
