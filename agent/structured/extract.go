// Package structured coerces free-form model text into typed records. The
// remote service is unreliable about format compliance, so extraction is a
// best-effort fallback chain and parsing gets one repair round-trip.
package structured

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	contractx "github.com/merrysway/coffeebot/agent/contract"
)

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// Extract returns the most plausible structured-data substring of raw text.
// Preference order: a fenced block tagged as json, the first greedy outer
// brace span, then the trimmed input. It never fails; the worst case is
// returning unparsable text.
func Extract(raw string) string {
	if m := fencedBlockRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			return raw[start : end+1]
		}
	}

	return strings.TrimSpace(raw)
}

// ParseWithRepair extracts and strictly parses raw into T. On a parse
// failure it asks the gateway to repair the extracted text exactly once and
// re-parses; a second failure surfaces ErrMalformedOutput so the caller can
// substitute its stage default.
func ParseWithRepair[T any](ctx context.Context, gw contractx.Gateway, model string, raw string) (T, error) {
	var out T

	candidate := Extract(raw)
	if err := json.Unmarshal([]byte(candidate), &out); err == nil {
		return out, nil
	}

	repaired, err := gw.Repair(ctx, model, candidate)
	if err != nil {
		return out, fmt.Errorf("%w: repair call failed: %v", contractx.ErrMalformedOutput, err)
	}
	if err := json.Unmarshal([]byte(Extract(repaired)), &out); err != nil {
		return out, fmt.Errorf("%w: %v", contractx.ErrMalformedOutput, err)
	}
	return out, nil
}
