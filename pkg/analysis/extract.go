package analysis

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/kaptinlin/jsonrepair"
)

// RawVerdict is the untyped object recovered from model output. Any key may
// be missing and any value may have an unexpected type.
type RawVerdict map[string]any

var (
	thinkBlockRe = regexp.MustCompile(`(?s)<think>.*?</think>`)
	// Greedy on purpose: the span runs from the first '{' to the last '}'.
	// Two separate objects in one response are captured together and then
	// fail to parse.
	objectSpanRe = regexp.MustCompile(`(?s)\{.*\}`)
)

// Extractor recovers one JSON object from noisy model output.
type Extractor struct {
	// Repair retries a span that fails to parse through jsonrepair before
	// giving up. Off by default.
	Repair bool
}

// ExtractJSON is Extractor{}.Extract.
func ExtractJSON(text string) RawVerdict {
	return Extractor{}.Extract(text)
}

// Extract strips <think> blocks and code fences, then parses the greedy
// brace span. It never fails: unusable input yields an empty RawVerdict.
func (e Extractor) Extract(text string) RawVerdict {
	span, ok := objectSpan(text)
	if !ok {
		return RawVerdict{}
	}

	var raw RawVerdict
	err := sonic.ConfigStd.UnmarshalFromString(span, &raw)
	if err == nil && raw != nil {
		return raw
	}
	if !e.Repair {
		slog.Debug("Model output is not valid JSON", "error", err)
		return RawVerdict{}
	}

	fixed, repairErr := jsonrepair.JSONRepair(span)
	if repairErr != nil {
		slog.Debug("Model output could not be repaired", "error", repairErr)
		return RawVerdict{}
	}
	raw = nil
	if err := sonic.ConfigStd.UnmarshalFromString(fixed, &raw); err != nil || raw == nil {
		return RawVerdict{}
	}
	return raw
}

func objectSpan(text string) (string, bool) {
	text = thinkBlockRe.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	span := objectSpanRe.FindString(text)
	return span, span != ""
}
