// File path: internal/requirements/extractor.go
package requirements

import (
	"context"
	"errors"
	"fmt"

	"github.com/nicodishanthj/rfpassist/internal/common"
	"github.com/nicodishanthj/rfpassist/internal/common/telemetry"
	"github.com/nicodishanthj/rfpassist/internal/llm"
)

// MaxInputChars bounds how much normalized text is sent to the model.
const MaxInputChars = 12000

type Extractor struct {
	provider llm.Provider
	opts     llm.ChatOptions
}

func NewExtractor(provider llm.Provider) *Extractor {
	return &Extractor{provider: provider, opts: llm.ChatOptions{Temperature: 0.2, MaxTokens: 1200}}
}

// Extract asks the model for the requirements in text and parses its answer.
// Only a gateway failure is returned as an error; malformed output is
// reported through the Outcome of the result.
func (e *Extractor) Extract(ctx context.Context, text string) (Parsed, error) {
	if e == nil || e.provider == nil {
		return Parsed{}, errors.New("extractor has no provider")
	}
	ctx, end := telemetry.StartSpan(ctx, "extract_requirements")
	logger := common.Logger()
	raw, err := e.provider.Chat(ctx, BuildMessages(text), e.opts)
	if err != nil {
		end("error", err)
		return Parsed{}, fmt.Errorf("extract requirements: %w", err)
	}
	parsed := Parse(raw)
	telemetry.RecordExtraction(string(parsed.Outcome), len(parsed.Requirements))
	switch parsed.Outcome {
	case OutcomeFallback:
		logger.Warn("requirements: model output unparseable, using review placeholder", "response_chars", len(raw))
	case OutcomeRecovered:
		logger.Info("requirements: recovered list embedded in model output", "requirements", len(parsed.Requirements))
	default:
		logger.Debug("requirements: parsed model output", "requirements", len(parsed.Requirements))
	}
	end("outcome", string(parsed.Outcome))
	return parsed, nil
}

// BuildMessages assembles the two-message extraction prompt around the first
// MaxInputChars characters of text.
func BuildMessages(text string) []llm.Message {
	return []llm.Message{
		{Role: "system", Content: llm.SystemRequirementExtractor},
		{Role: "user", Content: llm.ParseRequirementsInstruction + "\n\nRFP TEXT:\n" + Truncate(text, MaxInputChars)},
	}
}

// Truncate keeps the first max characters (runes) of text.
func Truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}
	count := 0
	for idx := range text {
		if count == max {
			return text[:idx]
		}
		count++
	}
	return text
}
