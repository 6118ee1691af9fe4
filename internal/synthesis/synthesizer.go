// File path: internal/synthesis/synthesizer.go
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nicodishanthj/rfpassist/internal/common"
	"github.com/nicodishanthj/rfpassist/internal/common/telemetry"
	"github.com/nicodishanthj/rfpassist/internal/kb"
	"github.com/nicodishanthj/rfpassist/internal/llm"
	"github.com/nicodishanthj/rfpassist/internal/requirements"
)

const (
	defaultMaxTokens   = 2000
	paginatedMaxTokens = 3500
)

// Config points the synthesizer at its knowledge base.
type Config struct {
	KnowledgeBaseDir string
	MaxKBChars       int
}

// Draft is the synthesized HTML fragment plus the grounding it was built
// from.
type Draft struct {
	HTML      string
	MaxTokens int
	KB        kb.Excerpt
}

type Synthesizer struct {
	provider llm.Provider
	cfg      Config
}

func New(provider llm.Provider, cfg Config) *Synthesizer {
	if cfg.MaxKBChars <= 0 {
		cfg.MaxKBChars = kb.DefaultMaxChars
	}
	return &Synthesizer{provider: provider, cfg: cfg}
}

// Synthesize drafts one HTML response covering reqs. Only content fields of
// the requirements are used.
func (s *Synthesizer) Synthesize(ctx context.Context, reqs []requirements.Requirement, houseRules string) (Draft, error) {
	if s == nil || s.provider == nil {
		return Draft{}, errors.New("synthesizer has no provider")
	}
	ctx, end := telemetry.StartSpan(ctx, "synthesize_draft")
	logger := common.Logger()

	excerpt := kb.Load(s.cfg.KnowledgeBaseDir, s.cfg.MaxKBChars)
	block := RequirementBlock(reqs)
	maxTokens := OutputBudget(reqs, block)
	logger.Debug("synthesis: prompt assembled", "requirements", len(reqs), "kb_sources", len(excerpt.Sources), "kb_chars", excerpt.Chars, "max_tokens", maxTokens)

	content, err := s.provider.Chat(ctx, BuildMessages(houseRules, block, excerpt.Text), llm.ChatOptions{Temperature: 0.2, MaxTokens: maxTokens})
	if err != nil {
		end("error", err)
		return Draft{}, fmt.Errorf("synthesize draft: %w", err)
	}
	body := CleanBody(content)
	end("body_chars", len(body))
	return Draft{HTML: Wrap(body), MaxTokens: maxTokens, KB: excerpt}, nil
}

// BuildMessages assembles the drafting prompt.
func BuildMessages(houseRules, requirementBlock, kbText string) []llm.Message {
	user := llm.SynthesizeAnswerInstruction +
		"\n\nHOUSE RULES:\n" + houseRules +
		"\n\nRFP REQUIREMENTS:\n" + requirementBlock +
		"\n\nFEDRAMP CONTEXT:\n" + kbText
	return []llm.Message{
		{Role: "system", Content: llm.SystemComplianceOnly},
		{Role: "user", Content: user},
	}
}

// RequirementBlock renders one "- [MUST|SHOULD] section: text" line per
// requirement. The identifier is appended so the model can emit matching
// data-req-id attributes.
func RequirementBlock(reqs []requirements.Requirement) string {
	lines := make([]string, 0, len(reqs))
	for _, req := range reqs {
		line := fmt.Sprintf("- [%s] %s: %s", req.Obligation(), req.Section, req.Text)
		if id := strings.TrimSpace(req.ID); id != "" {
			line += " (id: " + id + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// OutputBudget picks the completion budget. A mandatory requirement with a
// page constraint gets the larger budget. Requirements without a structured
// page limit still trip it when the rendered block mentions pages next to a
// MUST.
func OutputBudget(reqs []requirements.Requirement, block string) int {
	for _, req := range reqs {
		if req.Must && req.TargetPages() > 0 {
			return paginatedMaxTokens
		}
	}
	structured := false
	for _, req := range reqs {
		if req.PageLimit != nil {
			structured = true
			break
		}
	}
	if !structured && strings.Contains(block, "MUST") && strings.Contains(strings.ToLower(block), "page") {
		return paginatedMaxTokens
	}
	return defaultMaxTokens
}

// CleanBody removes markdown residue the model sometimes adds despite the
// instruction.
func CleanBody(content string) string {
	replacer := strings.NewReplacer("```html", "", "```", "", "**", "")
	return strings.TrimSpace(replacer.Replace(content))
}
