// File path: internal/requirements/requirement.go
package requirements

import (
	"regexp"
	"strconv"
	"strings"
)

// Requirement is one record of the requirement exchange format shared by the
// extractor and the draft synthesizer.
type Requirement struct {
	ID           string  `json:"id"`
	Section      string  `json:"section"`
	Text         string  `json:"text"`
	Must         bool    `json:"must"`
	Due          *string `json:"due"`
	ArtifactType *string `json:"artifact_type"`
	PageLimit    *int    `json:"page_limit,omitempty"`
}

// Obligation renders the must flag as MUST or SHOULD.
func (r Requirement) Obligation() string {
	if r.Must {
		return "MUST"
	}
	return "SHOULD"
}

// TargetPages is the structured page constraint of the requirement. The
// page_limit field wins; otherwise the count is read from the text. Zero
// means no page constraint.
func (r Requirement) TargetPages() int {
	if r.PageLimit != nil && *r.PageLimit > 0 {
		return *r.PageLimit
	}
	return PageLimitFromText(r.Text)
}

// FallbackRequirement is the single record produced when model output cannot
// be parsed at all.
func FallbackRequirement() Requirement {
	return Requirement{
		ID:      "REQ-1",
		Section: "General",
		Text:    "Unable to parse programmatically; please review.",
		Must:    true,
	}
}

var pageCountPattern = regexp.MustCompile(`(?i)\b(\d{1,3}|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|fifteen|twenty|thirty|fifty)[\s-]*pages?\b`)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7,
	"eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12, "fifteen": 15,
	"twenty": 20, "thirty": 30, "fifty": 50,
}

// PageLimitFromText reads a page count such as "3 pages", "10-page" or
// "three page" from free text. It returns 0 when none is stated.
func PageLimitFromText(text string) int {
	match := pageCountPattern.FindStringSubmatch(text)
	if match == nil {
		return 0
	}
	token := strings.ToLower(match[1])
	if n, ok := numberWords[token]; ok {
		return n
	}
	n, err := strconv.Atoi(token)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
