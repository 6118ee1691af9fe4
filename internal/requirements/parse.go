// File path: internal/requirements/parse.go
package requirements

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Outcome tags how much of the model response could be used.
type Outcome string

const (
	// OutcomeStructured means the whole response decoded as a list.
	OutcomeStructured Outcome = "structured"
	// OutcomeRecovered means a list was found embedded in surrounding prose.
	OutcomeRecovered Outcome = "recovered"
	// OutcomeFallback means nothing decoded and the review record was used.
	OutcomeFallback Outcome = "fallback"
)

// Parsed is the result of reading untrusted model output.
type Parsed struct {
	Outcome      Outcome
	Requirements []Requirement
}

// Parse turns model output into requirement records. It never fails and
// always returns at least one record: output that cannot be decoded, or a
// list with no object elements (including the empty list), yields the single
// fallback record.
func Parse(raw string) Parsed {
	cleaned := stripFence(raw)
	if reqs, ok := decodeList(cleaned); ok {
		return Parsed{Outcome: OutcomeStructured, Requirements: reqs}
	}
	if start := strings.Index(cleaned, "["); start >= 0 {
		if end := strings.LastIndex(cleaned, "]"); end > start {
			if reqs, ok := decodeList(cleaned[start : end+1]); ok {
				return Parsed{Outcome: OutcomeRecovered, Requirements: reqs}
			}
		}
	}
	return Parsed{Outcome: OutcomeFallback, Requirements: []Requirement{FallbackRequirement()}}
}

func stripFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return raw
	}
	trimmed = strings.Trim(trimmed, "`")
	// ```json fences carry a language tag before the payload.
	if idx := strings.IndexAny(trimmed, "[{\n"); idx > 0 {
		if tag := strings.TrimSpace(trimmed[:idx]); tag != "" && !strings.ContainsAny(tag, " \t") {
			trimmed = trimmed[idx:]
		}
	}
	return strings.TrimSpace(trimmed)
}

func decodeList(text string) ([]Requirement, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "[") {
		return nil, false
	}
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(text), &elems); err != nil {
		return nil, false
	}
	reqs := make([]Requirement, 0, len(elems))
	for _, elem := range elems {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(elem, &fields); err != nil || fields == nil {
			continue
		}
		reqs = append(reqs, fromFields(fields))
	}
	if len(reqs) == 0 {
		return nil, false
	}
	return reqs, true
}

func fromFields(fields map[string]json.RawMessage) Requirement {
	req := Requirement{Must: true}
	req.ID, _ = scalarString(fields["id"])
	req.Section, _ = scalarString(fields["section"])
	req.Text, _ = scalarString(fields["text"])
	if raw, ok := fields["must"]; ok {
		req.Must = truthy(raw)
	}
	if value, ok := scalarString(fields["due"]); ok {
		req.Due = &value
	}
	if value, ok := scalarString(fields["artifact_type"]); ok {
		req.ArtifactType = &value
	}
	if value, ok := scalarInt(fields["page_limit"]); ok {
		req.PageLimit = &value
	}
	return req
}

// scalarString reads a JSON string, number or boolean as text. Null, absent
// and composite values report false.
func scalarString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b), true
	}
	return "", false
}

func scalarInt(raw json.RawMessage) (int, bool) {
	text, ok := scalarString(raw)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || f <= 0 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// truthy follows the loose boolean reading of the exchange format: explicit
// null is false, strings such as "should" or "false" are false, and any other
// non-empty value is true.
func truthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "", "false", "no", "should", "optional", "0":
			return false
		}
		return true
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n != 0
	}
	return true
}
