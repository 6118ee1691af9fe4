// File path: internal/llm/prompts.go
package llm

// Prompts live here so extraction and drafting stay consistent and easy to
// audit.

const SystemComplianceOnly = "You are a compliance assistant for FedRAMP RFP drafting. " +
	"Prioritize helpful, constructive drafting grounded in supplied context and house rules. " +
	"If a detail is outside FedRAMP scope, proceed with best-effort language and clearly mark assumptions rather than refusing. " +
	"Cite only from provided context when needed."

const SystemRequirementExtractor = "You convert RFP text into a normalized list of requirements."

const ParseRequirementsInstruction = "Extract all requirements/deliverables/do&donts AND any explicit formatting/length constraints (e.g., page count, section order, attachment types) from the document. " +
	"Return JSON list with items of the form: " +
	"{id, section, text, must (true/false), due (string or null), artifact_type (string or null), page_limit (integer or null)}. " +
	"Set page_limit only when the requirement states a maximum or target page count. " +
	"Be comprehensive and avoid hallucination; infer 'must' vs 'should' carefully."

const SynthesizeAnswerInstruction = "Generate a compliant draft response for the given RFP sections, " +
	"grounded only in the FedRAMP context and the company's house rules. " +
	"Honor explicit constraints (page length, format, required sections, naming). " +
	"Be explicit when a constraint cannot be met with provided context. " +
	"Return HTML only (no markdown, no code fences, no asterisks). " +
	"Structure the output in one <section> per requirement, with attribute data-req-id='<requirement_id>' for exact linking. " +
	"Inside each <section>, use <h3> with the requirement text and <p> paragraphs for the answer; avoid lists unless required. " +
	"If page count is specified (e.g., 3 pages), aim for about 1200–1500 words, distributed across the sections, and avoid unnecessary repetition."

// DefaultHouseRules is used when no house rules are configured.
const DefaultHouseRules = "Use precise, evidence-based claims. Avoid overcommitment."
