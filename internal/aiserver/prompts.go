package aiserver

import (
	"encoding/json"
	"fmt"

	"github.com/telreader/telugu-science-reader/internal/aitask"
)

// systemPrompt frames every task for the model.
const systemPrompt = `You are an AI assistant for a bilingual (English–Telugu) science education tool for 7th-grade students.

CRITICAL RULES:
1. Return ONLY valid JSON in your response
2. Keep outputs short and age-appropriate for 7th graders
3. Telugu text must be scientifically accurate
4. Use everyday Telugu vocabulary, not overly technical terms
5. Be culturally sensitive to Telugu-speaking contexts (Andhra Pradesh, Telangana)
6. If unsure, acknowledge limitations rather than hallucinate

Your goal is to help teachers refine educational content for better learning outcomes.`

type promptPayload struct {
	Grade     int    `json:"grade"`
	EN        string `json:"en"`
	TE        string `json:"te"`
	TermEN    string `json:"term_en"`
	TermTE    string `json:"term_te"`
	ContextEN string `json:"context_en"`
}

// buildPrompt renders the task-specific user prompt. Unknown tasks get a
// generic prompt instead of an error so the model can still respond.
func buildPrompt(task string, payload json.RawMessage) (string, error) {
	var p promptPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return "", err
		}
	}

	switch task {
	case aitask.TaskSimplifyTE:
		grade := p.Grade
		if grade == 0 {
			grade = 7
		}
		en := p.EN
		if en == "" {
			en = "Not provided"
		}
		return fmt.Sprintf(`Task: Simplify Telugu sentence for %dth grade reading level

Input Telugu sentence:
"""
%s
"""

Original English (for reference):
"""
%s
"""

Requirements:
- Keep the scientific meaning intact
- Use simple, everyday Telugu words
- Maximum 25 words
- Avoid transliterations where possible
- Also provide simplified English version

Return JSON:
{
  "simplified_te": "simplified Telugu sentence here",
  "simplified_en": "simplified English version of the same meaning",
  "changes": "brief note on what was simplified"
}`, grade, p.TE, en), nil

	case aitask.TaskGenerateGloss:
		context := p.ContextEN
		if context == "" {
			context = "Heat transfer science for 7th grade"
		}
		return fmt.Sprintf(`Task: Generate glossary entry for scientific term

English term: "%s"
Context: """%s"""

Requirements:
- Provide standard Telugu equivalent
- Definition should be ~20 words, 7th-grade appropriate
- Example should be from everyday life (cooking, home, school)
- Make it relatable to Telugu-speaking students

Return JSON:
{
  "term_en": "%s",
  "term_te": "Telugu translation",
  "def_en": "concise English definition",
  "def_te": "Telugu definition ~20 words",
  "example_en": "everyday example in English",
  "example_te": "everyday example in Telugu"
}`, p.TermEN, context, p.TermEN), nil

	case aitask.TaskBackCheck:
		return fmt.Sprintf(`Task: Back-translation check to verify translation fidelity

Original English:
"""
%s
"""

Telugu translation:
"""
%s
"""

Instructions:
1. Translate the Telugu back into English
2. Compare with original English
3. Identify any meaning differences
4. Rate fidelity 0.0-1.0 (1.0 = perfect match)

Return JSON:
{
  "back_en": "your Telugu→English translation",
  "fidelity": 0.85,
  "notes": "Brief notes on any mismatches or 'Translation is accurate'"
}`, p.EN, p.TE), nil

	case aitask.TaskCulturalReview:
		return fmt.Sprintf(`Task: Review cultural appropriateness for Telugu-speaking students

English text:
"""
%s
"""

Telugu text:
"""
%s
"""

Context: 7th-grade science education in Andhra Pradesh/Telangana

Check for:
- Cultural insensitivity or unfamiliar references
- Urban/rural bias
- Gender bias
- Socioeconomic assumptions
- Religious/caste sensitivity

Return JSON:
{
  "risk": "low|medium|high",
  "notes": ["specific concern 1", "specific concern 2"],
  "suggestions": "brief improvement suggestion or 'Content appears appropriate'"
}`, p.EN, p.TE), nil

	case aitask.TaskDialectalVariants:
		return fmt.Sprintf(`Task: Provide dialectal variants for Telugu term

Standard Telugu term: "%s"
English meaning: "%s"

Requirements:
- Provide 2-3 common dialectal variations (Coastal Andhra, Rayalaseema, Telangana)
- Note which dialect each variant belongs to
- All should be scientifically accurate

Return JSON:
{
  "standard": "%s",
  "variants": [
    {"dialect": "Telangana", "term": "variant1"},
    {"dialect": "Coastal Andhra", "term": "variant2"}
  ]
}`, p.TermTE, p.TermEN, p.TermTE), nil

	default:
		return fmt.Sprintf(`Task: %s
Payload: %s

Return JSON with task results or {"error": "unknown task"}`, task, string(payload)), nil
	}
}
