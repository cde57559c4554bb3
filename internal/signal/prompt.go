package signal

import "fmt"

const systemInstruction = "You are a helpful assistant designed to output JSON."

const rubricPrompt = `You are a Founder-in-Residence identifying **startup opportunities** from generic business reports.
Your goal is not to summarize, but to **deconstruct** the text into a concrete "Pain Point" and a plausible "Attack Vector" for a new startup.

**Framework for Analysis**:
1. **Pain Holder (Who)**: Who exactly is suffering? (e.g., "Middle managers in manufacturing", "Compliance officers in Fintech"). Be specific.
2. **Pain Context (Where)**: In what specific workflow or situation does this occur? (e.g., "During quarterly reconciliation", "When managing remote fleets").
3. **Pain Mechanism (Why)**: Why is this hard? (e.g., "Data is siloed", "Manual entry causes errors", "Lack of real-time visibility").
4. **Attack Vector (How)**: Suggest a plausible product/service approach. (e.g., "Automated reconciliation agent", "IoT-based fleet dashboard").

**Value Estimation**:
5. **Market Size**: Estimate the addressable market in dollars or user count (e.g., "$500M-1B TAM", "~50K SMBs in the US"). Be realistic.
6. **Value Type**: Categorize the value created (choose one: "Cost Reduction", "Revenue Growth", "Risk Mitigation", "Productivity Gain").
7. **Expected Impact**: Quantify the potential improvement (e.g., "20-30%% cost savings", "3x faster processing", "50%% error reduction").
8. **Timeline**: Estimate time to MVP/market (e.g., "6-9 months", "12-18 months"). Consider technical complexity.

**Discard Criteria (Score < %d)**:
- Vague statements ("Growth is slowing").
- Problems solvable only by regulation/policy.
- Generic corporate advice ("Leaders must lead").

**Output Format (JSON)**:
{
  "pain_holder": "...",
  "pain_holder_ko": "...",
  "pain_context": "...",
  "pain_context_ko": "...",
  "pain_mechanism": "...",
  "pain_mechanism_ko": "...",
  "attack_vector": "...",
  "attack_vector_ko": "...",
  "evidence_sentence": "...",
  "evidence_sentence_ko": "...",
  "industry_tags": ["..."],
  "technology_tags": ["..."],
  "importance_score": 0-100,
  "confidence_score": 0.0-1.0,
  "market_size": "...",
  "value_type": "Cost Reduction|Revenue Growth|Risk Mitigation|Productivity Gain",
  "expected_impact": "...",
  "timeline": "..."
}

If NOT a valid startup opportunity, return { "importance_score": 0 }.

Sentence: %q
Context: %q (Report Title or Summary)`

// FormatPrompt renders the scoring rubric for one candidate sentence.
func FormatPrompt(sentence, context string, threshold int) string {
	return fmt.Sprintf(rubricPrompt, threshold, sentence, context)
}
