// Package analysis turns a scenario into a threat record: retrieve context,
// build the prompt, complete, parse, then stamp the case id and timestamp.
package analysis

import "strings"

const promptTemplate = `You are CyberSentinel, an expert cybersecurity threat analyst.

Context from knowledge base:
{{context}}

User Scenario: {{scenario}}

Analyze this cybersecurity scenario and provide:
1. Threat Type (e.g., Phishing, Malware, DDoS, Ransomware, Insider Threat, Social Engineering)
2. Severity Level (Low, Medium, or High)
3. Detailed Analysis (2-3 paragraphs)
4. Mitigation Recommendations (specific, actionable steps)

Format your response as JSON:
{
    "threat_type": "...",
    "severity": "...",
    "analysis": "...",
    "recommendations": ["...", "...", "..."]
}`

// BuildPrompt renders the instruction template. Empty context renders as an
// empty section. Substitution is single-pass, so placeholder text inside the
// context or scenario is left as-is.
func BuildPrompt(scenario, context string) string {
	r := strings.NewReplacer("{{context}}", context, "{{scenario}}", scenario)
	return r.Replace(promptTemplate)
}
