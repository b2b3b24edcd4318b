package oracle

const validationPrompt = `You are a senior software engineer reviewing a feature request for completeness.
Your task is to determine if the feature request contains enough information
to proceed to technical architecture design.

FEATURE TYPE: {{.Type}}
FEATURE TITLE: {{.Title}}
FEATURE DESCRIPTION:
{{.Description}}
{{if .Context}}
PROJECT CONTEXT:
{{.Context}}
{{end}}
Analyze this feature request and respond in JSON format with:
{
  "is_complete": boolean,
  "confidence_score": float (0.0 to 1.0),
  "issues": [list of specific problems],
  "suggestions": [list of improvement suggestions]
}

Consider these aspects:
- Functional requirements clarity
- User interaction patterns (if applicable)
- Success criteria definition
- Technical constraints mentioned
- Integration points with existing systems
- Testability and validation approach

Focus on elements needed for technical architecture, not implementation details.`

const classificationPrompt = `Analyze the relationship between these two features:

NEW FEATURE:
{{.New}}

EXISTING FEATURE:
{{.Existing}}

Similarity Score: {{printf "%.2f" .Similarity}}

Classify their relationship as one of:
- "duplicate": Essentially the same feature
- "supersedes": New feature replaces/improves existing feature
- "builds_on": New feature extends existing feature
- "fixes": New feature fixes issues in existing feature
- "conflicts_with": Features cannot coexist
- "none": No significant relationship

Respond with only the relationship type.`
