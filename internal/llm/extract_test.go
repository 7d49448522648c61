package llm

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "bare object",
			input: `{"a": 1}`,
			want:  `{"a": 1}`,
		},
		{
			name:  "json fence",
			input: "Here you go:\n```json\n{\"a\": 1}\n```\nDone.",
			want:  `{"a": 1}`,
		},
		{
			name:  "plain fence",
			input: "```\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "prose around object",
			input: "The extraction follows. {\"a\": {\"b\": 2}} That is all.",
			want:  `{"a": {"b": 2}}`,
		},
		{
			name:  "no json",
			input: "I could not process this contract.",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.input))
		})
	}
}

const sampleExtraction = `{
  "contract_metadata": {
    "title": "Master Services Agreement",
    "contract_type": "Service Agreement",
    "effective_date": "2024-01-15",
    "jurisdiction": "Delaware"
  },
  "entities": [
    {"name": "Acme Corp", "type": "PARTY", "description": "Service provider"},
    {"name": "Zenith Ltd", "type": "PARTY", "description": "Client"},
    {"name": "Indemnification", "type": "INDEMNIFICATION", "description": "Broad indemnity"},
    {"name": "Liability Cap", "type": "CAP_ON_LIABILITY", "description": "Capped at $500,000"},
    {"name": "$500,000", "type": "AMOUNT", "description": "Cap amount"},
    {"name": "Delaware", "type": "JURISDICTION", "description": "Governing law"}
  ],
  "relationships": [
    {"subject": "Acme Corp", "predicate": "INDEMNIFIES", "object": "Zenith Ltd", "evidence": "agrees to indemnify", "confidence": "high"},
    {"subject": "Indemnification", "predicate": "CONFLICTS_WITH", "object": "Liability Cap", "evidence": "broad indemnity contradicts cap", "confidence": "high"},
    {"subject": "Acme Corp", "predicate": "PARTY_TO", "object": "Master Services Agreement", "evidence": "", "confidence": ""}
  ],
  "risk_flags": [
    {"type": "MISSING_STANDARD_CLAUSE", "severity": "medium", "description": "No force majeure clause", "clause_ref": "Force Majeure"}
  ]
}`

func parseSample(t *testing.T) extractionPayload {
	t.Helper()
	var payload extractionPayload
	require.NoError(t, json.Unmarshal([]byte(sampleExtraction), &payload))
	return payload
}

func TestBuildResultProjectsEntities(t *testing.T) {
	result := buildResult(parseSample(t))

	assert.Equal(t, "Master Services Agreement", result.Title)
	assert.Equal(t, "Service Agreement", result.ContractType)
	assert.Equal(t, "Delaware", result.Jurisdiction)

	require.Len(t, result.Parties, 2)
	assert.Equal(t, "Acme Corp", result.Parties[0].Name)
	assert.Equal(t, "company", result.Parties[0].Type)
	assert.Equal(t, "Service provider", result.Parties[0].Role)

	// PARTY, JURISDICTION and AMOUNT entities never become clauses
	require.Len(t, result.Clauses, 2)
	assert.Equal(t, "indemnification", result.Clauses[0].Type)
	assert.Equal(t, "cap_on_liability", result.Clauses[1].Type)
}

func TestBuildResultProjectsObligations(t *testing.T) {
	result := buildResult(parseSample(t))

	require.Len(t, result.Obligations, 1)
	assert.Equal(t, "Acme Corp", result.Obligations[0].Party)
	assert.Equal(t, "INDEMNIFIES → Zenith Ltd", result.Obligations[0].Description)
	assert.Equal(t, "agrees to indemnify", result.Obligations[0].Evidence)
}

func TestBuildResultSynthesizesConflictRiskFlag(t *testing.T) {
	result := buildResult(parseSample(t))

	require.Len(t, result.RiskFlags, 2)

	synthesized := result.RiskFlags[1]
	assert.Equal(t, "CONFLICTING_CLAUSES", synthesized.Type)
	assert.Equal(t, "high", synthesized.Severity)
	assert.Equal(t, "Indemnification vs Liability Cap", synthesized.ClauseRef)
	assert.Contains(t, synthesized.Description, "Indemnification conflicts with Liability Cap")
}

func TestBuildResultSkipsDuplicateConflictFlag(t *testing.T) {
	payload := parseSample(t)
	payload.RiskFlags = append(payload.RiskFlags, wireRisk{
		Type:      "CONFLICTING_CLAUSES",
		Severity:  "high",
		ClauseRef: "Indemnification vs Liability Cap",
	})

	result := buildResult(payload)

	count := 0
	for _, f := range result.RiskFlags {
		if f.ClauseRef == "Indemnification vs Liability Cap" {
			count++
		}
	}
	assert.Equal(t, 1, count, "conflict flag must not be synthesized twice")
}

func TestBuildResultClauseRiskFromFlags(t *testing.T) {
	var payload extractionPayload
	payload.Entities = []wireEntity{
		{Name: "Non-Compete", Type: "NON_COMPETE", Description: "Five year restriction"},
		{Name: "Warranty", Type: "WARRANTY", Description: "Standard warranty"},
	}
	payload.RiskFlags = []wireRisk{
		{Type: "RESTRICTIVE_NON_COMPETE", Severity: "high", ClauseRef: "Non-Compete"},
	}

	result := buildResult(payload)

	require.Len(t, result.Clauses, 2)
	assert.Equal(t, "high", result.Clauses[0].RiskLevel)
	assert.Equal(t, "low", result.Clauses[1].RiskLevel)
}

func TestBuildResultEmptyPayloadDefaults(t *testing.T) {
	result := buildResult(extractionPayload{})

	assert.Equal(t, "Commercial Agreement", result.ContractType)
	assert.Empty(t, result.Parties)
	assert.Empty(t, result.Clauses)
	assert.Empty(t, result.RiskFlags)
}

func TestBuildExtractionPromptTruncates(t *testing.T) {
	text := strings.Repeat("a", maxExtractionChars+1000)
	prompt := buildExtractionPrompt(text)

	assert.NotContains(t, prompt, strings.Repeat("a", maxExtractionChars+1))
	assert.Contains(t, prompt, "CONFLICTS_WITH")
	assert.Contains(t, prompt, "Acme Corp")
}

func TestNormalizeCategory(t *testing.T) {
	cases := map[string]string{
		"factual":                       "factual",
		"  Comparative  ":               "comparative",
		"This is a multi-hop question.": "multi-hop",
		"risk":                          "risk",
		"no idea":                       "clause",
		"":                              "clause",
	}
	for input, want := range cases {
		assert.Equal(t, want, NormalizeCategory(input), "input %q", input)
	}
}
