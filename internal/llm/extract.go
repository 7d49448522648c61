package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/legal-rag/backend/internal/extraction"
	"github.com/legal-rag/backend/pkg/logger"
)

// maxExtractionChars bounds how much contract text goes into the
// extraction prompt.
const maxExtractionChars = 5000

// entityTypes is the CUAD clause taxonomy (Hendrycks et al. 2021) plus the
// actor and derived node types the graph needs.
var entityTypes = []string{
	"PARTY",
	"JURISDICTION",

	"INDEMNIFICATION",
	"LIMITATION_OF_LIABILITY",
	"IP_OWNERSHIP_ASSIGNMENT",
	"NON_COMPETE",
	"EXCLUSIVITY",
	"CONFIDENTIALITY",
	"TERMINATION",
	"GOVERNING_LAW",
	"DISPUTE_RESOLUTION",
	"RENEWAL_TERM",
	"NOTICE_PERIOD_TO_TERMINATE_RENEWAL",
	"AUDIT_RIGHTS",
	"CHANGE_OF_CONTROL",
	"ANTI_ASSIGNMENT",
	"LICENSE_GRANT",
	"PRICE_OR_PAYMENT_TERMS",
	"MINIMUM_COMMITMENT",
	"UNCAPPED_LIABILITY",
	"CAP_ON_LIABILITY",
	"WARRANTY",
	"FORCE_MAJEURE",
	"NO_SOLICIT_OF_EMPLOYEES",
	"REVENUE_PROFIT_SHARING",

	"OBLIGATION",
	"RISK_FLAG",
	"DATE",
	"AMOUNT",
}

var relationTypes = []string{
	"PARTY_TO",
	"GOVERNED_BY",
	"CONTAINS",
	"OBLIGATES",
	"GRANTS_RIGHT_TO",
	"ASSIGNS_IP_TO",
	"INDEMNIFIES",
	"CAPS_LIABILITY_AT",
	"RESTRICTS",
	"TERMINATES_ON",
	"RENEWED_BY",
	"DISPUTES_RESOLVED_BY",
	"CONFLICTS_WITH",
	"HAS_RISK",
	"RELATED_TO",
}

// obligationPredicates are the relationship predicates projected into
// Obligation nodes.
var obligationPredicates = map[string]bool{
	"OBLIGATES":     true,
	"INDEMNIFIES":   true,
	"ASSIGNS_IP_TO": true,
	"RESTRICTS":     true,
}

// nonClauseTypes are entity types that never become Clause nodes.
var nonClauseTypes = map[string]bool{
	"PARTY":        true,
	"JURISDICTION": true,
	"DATE":         true,
	"AMOUNT":       true,
	"OBLIGATION":   true,
	"RISK_FLAG":    true,
}

const fewShotExample = `
Example input:
  "Acme Corp agrees to indemnify Zenith Ltd for all third-party claims.
   However, Acme's total liability under this agreement shall not exceed $500,000.
   This agreement is governed by the laws of Delaware."

Example output:
{
  "contract_metadata": {
    "title": "Service Agreement",
    "contract_type": "Service Agreement",
    "effective_date": "",
    "jurisdiction": "Delaware"
  },
  "entities": [
    {"name": "Acme Corp",           "type": "PARTY",                    "description": "Indemnifying party and service provider"},
    {"name": "Zenith Ltd",          "type": "PARTY",                    "description": "Indemnified party and client"},
    {"name": "Indemnification",     "type": "INDEMNIFICATION",          "description": "Acme indemnifies Zenith for all third-party claims with no carve-outs"},
    {"name": "Liability Cap",       "type": "CAP_ON_LIABILITY",         "description": "Acme's total liability capped at $500,000"},
    {"name": "$500,000",            "type": "AMOUNT",                   "description": "Maximum liability threshold"},
    {"name": "Delaware",            "type": "JURISDICTION",             "description": "Governing law state"}
  ],
  "relationships": [
    {"subject": "Acme Corp",        "predicate": "PARTY_TO",            "object": "Service Agreement",    "evidence": "Acme Corp agrees to indemnify",          "confidence": "high"},
    {"subject": "Zenith Ltd",       "predicate": "PARTY_TO",            "object": "Service Agreement",    "evidence": "indemnify Zenith Ltd",                   "confidence": "high"},
    {"subject": "Service Agreement","predicate": "CONTAINS",            "object": "Indemnification",      "evidence": "agrees to indemnify Zenith Ltd for all", "confidence": "high"},
    {"subject": "Service Agreement","predicate": "CONTAINS",            "object": "Liability Cap",        "evidence": "total liability shall not exceed",        "confidence": "high"},
    {"subject": "Acme Corp",        "predicate": "INDEMNIFIES",         "object": "Zenith Ltd",           "evidence": "Acme Corp agrees to indemnify Zenith Ltd","confidence": "high"},
    {"subject": "Liability Cap",    "predicate": "CAPS_LIABILITY_AT",   "object": "$500,000",             "evidence": "shall not exceed $500,000",               "confidence": "high"},
    {"subject": "Indemnification",  "predicate": "CONFLICTS_WITH",      "object": "Liability Cap",        "evidence": "broad indemnification contradicts $500k cap", "confidence": "high"},
    {"subject": "Service Agreement","predicate": "GOVERNED_BY",         "object": "Delaware",             "evidence": "governed by the laws of Delaware",        "confidence": "high"}
  ],
  "risk_flags": [
    {"type": "CONFLICTING_CLAUSES", "severity": "high",
     "description": "Indemnification clause is broad with no carve-outs, but liability is capped at $500k, which creates legal ambiguity about enforceability of unlimited indemnity",
     "clause_ref": "Indemnification vs Liability Cap"}
  ]
}
`

const extractionSystemPrompt = `You are an expert legal knowledge graph builder specializing in
commercial contract analysis. You are skilled at identifying parties, obligations,
rights, restrictions, and clause-level conflicts within legal agreements.`

// extractionPayload is the raw JSON shape the model is asked to produce.
type extractionPayload struct {
	ContractMetadata wireMetadata   `json:"contract_metadata"`
	Entities         []wireEntity   `json:"entities"`
	Relationships    []wireRelation `json:"relationships"`
	RiskFlags        []wireRisk     `json:"risk_flags"`
}

type wireMetadata struct {
	Title         string `json:"title"`
	ContractType  string `json:"contract_type"`
	EffectiveDate string `json:"effective_date"`
	Jurisdiction  string `json:"jurisdiction"`
}

type wireEntity struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type wireRelation struct {
	Subject    string `json:"subject"`
	Predicate  string `json:"predicate"`
	Object     string `json:"object"`
	Evidence   string `json:"evidence"`
	Confidence string `json:"confidence"`
}

type wireRisk struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	ClauseRef   string `json:"clause_ref"`
}

func buildExtractionPrompt(text string) string {
	if len(text) > maxExtractionChars {
		text = text[:maxExtractionChars]
	}

	var types strings.Builder
	for _, t := range entityTypes {
		fmt.Fprintf(&types, "    - %s\n", t)
	}
	var relations strings.Builder
	for _, t := range relationTypes {
		fmt.Fprintf(&relations, "    - %s\n", t)
	}

	return fmt.Sprintf(`-Goal-
Given a legal contract, perform a single-pass extraction to build a complete
knowledge graph. Extract all entities, all relationships between them as
(subject, predicate, object) triples, and identify legal risk flags.
Every claim must be grounded in the actual contract text.

-Steps-

Step 1: Extract entities.
  For each entity identify:
  - name:        exact name as it appears in the contract
  - type:        one value from the allowed entity types below
  - description: one sentence grounded in the contract text only

Step 2: Extract relationships.
  For each pair of related entities create a triple:
  - subject:    entity name (from Step 1)
  - predicate:  one value from the allowed relationship types below
  - object:     entity name (from Step 1)
  - evidence:   SHORT exact quote from the contract (under 20 words)
  - confidence: high / medium / low

  CRITICAL RULE: If you find two clauses that contradict each other
  (e.g. a broad indemnification obligation alongside a liability cap,
  or an IP assignment that conflicts with a license-back provision),
  you MUST create a CONFLICTS_WITH relationship between them.
  This is the most important relationship type. Do not miss it.

Step 3: Identify risk flags.
  For each significant legal risk:
  - type:        CONFLICTING_CLAUSES / UNCAPPED_INDEMNITY / BROAD_IP_ASSIGNMENT /
                 AUTO_RENEWAL / MISSING_LIABILITY_CAP / RESTRICTIVE_NON_COMPETE /
                 ONE_SIDED_TERMINATION / MISSING_STANDARD_CLAUSE / OTHER
  - severity:    high / medium / low
  - description: one sentence explaining why this is a risk
  - clause_ref:  which clause(s) are involved

-Allowed entity types (CUAD taxonomy plus extensions)-
%s
-Allowed relationship predicates-
%s
-Output format rules-
  - Return ONLY valid JSON. No prose before or after.
  - Do NOT invent information not found in the contract text.
  - Entity names must match exactly between entities and relationships lists.
  - Evidence quotes must be verbatim from the contract (under 20 words).

-Few-shot example-
%s
-Real task-
Now extract from this contract:

%s

Return ONLY the JSON:`, types.String(), relations.String(), fewShotExample, text)
}

// ExtractContract runs the single-pass extraction and projects the model
// output into the typed extraction result. A transport failure is returned
// as an error; unparseable model output degrades to an empty payload so
// ingestion can still build the contract and chunk nodes.
func (c *Client) ExtractContract(ctx context.Context, text string) (*extraction.Result, error) {
	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: extractionSystemPrompt,
		UserPrompt:   buildExtractionPrompt(text),
		MaxTokens:    4096,
	})
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}

	var payload extractionPayload
	if raw := extractJSON(resp.Content); raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			logger.Warn("Extraction output was not valid JSON, continuing with empty extraction",
				zap.Error(err),
			)
			payload = extractionPayload{}
		}
	} else {
		logger.Warn("Extraction output contained no JSON object")
	}

	result := buildResult(payload)

	logger.Info("Extraction complete",
		zap.Int("parties", len(result.Parties)),
		zap.Int("clauses", len(result.Clauses)),
		zap.Int("risk_flags", len(result.RiskFlags)),
		zap.Int("relationships", len(result.Relationships)),
	)

	return result, nil
}

// buildResult projects the raw extraction payload into graph-ready form:
// PARTY entities become parties, clause-typed entities become clauses,
// obligation-bearing predicates become obligations, and every
// CONFLICTS_WITH relationship is guaranteed a high-severity risk flag.
func buildResult(payload extractionPayload) *extraction.Result {
	result := &extraction.Result{
		Title:         payload.ContractMetadata.Title,
		ContractType:  payload.ContractMetadata.ContractType,
		EffectiveDate: payload.ContractMetadata.EffectiveDate,
		Jurisdiction:  payload.ContractMetadata.Jurisdiction,
	}

	for _, e := range payload.Entities {
		switch {
		case e.Type == "PARTY":
			result.Parties = append(result.Parties, extraction.Party{
				Name: e.Name,
				Type: "company",
				Role: e.Description,
			})
		case !nonClauseTypes[e.Type]:
			result.Clauses = append(result.Clauses, extraction.Clause{
				Type:      strings.ToLower(e.Type),
				Name:      e.Name,
				Summary:   e.Description,
				RiskLevel: clauseRisk(e.Name, payload.RiskFlags),
			})
		}
	}

	for _, r := range payload.Relationships {
		if obligationPredicates[r.Predicate] {
			result.Obligations = append(result.Obligations, extraction.Obligation{
				Party:       r.Subject,
				Description: fmt.Sprintf("%s → %s", r.Predicate, r.Object),
				Evidence:    r.Evidence,
			})
		}
		result.Relationships = append(result.Relationships, extraction.Relationship{
			Subject:    r.Subject,
			Relation:   r.Predicate,
			Object:     r.Object,
			Evidence:   r.Evidence,
			Confidence: r.Confidence,
		})
	}

	for _, f := range payload.RiskFlags {
		result.RiskFlags = append(result.RiskFlags, extraction.RiskFlag{
			Type:        f.Type,
			Severity:    f.Severity,
			Description: f.Description,
			ClauseRef:   f.ClauseRef,
		})
	}

	for _, r := range payload.Relationships {
		if r.Predicate != "CONFLICTS_WITH" {
			continue
		}
		clauseRef := fmt.Sprintf("%s vs %s", r.Subject, r.Object)
		exists := false
		for _, f := range result.RiskFlags {
			if f.ClauseRef == clauseRef {
				exists = true
				break
			}
		}
		if !exists {
			result.RiskFlags = append(result.RiskFlags, extraction.RiskFlag{
				Type:        "CONFLICTING_CLAUSES",
				Severity:    "high",
				Description: fmt.Sprintf("%s conflicts with %s. Evidence: %s", r.Subject, r.Object, r.Evidence),
				ClauseRef:   clauseRef,
			})
		}
	}

	return result.Normalize()
}

// clauseRisk derives a clause's risk level from the flags that reference it,
// matched by substring in either direction.
func clauseRisk(clauseName string, flags []wireRisk) string {
	nameLower := strings.ToLower(clauseName)
	for _, f := range flags {
		ref := strings.ToLower(f.ClauseRef)
		if ref == "" {
			continue
		}
		if strings.Contains(ref, nameLower) || strings.Contains(nameLower, ref) {
			if f.Severity != "" {
				return f.Severity
			}
			return "medium"
		}
	}
	return "low"
}
