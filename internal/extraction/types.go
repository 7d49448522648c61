// Package extraction defines the typed payload produced by the LLM
// contract-extraction pass. Every field is optional on the wire; Normalize
// applies the documented default for anything the model left out, so
// downstream code never has to guard against missing fields.
package extraction

import "strings"

type Party struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Role string `json:"role"`
}

type Clause struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	Summary   string `json:"summary"`
	RiskLevel string `json:"risk_level"`
}

type Obligation struct {
	Party       string `json:"party"`
	Description string `json:"description"`
	Deadline    string `json:"deadline"`
	Evidence    string `json:"evidence"`
}

type RiskFlag struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	ClauseRef   string `json:"clause_ref"`
}

type Relationship struct {
	Subject    string `json:"subject"`
	Relation   string `json:"relation"`
	Object     string `json:"object"`
	Evidence   string `json:"evidence"`
	Confidence string `json:"confidence"`
}

type Result struct {
	Title         string         `json:"title"`
	ContractType  string         `json:"contract_type"`
	EffectiveDate string         `json:"effective_date"`
	ExpiryDate    string         `json:"expiry_date"`
	Jurisdiction  string         `json:"jurisdiction"`
	Parties       []Party        `json:"parties"`
	Clauses       []Clause       `json:"clauses"`
	Obligations   []Obligation   `json:"obligations"`
	RiskFlags     []RiskFlag     `json:"risk_flags"`
	Relationships []Relationship `json:"relationships"`
}

// Empty is the fallback when extraction fails entirely: ingestion proceeds
// with a graph holding only the contract and its chunks.
func Empty() *Result {
	return &Result{ContractType: "Unknown"}
}

// Normalize fills defaults in place and returns the receiver.
func (r *Result) Normalize() *Result {
	if r.ContractType == "" {
		r.ContractType = "Commercial Agreement"
	}
	for i := range r.Clauses {
		if r.Clauses[i].Type == "" {
			r.Clauses[i].Type = "other"
		}
		if r.Clauses[i].RiskLevel == "" {
			r.Clauses[i].RiskLevel = "low"
		}
	}
	for i := range r.RiskFlags {
		if r.RiskFlags[i].Type == "" {
			r.RiskFlags[i].Type = "other"
		}
		if r.RiskFlags[i].Severity == "" {
			r.RiskFlags[i].Severity = "medium"
		}
	}
	for i := range r.Relationships {
		if r.Relationships[i].Confidence == "" {
			r.Relationships[i].Confidence = "medium"
		}
	}
	return r
}

// PartyNames returns the non-empty party names in extraction order.
func (r *Result) PartyNames() []string {
	names := make([]string, 0, len(r.Parties))
	for _, p := range r.Parties {
		if name := strings.TrimSpace(p.Name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
