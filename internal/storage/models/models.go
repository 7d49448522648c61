// Package models holds the relational records backing the API: contract
// bookkeeping, processing logs, extracted clause and risk rows, and query
// history. The knowledge graph itself lives in Neo4j; these rows exist so
// listings and status polls never need a graph query.
package models

import "time"

// Contract processing lifecycle.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

type Contract struct {
	ID            string    `json:"id"`
	Filename      string    `json:"filename"`
	Title         string    `json:"title"`
	ContractType  string    `json:"contract_type"`
	EffectiveDate string    `json:"effective_date"`
	Jurisdiction  string    `json:"jurisdiction"`
	Parties       []string  `json:"parties"`
	Status        string    `json:"status"`
	ChunkCount    int       `json:"chunk_count"`
	ClauseCount   int       `json:"clause_count"`
	RiskScore     float64   `json:"risk_score"`
	FileSize      int64     `json:"file_size"`
	ErrorMsg      string    `json:"error_msg,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProcessingLogEntry is one pipeline stage transition for a contract.
type ProcessingLogEntry struct {
	Stage      string    `json:"stage"`
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

type ExtractedClause struct {
	ID         string    `json:"id"`
	ContractID string    `json:"contract_id"`
	ClauseType string    `json:"clause_type"`
	ClauseText string    `json:"clause_text"`
	RiskLevel  string    `json:"risk_level"`
	CreatedAt  time.Time `json:"created_at"`
}

type RiskFlag struct {
	ID          string    `json:"id"`
	ContractID  string    `json:"contract_id"`
	FlagType    string    `json:"flag_type"`
	Severity    string    `json:"severity"`
	Description string    `json:"description"`
	ClauseRef   string    `json:"clause_ref"`
	Filename    string    `json:"filename,omitempty"`
	Title       string    `json:"title,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type QueryRecord struct {
	ID           string    `json:"id"`
	Question     string    `json:"question"`
	Answer       string    `json:"answer"`
	QueryType    string    `json:"query_type"`
	ChunkCount   int       `json:"chunk_count"`
	GraphOnly    int       `json:"graph_only_chunks"`
	LatencyMs    int64     `json:"latency_ms"`
	CreatedAt    time.Time `json:"created_at"`
}
