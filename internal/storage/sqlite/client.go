// Package sqlite is the bookkeeping store for contracts, processing logs,
// extracted clauses, risk flags and query history.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/legal-rag/backend/internal/storage/models"
	"github.com/legal-rag/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		title TEXT DEFAULT '',
		contract_type TEXT DEFAULT '',
		effective_date TEXT DEFAULT '',
		jurisdiction TEXT DEFAULT '',
		parties TEXT DEFAULT '[]',
		status TEXT NOT NULL DEFAULT 'pending',
		chunk_count INTEGER DEFAULT 0,
		clause_count INTEGER DEFAULT 0,
		risk_score REAL DEFAULT 0,
		file_size INTEGER DEFAULT 0,
		error_msg TEXT DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_contracts_status ON contracts(status);
	CREATE INDEX IF NOT EXISTS idx_contracts_created ON contracts(created_at);

	CREATE TABLE IF NOT EXISTS processing_log (
		id TEXT PRIMARY KEY,
		contract_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		status TEXT NOT NULL,
		message TEXT DEFAULT '',
		duration_ms INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (contract_id) REFERENCES contracts(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_log_contract ON processing_log(contract_id);

	CREATE TABLE IF NOT EXISTS clauses_extracted (
		id TEXT PRIMARY KEY,
		contract_id TEXT NOT NULL,
		clause_type TEXT DEFAULT '',
		clause_text TEXT DEFAULT '',
		risk_level TEXT DEFAULT 'low',
		created_at INTEGER NOT NULL,
		FOREIGN KEY (contract_id) REFERENCES contracts(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_clauses_contract ON clauses_extracted(contract_id);

	CREATE TABLE IF NOT EXISTS risk_flags (
		id TEXT PRIMARY KEY,
		contract_id TEXT NOT NULL,
		flag_type TEXT DEFAULT '',
		severity TEXT DEFAULT 'low',
		description TEXT DEFAULT '',
		clause_ref TEXT DEFAULT '',
		created_at INTEGER NOT NULL,
		FOREIGN KEY (contract_id) REFERENCES contracts(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_risks_contract ON risk_flags(contract_id);
	CREATE INDEX IF NOT EXISTS idx_risks_severity ON risk_flags(severity);

	CREATE TABLE IF NOT EXISTS query_history (
		id TEXT PRIMARY KEY,
		question TEXT NOT NULL,
		answer TEXT DEFAULT '',
		query_type TEXT DEFAULT '',
		chunk_count INTEGER DEFAULT 0,
		graph_only_chunks INTEGER DEFAULT 0,
		latency_ms INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_query_created ON query_history(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) CreateContract(filename string, fileSize int64) (string, error) {
	id := uuid.New().String()
	now := time.Now().Unix()

	_, err := c.db.Exec(`
		INSERT INTO contracts (id, filename, file_size, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, filename, fileSize, models.StatusPending, now, now)
	if err != nil {
		return "", fmt.Errorf("failed to create contract: %w", err)
	}

	return id, nil
}

func (c *Client) UpdateContractStatus(id, status, errorMsg string) error {
	_, err := c.db.Exec(`
		UPDATE contracts SET status = ?, error_msg = ?, updated_at = ? WHERE id = ?
	`, status, errorMsg, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update contract status: %w", err)
	}
	return nil
}

// ContractMeta carries the extraction-derived columns written once
// ingestion completes.
type ContractMeta struct {
	Title         string
	ContractType  string
	EffectiveDate string
	Jurisdiction  string
	Parties       []string
	ChunkCount    int
	ClauseCount   int
	RiskScore     float64
}

func (c *Client) UpdateContractMeta(id string, meta ContractMeta) error {
	parties, err := json.Marshal(meta.Parties)
	if err != nil {
		return fmt.Errorf("failed to marshal parties: %w", err)
	}

	_, err = c.db.Exec(`
		UPDATE contracts
		SET title = ?, contract_type = ?, effective_date = ?, jurisdiction = ?,
		    parties = ?, chunk_count = ?, clause_count = ?, risk_score = ?,
		    updated_at = ?
		WHERE id = ?
	`, meta.Title, meta.ContractType, meta.EffectiveDate, meta.Jurisdiction,
		string(parties), meta.ChunkCount, meta.ClauseCount, meta.RiskScore,
		time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update contract meta: %w", err)
	}
	return nil
}

const contractColumns = `id, filename, title, contract_type, effective_date,
	jurisdiction, parties, status, chunk_count, clause_count, risk_score,
	file_size, error_msg, created_at, updated_at`

func scanContract(row interface{ Scan(...interface{}) error }) (*models.Contract, error) {
	var contract models.Contract
	var parties string
	var createdAt, updatedAt int64

	err := row.Scan(
		&contract.ID, &contract.Filename, &contract.Title, &contract.ContractType,
		&contract.EffectiveDate, &contract.Jurisdiction, &parties, &contract.Status,
		&contract.ChunkCount, &contract.ClauseCount, &contract.RiskScore,
		&contract.FileSize, &contract.ErrorMsg, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(parties), &contract.Parties); err != nil {
		contract.Parties = nil
	}
	contract.CreatedAt = time.Unix(createdAt, 0)
	contract.UpdatedAt = time.Unix(updatedAt, 0)

	return &contract, nil
}

func (c *Client) GetContract(id string) (*models.Contract, error) {
	row := c.db.QueryRow(
		"SELECT "+contractColumns+" FROM contracts WHERE id = ?", id)

	contract, err := scanContract(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}
	return contract, nil
}

func (c *Client) ListContracts() ([]models.Contract, error) {
	rows, err := c.db.Query(
		"SELECT " + contractColumns + " FROM contracts ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}
	defer rows.Close()

	var contracts []models.Contract
	for rows.Next() {
		contract, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contract: %w", err)
		}
		contracts = append(contracts, *contract)
	}
	return contracts, rows.Err()
}

func (c *Client) DeleteContract(id string) error {
	_, err := c.db.Exec("DELETE FROM contracts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete contract: %w", err)
	}
	return nil
}

// LogStage appends a pipeline stage transition to the processing log.
func (c *Client) LogStage(contractID, stage, status, message string, durationMs int64) error {
	_, err := c.db.Exec(`
		INSERT INTO processing_log (id, contract_id, stage, status, message, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uuid.New().String(), contractID, stage, status, message, durationMs, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to log stage: %w", err)
	}
	return nil
}

func (c *Client) GetLog(contractID string) ([]models.ProcessingLogEntry, error) {
	rows, err := c.db.Query(`
		SELECT stage, status, message, duration_ms, created_at
		FROM processing_log WHERE contract_id = ?
		ORDER BY created_at ASC
	`, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to get processing log: %w", err)
	}
	defer rows.Close()

	var entries []models.ProcessingLogEntry
	for rows.Next() {
		var entry models.ProcessingLogEntry
		var createdAt int64
		if err := rows.Scan(&entry.Stage, &entry.Status, &entry.Message, &entry.DurationMs, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		entry.CreatedAt = time.Unix(createdAt, 0)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// SaveClauses replaces the extracted clause rows for a contract.
func (c *Client) SaveClauses(contractID string, clauses []models.ExtractedClause) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM clauses_extracted WHERE contract_id = ?", contractID); err != nil {
		return fmt.Errorf("failed to clear clauses: %w", err)
	}

	now := time.Now().Unix()
	for _, clause := range clauses {
		_, err := tx.Exec(`
			INSERT INTO clauses_extracted (id, contract_id, clause_type, clause_text, risk_level, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, uuid.New().String(), contractID, clause.ClauseType, clause.ClauseText, clause.RiskLevel, now)
		if err != nil {
			return fmt.Errorf("failed to save clause: %w", err)
		}
	}

	return tx.Commit()
}

// SaveRiskFlags replaces the risk flag rows for a contract.
func (c *Client) SaveRiskFlags(contractID string, flags []models.RiskFlag) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM risk_flags WHERE contract_id = ?", contractID); err != nil {
		return fmt.Errorf("failed to clear risk flags: %w", err)
	}

	now := time.Now().Unix()
	for _, flag := range flags {
		_, err := tx.Exec(`
			INSERT INTO risk_flags (id, contract_id, flag_type, severity, description, clause_ref, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, uuid.New().String(), contractID, flag.FlagType, flag.Severity, flag.Description, flag.ClauseRef, now)
		if err != nil {
			return fmt.Errorf("failed to save risk flag: %w", err)
		}
	}

	return tx.Commit()
}

// GetRiskFlags returns flags for one contract, or the most severe flags
// across all contracts when contractID is empty.
func (c *Client) GetRiskFlags(contractID string) ([]models.RiskFlag, error) {
	var rows *sql.Rows
	var err error

	if contractID != "" {
		rows, err = c.db.Query(`
			SELECT id, contract_id, flag_type, severity, description, clause_ref, '', '', created_at
			FROM risk_flags WHERE contract_id = ?
			ORDER BY CASE severity WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END
		`, contractID)
	} else {
		rows, err = c.db.Query(`
			SELECT r.id, r.contract_id, r.flag_type, r.severity, r.description, r.clause_ref,
			       c.filename, c.title, r.created_at
			FROM risk_flags r JOIN contracts c ON r.contract_id = c.id
			ORDER BY CASE r.severity WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END,
			         r.created_at DESC
			LIMIT 100
		`)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get risk flags: %w", err)
	}
	defer rows.Close()

	var flags []models.RiskFlag
	for rows.Next() {
		var flag models.RiskFlag
		var createdAt int64
		err := rows.Scan(&flag.ID, &flag.ContractID, &flag.FlagType, &flag.Severity,
			&flag.Description, &flag.ClauseRef, &flag.Filename, &flag.Title, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan risk flag: %w", err)
		}
		flag.CreatedAt = time.Unix(createdAt, 0)
		flags = append(flags, flag)
	}
	return flags, rows.Err()
}

func (c *Client) SaveQuery(record *models.QueryRecord) (string, error) {
	id := uuid.New().String()

	_, err := c.db.Exec(`
		INSERT INTO query_history (id, question, answer, query_type, chunk_count, graph_only_chunks, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, record.Question, record.Answer, record.QueryType, record.ChunkCount,
		record.GraphOnly, record.LatencyMs, time.Now().Unix())
	if err != nil {
		return "", fmt.Errorf("failed to save query: %w", err)
	}

	return id, nil
}

func (c *Client) GetHistory(limit int) ([]models.QueryRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := c.db.Query(`
		SELECT id, question, answer, query_type, chunk_count, graph_only_chunks, latency_ms, created_at
		FROM query_history
		ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var records []models.QueryRecord
	for rows.Next() {
		var record models.QueryRecord
		var createdAt int64
		err := rows.Scan(&record.ID, &record.Question, &record.Answer, &record.QueryType,
			&record.ChunkCount, &record.GraphOnly, &record.LatencyMs, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan query record: %w", err)
		}
		record.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, record)
	}
	return records, rows.Err()
}

// CountContracts, CountQueries and CountRiskFlags back the stats endpoint.
func (c *Client) CountContracts() (int, error) {
	return c.countRows("SELECT COUNT(*) FROM contracts")
}

func (c *Client) CountQueries() (int, error) {
	return c.countRows("SELECT COUNT(*) FROM query_history")
}

func (c *Client) CountRiskFlags() (int, error) {
	return c.countRows("SELECT COUNT(*) FROM risk_flags")
}

func (c *Client) countRows(query string) (int, error) {
	var count int
	if err := c.db.QueryRow(query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return count, nil
}
