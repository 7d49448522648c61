package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legal-rag/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.InitSchema())
	return client
}

func TestContractLifecycle(t *testing.T) {
	client := newTestClient(t)

	id, err := client.CreateContract("msa.pdf", 4096)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	contract, err := client.GetContract(id)
	require.NoError(t, err)
	require.NotNil(t, contract)
	assert.Equal(t, "msa.pdf", contract.Filename)
	assert.Equal(t, models.StatusPending, contract.Status)
	assert.Equal(t, int64(4096), contract.FileSize)

	require.NoError(t, client.UpdateContractStatus(id, models.StatusProcessing, ""))
	require.NoError(t, client.UpdateContractMeta(id, ContractMeta{
		Title:        "Master Supply Agreement",
		ContractType: "Supply Agreement",
		Jurisdiction: "Delaware",
		Parties:      []string{"Acme Corp", "Zenith Ltd"},
		ChunkCount:   12,
		ClauseCount:  5,
		RiskScore:    0.4,
	}))
	require.NoError(t, client.UpdateContractStatus(id, models.StatusComplete, ""))

	contract, err = client.GetContract(id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusComplete, contract.Status)
	assert.Equal(t, "Master Supply Agreement", contract.Title)
	assert.Equal(t, []string{"Acme Corp", "Zenith Ltd"}, contract.Parties)
	assert.Equal(t, 12, contract.ChunkCount)
	assert.InDelta(t, 0.4, contract.RiskScore, 0.001)
}

func TestGetContractMissing(t *testing.T) {
	client := newTestClient(t)

	contract, err := client.GetContract("nope")
	require.NoError(t, err)
	assert.Nil(t, contract)
}

func TestListContracts(t *testing.T) {
	client := newTestClient(t)

	_, err := client.CreateContract("a.pdf", 1)
	require.NoError(t, err)
	_, err = client.CreateContract("b.txt", 2)
	require.NoError(t, err)

	contracts, err := client.ListContracts()
	require.NoError(t, err)
	assert.Len(t, contracts, 2)

	count, err := client.CountContracts()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestProcessingLog(t *testing.T) {
	client := newTestClient(t)

	id, err := client.CreateContract("msa.pdf", 1)
	require.NoError(t, err)

	require.NoError(t, client.LogStage(id, "text_extraction", "started", "", 0))
	require.NoError(t, client.LogStage(id, "text_extraction", "complete", "", 120))
	require.NoError(t, client.LogStage(id, "chunking", "failed", "document too short", 0))

	log, err := client.GetLog(id)
	require.NoError(t, err)
	require.Len(t, log, 3)
	assert.Equal(t, "text_extraction", log[0].Stage)
	assert.Equal(t, int64(120), log[1].DurationMs)
	assert.Equal(t, "document too short", log[2].Message)
}

func TestSaveClausesReplaces(t *testing.T) {
	client := newTestClient(t)

	id, err := client.CreateContract("msa.pdf", 1)
	require.NoError(t, err)

	first := []models.ExtractedClause{
		{ContractID: id, ClauseType: "termination", ClauseText: "old", RiskLevel: "low"},
		{ContractID: id, ClauseType: "indemnification", ClauseText: "old", RiskLevel: "high"},
	}
	require.NoError(t, client.SaveClauses(id, first))

	second := []models.ExtractedClause{
		{ContractID: id, ClauseType: "termination", ClauseText: "new", RiskLevel: "medium"},
	}
	require.NoError(t, client.SaveClauses(id, second))

	// re-saving replaces, it never accumulates
	var count int
	require.NoError(t, client.db.QueryRow(
		"SELECT COUNT(*) FROM clauses_extracted WHERE contract_id = ?", id).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestRiskFlags(t *testing.T) {
	client := newTestClient(t)

	id1, err := client.CreateContract("a.pdf", 1)
	require.NoError(t, err)
	id2, err := client.CreateContract("b.pdf", 1)
	require.NoError(t, err)

	require.NoError(t, client.SaveRiskFlags(id1, []models.RiskFlag{
		{ContractID: id1, FlagType: "auto_renewal", Severity: "low", Description: "renews"},
	}))
	require.NoError(t, client.SaveRiskFlags(id2, []models.RiskFlag{
		{ContractID: id2, FlagType: "uncapped_liability", Severity: "high", Description: "no cap"},
	}))

	flags, err := client.GetRiskFlags(id1)
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, "auto_renewal", flags[0].FlagType)

	// corpus-wide listing joins contract metadata and leads with high severity
	all, err := client.GetRiskFlags("")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "high", all[0].Severity)
	assert.Equal(t, "b.pdf", all[0].Filename)
}

func TestDeleteContractCascades(t *testing.T) {
	client := newTestClient(t)

	id, err := client.CreateContract("msa.pdf", 1)
	require.NoError(t, err)
	require.NoError(t, client.LogStage(id, "chunking", "complete", "", 5))
	require.NoError(t, client.SaveRiskFlags(id, []models.RiskFlag{
		{ContractID: id, FlagType: "x", Severity: "low", Description: "d"},
	}))

	require.NoError(t, client.DeleteContract(id))

	contract, err := client.GetContract(id)
	require.NoError(t, err)
	assert.Nil(t, contract)

	log, err := client.GetLog(id)
	require.NoError(t, err)
	assert.Empty(t, log)

	flags, err := client.GetRiskFlags(id)
	require.NoError(t, err)
	assert.Empty(t, flags)
}

func TestQueryHistory(t *testing.T) {
	client := newTestClient(t)

	for i := 0; i < 3; i++ {
		_, err := client.SaveQuery(&models.QueryRecord{
			Question:   "Is there a liability cap?",
			Answer:     "Yes, two million dollars.",
			QueryType:  "clause",
			ChunkCount: 6,
			GraphOnly:  2,
			LatencyMs:  1200,
		})
		require.NoError(t, err)
	}

	history, err := client.GetHistory(2)
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Equal(t, "clause", history[0].QueryType)
	assert.Equal(t, 2, history[0].GraphOnly)

	count, err := client.CountQueries()
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
