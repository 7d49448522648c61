package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/legal-rag/backend/internal/cache/redis"
	"github.com/legal-rag/backend/internal/graph/neo4j"
	"github.com/legal-rag/backend/internal/ingestion"
	"github.com/legal-rag/backend/internal/storage/models"
	"github.com/legal-rag/backend/internal/storage/sqlite"
	"github.com/legal-rag/backend/pkg/logger"
)

type ContractHandler struct {
	db        *sqlite.Client
	graph     *neo4j.Client
	processor *ingestion.Processor
	cache     *redis.Client
	hub       *ProgressHub
	uploadDir string
}

// NewContractHandler wires the upload and lifecycle endpoints. cache may be
// nil when Redis is disabled.
func NewContractHandler(
	db *sqlite.Client,
	graph *neo4j.Client,
	processor *ingestion.Processor,
	cache *redis.Client,
	hub *ProgressHub,
	uploadDir string,
) *ContractHandler {
	return &ContractHandler{
		db:        db,
		graph:     graph,
		processor: processor,
		cache:     cache,
		hub:       hub,
		uploadDir: uploadDir,
	}
}

// UploadContract accepts a contract file and kicks off ingestion in the
// background. Clients poll the status endpoint or subscribe to the progress
// websocket.
func (h *ContractHandler) UploadContract(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "A file field is required",
		})
	}

	contractID, err := h.db.CreateContract(file.Filename, file.Size)
	if err != nil {
		logger.Error("Failed to create contract record", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to register contract",
		})
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		logger.Error("Failed to create upload directory", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store file",
		})
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	storedPath := filepath.Join(h.uploadDir, contractID+ext)
	if err := c.SaveFile(file, storedPath); err != nil {
		logger.Error("Failed to save uploaded file", zap.Error(err))
		h.db.UpdateContractStatus(contractID, models.StatusFailed, "failed to store file")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store file",
		})
	}

	logger.Info("Contract uploaded",
		zap.String("contract_id", contractID),
		zap.String("filename", file.Filename),
		zap.Int64("size", file.Size),
	)

	go func() {
		_, err := h.processor.ProcessContract(context.Background(), contractID, storedPath, h.hub.Publish)
		if err != nil {
			logger.Error("Background ingestion failed",
				zap.String("contract_id", contractID),
				zap.Error(err),
			)
		}
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"contract_id": contractID,
		"filename":    file.Filename,
		"status":      models.StatusPending,
	})
}

func (h *ContractHandler) ListContracts(c *fiber.Ctx) error {
	contracts, err := h.db.ListContracts()
	if err != nil {
		logger.Error("Failed to list contracts", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list contracts",
		})
	}

	if contracts == nil {
		contracts = []models.Contract{}
	}
	return c.JSON(fiber.Map{
		"contracts": contracts,
		"total":     len(contracts),
	})
}

// GetContractStatus returns the contract row with its processing log and
// risk flags, the payload status polling is built on.
func (h *ContractHandler) GetContractStatus(c *fiber.Ctx) error {
	contractID := c.Params("id")

	contract, err := h.db.GetContract(contractID)
	if err != nil {
		logger.Error("Failed to get contract", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get contract",
		})
	}
	if contract == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Contract not found",
		})
	}

	log, err := h.db.GetLog(contractID)
	if err != nil {
		logger.Warn("Failed to get processing log", zap.Error(err))
	}
	flags, err := h.db.GetRiskFlags(contractID)
	if err != nil {
		logger.Warn("Failed to get risk flags", zap.Error(err))
	}

	if log == nil {
		log = []models.ProcessingLogEntry{}
	}
	if flags == nil {
		flags = []models.RiskFlag{}
	}
	return c.JSON(fiber.Map{
		"contract":       contract,
		"processing_log": log,
		"risk_flags":     flags,
	})
}

// DeleteContract removes a contract everywhere: graph nodes with orphan
// cleanup, the relational rows, the stored file and any cached answers.
func (h *ContractHandler) DeleteContract(c *fiber.Ctx) error {
	contractID := c.Params("id")

	contract, err := h.db.GetContract(contractID)
	if err != nil {
		logger.Error("Failed to get contract", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get contract",
		})
	}
	if contract == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Contract not found",
		})
	}

	if err := h.graph.DeleteContract(c.Context(), contractID); err != nil {
		logger.Error("Failed to delete contract from graph", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete contract",
		})
	}
	if err := h.db.DeleteContract(contractID); err != nil {
		logger.Error("Failed to delete contract rows", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete contract",
		})
	}

	ext := strings.ToLower(filepath.Ext(contract.Filename))
	if err := os.Remove(filepath.Join(h.uploadDir, contractID+ext)); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to remove stored file", zap.Error(err))
	}

	if h.cache != nil {
		if err := h.cache.InvalidateAnswers(c.Context()); err != nil {
			logger.Warn("Answer cache invalidation failed", zap.Error(err))
		}
	}

	logger.Info("Contract deleted", zap.String("contract_id", contractID))
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Contract %s deleted", contractID),
	})
}

// ListRiskFlags returns the highest-severity flags across the corpus, or one
// contract's flags when contract_id is given.
func (h *ContractHandler) ListRiskFlags(c *fiber.Ctx) error {
	flags, err := h.db.GetRiskFlags(c.Query("contract_id"))
	if err != nil {
		logger.Error("Failed to list risk flags", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list risk flags",
		})
	}

	if flags == nil {
		flags = []models.RiskFlag{}
	}
	return c.JSON(fiber.Map{
		"risk_flags": flags,
		"total":      len(flags),
	})
}
