package validation

import (
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/legal-rag/backend/internal/textextract"
	"github.com/legal-rag/backend/pkg/logger"
)

type Config struct {
	MaxQuestionLength int
	MaxUploadSize     int64
}

// Middleware rejects malformed query and upload requests before they reach
// the handlers.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxQuestionLength == 0 {
		cfg.MaxQuestionLength = 2000
	}
	if cfg.MaxUploadSize == 0 {
		cfg.MaxUploadSize = 20 * 1024 * 1024
	}

	return func(c *fiber.Ctx) error {
		path := c.Path()

		if c.Method() == fiber.MethodPost && strings.HasSuffix(path, "/query") {
			var req struct {
				Question string `json:"question"`
			}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON body",
				})
			}

			question := strings.TrimSpace(req.Question)
			if question == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Question is required",
				})
			}
			if len(question) > cfg.MaxQuestionLength {
				logger.Warn("Question over length limit",
					zap.String("ip", c.IP()),
					zap.Int("length", len(question)),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Question exceeds maximum length",
				})
			}
			c.Locals("question", question)
		}

		if c.Method() == fiber.MethodPost && strings.HasSuffix(path, "/contracts/upload") {
			file, err := c.FormFile("file")
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "A file field is required",
				})
			}

			ext := strings.ToLower(filepath.Ext(file.Filename))
			if !textextract.SupportedExtensions[ext] {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error":     "Unsupported file type",
					"supported": supportedList(),
				})
			}

			if file.Size > cfg.MaxUploadSize {
				return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
					"error": "File exceeds maximum upload size",
				})
			}
		}

		return c.Next()
	}
}

func supportedList() []string {
	exts := make([]string, 0, len(textextract.SupportedExtensions))
	for ext := range textextract.SupportedExtensions {
		exts = append(exts, ext)
	}
	return exts
}
