package validation

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(cfg Config) *fiber.App {
	app := fiber.New()
	app.Use(Middleware(cfg))
	app.Post("/api/v1/query", func(c *fiber.Ctx) error {
		question, _ := c.Locals("question").(string)
		return c.JSON(fiber.Map{"question": question})
	})
	app.Post("/api/v1/contracts/upload", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusAccepted)
	})
	return app
}

func TestQueryValidation(t *testing.T) {
	app := newApp(Config{MaxQuestionLength: 50})

	cases := []struct {
		name   string
		body   string
		status int
	}{
		{"valid", `{"question": "Is there a liability cap?"}`, 200},
		{"empty", `{"question": ""}`, 400},
		{"whitespace only", `{"question": "   "}`, 400},
		{"missing field", `{}`, 400},
		{"bad json", `{question`, 400},
		{"too long", `{"question": "` + strings.Repeat("x", 60) + `"}`, 400},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/query", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func multipartBody(t *testing.T, filename string, size int) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("a"), size))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestUploadValidation(t *testing.T) {
	app := newApp(Config{MaxUploadSize: 1024})

	t.Run("supported extension", func(t *testing.T) {
		body, contentType := multipartBody(t, "agreement.pdf", 100)
		req := httptest.NewRequest("POST", "/api/v1/contracts/upload", body)
		req.Header.Set("Content-Type", contentType)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		body, contentType := multipartBody(t, "agreement.docx", 100)
		req := httptest.NewRequest("POST", "/api/v1/contracts/upload", body)
		req.Header.Set("Content-Type", contentType)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)
	})

	t.Run("oversized file", func(t *testing.T) {
		body, contentType := multipartBody(t, "agreement.txt", 2048)
		req := httptest.NewRequest("POST", "/api/v1/contracts/upload", body)
		req.Header.Set("Content-Type", contentType)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusRequestEntityTooLarge, resp.StatusCode)
	})

	t.Run("missing file field", func(t *testing.T) {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		require.NoError(t, writer.Close())

		req := httptest.NewRequest("POST", "/api/v1/contracts/upload", &buf)
		req.Header.Set("Content-Type", writer.FormDataContentType())

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestOtherRoutesPassThrough(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware(Config{}))
	app.Get("/api/v1/contracts", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/contracts", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
