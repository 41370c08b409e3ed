package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"chat-relay/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxExtLen = 10

// noFileMessage is the error body clients match on.
const noFileMessage = "No file uploaded"

var ErrNoFile = errors.New("no file uploaded")

// UploadHandler stores a multipart file (field "file") under uploadDir and
// answers with the URL it is served from and its chat message type.
func UploadHandler(uploadDir, baseURL string, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			logger.Debug("upload rejected", zap.Error(fmt.Errorf("%w: %v", ErrNoFile, err)))
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": noFileMessage})
		}

		if err := os.MkdirAll(uploadDir, 0755); err != nil {
			logger.Error("create upload dir", zap.String("dir", uploadDir), zap.Error(err))
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create upload dir"})
		}

		filename := uuid.NewString() + safeExt(fileHeader.Filename)
		destPath := filepath.Join(uploadDir, filename)
		if err := c.SaveFile(fileHeader, destPath); err != nil {
			logger.Error("save upload", zap.String("path", destPath), zap.Error(err))
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save file"})
		}

		contentType := fileHeader.Header.Get("Content-Type")
		logger.Info("file uploaded",
			zap.String("file", filename),
			zap.String("content_type", contentType),
			zap.Int64("size", fileHeader.Size),
		)

		return c.JSON(models.UploadResponse{
			URL:  uploadURL(baseURL, filename),
			Type: models.TypeForMIME(contentType),
		})
	}
}

func uploadURL(base, filename string) string {
	if base == "" {
		return "/uploads/" + filename
	}
	return fmt.Sprintf("%s/uploads/%s", strings.TrimRight(base, "/"), filename)
}

// safeExt keeps a short alphanumeric extension from the client's file name.
func safeExt(name string) string {
	ext := filepath.Ext(filepath.Base(name))
	if len(ext) < 2 || len(ext) > maxExtLen {
		return ""
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return strings.ToLower(ext)
}
