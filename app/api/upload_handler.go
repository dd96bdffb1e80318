package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"docchat/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Uploader interface {
	Upload(ctx context.Context, stagedPath, filename string) (*types.UploadResponse, error)
}

type UploadHandler struct {
	uploader   Uploader
	stagingDir string
}

func NewUploadHandler(uploader Uploader, stagingDir string) *UploadHandler {
	return &UploadHandler{
		uploader:   uploader,
		stagingDir: stagingDir,
	}
}

// HandleUpload stages the multipart file data_file on local disk and hands it to the blob store.
func (h *UploadHandler) HandleUpload(c *fiber.Ctx) error {
	file, err := c.FormFile("data_file")
	if err != nil {
		return ErrFileNotFound()
	}

	if err := os.MkdirAll(h.stagingDir, 0o755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	staged := filepath.Join(h.stagingDir, uuid.NewString()+filepath.Ext(file.Filename))
	if err := c.SaveFile(file, staged); err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(staged); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove staged upload", "path", staged, "error", err)
		}
	}()

	resp, err := h.uploader.Upload(c.UserContext(), staged, file.Filename)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}
