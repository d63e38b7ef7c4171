package handler

import (
	"bytes"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/cuongbtq/trendrider/internal/api/dto"
	"github.com/cuongbtq/trendrider/internal/blob"
	"github.com/cuongbtq/trendrider/internal/domain"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const uploadField = "image"

var allowedUploadTypes = []string{"image/jpeg", "image/png", "image/webp"}

var errUploadTooLarge = errors.New("upload exceeds size limit")

// CreateUpload handles POST /api/v1/uploads
// The content type is sniffed from the bytes; the client's header is ignored.
func (h *Handler) CreateUpload(c *gin.Context) {
	fileHeader, err := c.FormFile(uploadField)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "multipart field \"image\" is required"})
		return
	}
	if fileHeader.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, dto.ErrorResponse{Error: "Image is too large"})
		return
	}

	data, err := h.readUpload(fileHeader)
	if err != nil {
		if errors.Is(err, errUploadTooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, dto.ErrorResponse{Error: "Image is too large"})
			return
		}
		h.respondError(c, err)
		return
	}

	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), allowedUploadTypes...) {
		c.JSON(http.StatusUnsupportedMediaType, dto.ErrorResponse{
			Error:  "Only JPEG, PNG and WebP images are accepted",
			Reason: "unsupported_media_type",
		})
		return
	}
	contentType := mtype.String()

	width, height, err := imageDimensions(data, contentType)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Image could not be read"})
		return
	}

	identity := IdentityFrom(c)
	upload := &domain.Upload{
		ID:               uuid.New().String(),
		OriginalFilename: filepath.Base(fileHeader.Filename),
		MimeType:         contentType,
		FileSize:         int64(len(data)),
		Width:            width,
		Height:           height,
		CreatedAt:        time.Now().UTC(),
	}
	if !identity.Anonymous() {
		userID := identity.UserID
		upload.UserID = &userID
	}
	upload.StorageKey = blob.UploadKey(upload.ID, contentType)

	ctx := c.Request.Context()
	if _, err := h.blobs.Put(ctx, upload.StorageKey, data, contentType); err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.store.CreateUpload(ctx, upload); err != nil {
		h.respondError(c, err)
		return
	}

	h.logger.Info("Upload stored",
		slog.String("upload_id", upload.ID),
		slog.String("mime_type", contentType),
		slog.Int64("size", upload.FileSize),
	)

	c.JSON(http.StatusCreated, dto.UploadDTO{
		ID:               upload.ID,
		OriginalFilename: upload.OriginalFilename,
		MimeType:         upload.MimeType,
		FileSize:         upload.FileSize,
		ImageWidth:       upload.Width,
		ImageHeight:      upload.Height,
		CreatedAt:        upload.CreatedAt,
	})
}

func (h *Handler) readUpload(fileHeader *multipart.FileHeader) ([]byte, error) {
	f, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > h.maxUploadBytes {
		return nil, errUploadTooLarge
	}
	return data, nil
}

// imageDimensions reads only the header. WebP has no registered decoder, so
// its dimensions are recorded as unknown.
func imageDimensions(data []byte, contentType string) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if contentType == "image/webp" {
			return 0, 0, nil
		}
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
