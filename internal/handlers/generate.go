package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"studio-backend/internal/middleware"
	"studio-backend/internal/models"
	"studio-backend/internal/services"
)

const (
	maxUploadMemory = 32 << 20
	// room for the prompt field and multipart framing on top of the image
	formOverhead = 1 << 20

	MsgInvalidForm   = "invalid form data"
	MsgReadImage     = "failed to read the uploaded image"
	MsgImageTooLarge = "the uploaded image is too large"
)

type GenerateHandler struct {
	service       *services.GenerationService
	log           *zap.Logger
	timeout       time.Duration
	maxImageBytes int64
}

func NewGenerateHandler(service *services.GenerationService, log *zap.Logger, timeout time.Duration, maxImageBytes int64) *GenerateHandler {
	return &GenerateHandler{
		service:       service,
		log:           log,
		timeout:       timeout,
		maxImageBytes: maxImageBytes,
	}
}

// Generate godoc
// @Summary     Generate an edited image
// @Description Uploads the source image, runs the model with the prompt and returns the stored result URL.
// @Tags        generate
// @Accept      multipart/form-data
// @Produce     json
// @Param       prompt formData string true "edit instruction"
// @Param       image  formData file   true "source image"
// @Success     200 {object} models.GenerateResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     413 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /api/generate [post]
func (h *GenerateHandler) Generate(c *gin.Context) {
	middleware.SetHandlerTag(c, "generate")

	if err := h.service.CheckConfigured(); err != nil {
		h.fail(c, err)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxImageBytes+formOverhead)
	if err := c.Request.ParseMultipartForm(maxUploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithError(c, h.log, http.StatusRequestEntityTooLarge, MsgImageTooLarge, err)
			return
		}
		abortWithError(c, h.log, http.StatusBadRequest, MsgInvalidForm, err)
		return
	}

	prompt := c.PostForm("prompt")
	if strings.TrimSpace(prompt) == "" {
		abortWithError(c, h.log, http.StatusBadRequest, services.MsgPromptRequired, nil)
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		abortWithError(c, h.log, http.StatusBadRequest, services.MsgImageRequired, err)
		return
	}
	if fileHeader.Size > h.maxImageBytes {
		abortWithError(c, h.log, http.StatusRequestEntityTooLarge, MsgImageTooLarge, nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		abortWithError(c, h.log, http.StatusBadRequest, MsgReadImage, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		abortWithError(c, h.log, http.StatusBadRequest, MsgReadImage, err)
		return
	}

	// Upstream work continues if the client goes away; it is bounded by the timeout only.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.timeout)
	defer cancel()

	project, err := h.service.Generate(ctx, models.GenerateRequest{
		Prompt:      prompt,
		Image:       data,
		ContentType: fileHeader.Header.Get("Content-Type"),
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, models.GenerateResponse{ImageURL: project.OutputImageURL})
}

func (h *GenerateHandler) fail(c *gin.Context, err error) {
	var genErr *services.GenerationError
	if errors.As(err, &genErr) {
		abortWithError(c, h.log, genErr.Status, genErr.Message, err)
		return
	}
	abortWithError(c, h.log, http.StatusInternalServerError, services.MsgGenerationFailed, err)
}
