package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"studio-backend/internal/jsonvalue"
	"studio-backend/internal/models"
	"studio-backend/internal/replicate"
	"studio-backend/internal/supabase"
)

// User-facing messages returned by the generation flow.
const (
	MsgNotConfigured    = "generation API token is not configured"
	MsgPromptRequired   = "a prompt is required to generate an image"
	MsgImageRequired    = "no image file received"
	MsgInputUpload      = "failed to upload the source image"
	MsgNoOutput         = "the model did not return an image"
	MsgDownloadFailed   = "failed to download the generated image"
	MsgOutputUpload     = "failed to save the generated image"
	MsgGenerationFailed = "generation failed, please retry later"
)

type ObjectStorage interface {
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error)
}

type Generator interface {
	Configured() bool
	Run(ctx context.Context, model string, input map[string]any) (*jsonvalue.Value, error)
	Download(ctx context.Context, url string) (*replicate.Asset, error)
}

type ProjectStore interface {
	CreateProject(ctx context.Context, project *models.Project) error
}

// GenerationError carries the HTTP status and client message for a failed step.
type GenerationError struct {
	Status  int
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

type GenerationService struct {
	storage      ObjectStorage
	generator    Generator
	projects     ProjectStore
	log          *zap.Logger
	model        string
	inputBucket  string
	outputBucket string
	newID        func() string
}

func NewGenerationService(
	storage ObjectStorage,
	generator Generator,
	projects ProjectStore,
	log *zap.Logger,
	model, inputBucket, outputBucket string,
) *GenerationService {
	return &GenerationService{
		storage:      storage,
		generator:    generator,
		projects:     projects,
		log:          log,
		model:        model,
		inputBucket:  inputBucket,
		outputBucket: outputBucket,
		newID:        func() string { return uuid.New().String() },
	}
}

// CheckConfigured fails when no generation API token is available.
func (s *GenerationService) CheckConfigured() error {
	if !s.generator.Configured() {
		return &GenerationError{Status: http.StatusInternalServerError, Message: MsgNotConfigured}
	}
	return nil
}

// Generate uploads the source image, runs the model on its public URL, stores
// the produced asset and records a project row.
//
// Steps run strictly in sequence. A failed project insert is logged and does
// not fail the call; the stored objects are left in place on any failure.
func (s *GenerationService) Generate(ctx context.Context, req models.GenerateRequest) (*models.Project, error) {
	if err := s.CheckConfigured(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, &GenerationError{Status: http.StatusBadRequest, Message: MsgPromptRequired}
	}
	if req.Image == nil {
		return nil, &GenerationError{Status: http.StatusBadRequest, Message: MsgImageRequired}
	}

	inputType := resolveContentType(req.ContentType, req.Image)
	inputPath := fmt.Sprintf("inputs/%s.%s", s.newID(), extensionOr(inputType, "bin"))

	inputURL, err := s.storage.Upload(ctx, s.inputBucket, inputPath, req.Image, inputType)
	if err != nil {
		return nil, s.uploadFailure(s.inputBucket, MsgInputUpload, err)
	}

	output, err := s.generator.Run(ctx, s.model, map[string]any{
		"image":  inputURL,
		"prompt": req.Prompt,
	})
	if err != nil {
		s.log.Error("generation run failed", zap.String("model", s.model), zap.Error(err))
		return nil, &GenerationError{Status: http.StatusInternalServerError, Message: MsgGenerationFailed, Err: err}
	}

	generatedURL, ok := jsonvalue.FirstURL(output)
	if !ok {
		s.log.Error("generation returned no url", zap.String("model", s.model))
		return nil, &GenerationError{Status: http.StatusInternalServerError, Message: MsgNoOutput}
	}

	asset, err := s.generator.Download(ctx, generatedURL)
	if err != nil {
		if statusErr, ok := replicate.IsStatusError(err); ok {
			s.log.Error("generated asset download failed",
				zap.String("url", generatedURL), zap.Int("status", statusErr.StatusCode))
			return nil, &GenerationError{Status: http.StatusBadGateway, Message: MsgDownloadFailed, Err: err}
		}
		s.log.Error("generated asset download failed", zap.String("url", generatedURL), zap.Error(err))
		return nil, &GenerationError{Status: http.StatusInternalServerError, Message: MsgGenerationFailed, Err: err}
	}

	outputType := asset.ContentType
	if outputType == "" {
		outputType = "image/png"
	}
	outputPath := fmt.Sprintf("outputs/%s.%s", s.newID(), extensionOr(outputType, "png"))

	outputURL, err := s.storage.Upload(ctx, s.outputBucket, outputPath, asset.Data, outputType)
	if err != nil {
		return nil, s.uploadFailure(s.outputBucket, MsgOutputUpload, err)
	}

	project := &models.Project{
		InputImageURL:  inputURL,
		OutputImageURL: outputURL,
		Prompt:         req.Prompt,
		Status:         models.ProjectStatusCompleted,
	}
	if err := s.projects.CreateProject(ctx, project); err != nil {
		s.log.Error("failed to insert project",
			zap.String("input_image_url", inputURL),
			zap.String("output_image_url", outputURL),
			zap.Error(err))
	}

	return project, nil
}

func (s *GenerationService) uploadFailure(bucket, message string, err error) error {
	s.log.Error(message, zap.String("bucket", bucket), zap.Error(err))
	if errors.Is(err, supabase.ErrBucketNotFound) {
		message = fmt.Sprintf("bucket %q was not found or is not accessible; create it in Supabase Storage and make it public", bucket)
	}
	return &GenerationError{Status: http.StatusInternalServerError, Message: message, Err: err}
}
