package services_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"studio-backend/internal/jsonvalue"
	"studio-backend/internal/models"
	"studio-backend/internal/replicate"
	"studio-backend/internal/services"
	"studio-backend/internal/supabase"
)

const baseURL = "https://proj.supabase.co"

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type storedObject struct {
	bucket, path, contentType string
}

type objectStore struct {
	failBucket string
	failErr    error
	uploads    []storedObject
	created    []string
}

func (o *objectStore) Upload(_ context.Context, bucket, path string, data []byte, contentType string) error {
	if bucket == o.failBucket && o.failErr != nil {
		return o.failErr
	}
	o.uploads = append(o.uploads, storedObject{bucket, path, contentType})
	return nil
}

func (o *objectStore) CreateBucket(_ context.Context, bucket string, public bool) error {
	o.created = append(o.created, bucket)
	return nil
}

type generator struct {
	token       string
	output      string
	runErr      error
	asset       *replicate.Asset
	downloadErr error
	runs        []map[string]any
	downloads   []string
}

func (g *generator) Configured() bool { return g.token != "" }

func (g *generator) Run(_ context.Context, _ string, input map[string]any) (*jsonvalue.Value, error) {
	g.runs = append(g.runs, input)
	if g.runErr != nil {
		return nil, g.runErr
	}
	return jsonvalue.Parse([]byte(g.output))
}

func (g *generator) Download(_ context.Context, url string) (*replicate.Asset, error) {
	g.downloads = append(g.downloads, url)
	if g.downloadErr != nil {
		return nil, g.downloadErr
	}
	return g.asset, nil
}

type projectStore struct {
	err      error
	projects []models.Project
}

func (p *projectStore) CreateProject(_ context.Context, project *models.Project) error {
	if p.err != nil {
		return p.err
	}
	p.projects = append(p.projects, *project)
	return nil
}

type fixture struct {
	store    *objectStore
	gen      *generator
	projects *projectStore
	service  *services.GenerationService
}

func newFixture() *fixture {
	f := &fixture{
		store: &objectStore{},
		gen: &generator{
			token:  "r8_token",
			output: `{"id": "p1", "output": [{"url": "https://replicate.delivery/gen.webp"}]}`,
			asset:  &replicate.Asset{Data: []byte("webp"), ContentType: "image/webp"},
		},
		projects: &projectStore{},
	}
	f.service = services.NewGenerationService(
		supabase.NewStorageClientWithStore(baseURL, f.store),
		f.gen,
		f.projects,
		zap.NewNop(),
		"google/nano-banana",
		"input-images",
		"output-images",
	)
	n := 0
	f.service.SetIDGenerator(func() string {
		n++
		return fmt.Sprintf("id%d", n)
	})
	return f
}

func request() models.GenerateRequest {
	return models.GenerateRequest{Prompt: "add sunset", Image: pngBytes, ContentType: "image/png"}
}

func statusOf(t *testing.T, err error) (int, string) {
	t.Helper()
	var genErr *services.GenerationError
	require.ErrorAs(t, err, &genErr)
	return genErr.Status, genErr.Message
}

func TestGenerate_EndToEnd(t *testing.T) {
	f := newFixture()

	project, err := f.service.Generate(context.Background(), request())
	require.NoError(t, err)

	inputURL := baseURL + "/storage/v1/object/public/input-images/inputs/id1.png"
	outputURL := baseURL + "/storage/v1/object/public/output-images/outputs/id2.webp"

	assert.Equal(t, outputURL, project.OutputImageURL)
	assert.Equal(t, []storedObject{
		{"input-images", "inputs/id1.png", "image/png"},
		{"output-images", "outputs/id2.webp", "image/webp"},
	}, f.store.uploads)

	require.Len(t, f.gen.runs, 1)
	assert.Equal(t, map[string]any{"image": inputURL, "prompt": "add sunset"}, f.gen.runs[0])
	assert.Equal(t, []string{"https://replicate.delivery/gen.webp"}, f.gen.downloads)

	require.Len(t, f.projects.projects, 1)
	row := f.projects.projects[0]
	assert.Equal(t, inputURL, row.InputImageURL)
	assert.Equal(t, outputURL, row.OutputImageURL)
	assert.Equal(t, "add sunset", row.Prompt)
	assert.Equal(t, models.ProjectStatusCompleted, row.Status)
}

func TestGenerate_NotConfigured(t *testing.T) {
	f := newFixture()
	f.gen.token = ""

	_, err := f.service.Generate(context.Background(), request())
	status, msg := statusOf(t, err)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, services.MsgNotConfigured, msg)
	assert.Empty(t, f.store.uploads)
}

func TestGenerate_MissingInputs(t *testing.T) {
	f := newFixture()

	_, err := f.service.Generate(context.Background(), models.GenerateRequest{Image: pngBytes})
	status, _ := statusOf(t, err)
	assert.Equal(t, http.StatusBadRequest, status)

	_, err = f.service.Generate(context.Background(), models.GenerateRequest{Prompt: "x"})
	status, msg := statusOf(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, services.MsgImageRequired, msg)
	assert.Empty(t, f.store.uploads)
}

func TestGenerate_UnknownTypeUsesBin(t *testing.T) {
	f := newFixture()
	req := models.GenerateRequest{Prompt: "x", Image: []byte("just text"), ContentType: "image/gif"}

	_, err := f.service.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "inputs/id1.bin", f.store.uploads[0].path)
	assert.Equal(t, "image/gif", f.store.uploads[0].contentType)
}

func TestGenerate_SniffsUndeclaredType(t *testing.T) {
	f := newFixture()
	req := models.GenerateRequest{Prompt: "x", Image: pngBytes}

	_, err := f.service.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "inputs/id1.png", f.store.uploads[0].path)
}

func TestGenerate_InputBucketMissing(t *testing.T) {
	f := newFixture()
	f.store.failBucket = "input-images"
	f.store.failErr = errors.New("Bucket not found")

	_, err := f.service.Generate(context.Background(), request())
	status, msg := statusOf(t, err)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, msg, `"input-images"`)
	assert.Equal(t, []string{"input-images"}, f.store.created)
	assert.Empty(t, f.gen.runs)
}

func TestGenerate_RunFails(t *testing.T) {
	f := newFixture()
	f.gen.runErr = errors.New("boom")

	_, err := f.service.Generate(context.Background(), request())
	status, msg := statusOf(t, err)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, services.MsgGenerationFailed, msg)
	assert.Empty(t, f.gen.downloads)
}

func TestGenerate_NoURLInOutput(t *testing.T) {
	f := newFixture()
	f.gen.output = `{"status": "succeeded", "output": ["not a url", 42, null]}`

	_, err := f.service.Generate(context.Background(), request())
	status, msg := statusOf(t, err)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, services.MsgNoOutput, msg)

	assert.Empty(t, f.gen.downloads)
	assert.Len(t, f.store.uploads, 1)
	assert.Empty(t, f.projects.projects)
}

func TestGenerate_DownloadStatusFailure(t *testing.T) {
	f := newFixture()
	f.gen.downloadErr = &replicate.StatusError{StatusCode: http.StatusForbidden}

	_, err := f.service.Generate(context.Background(), request())
	status, msg := statusOf(t, err)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, services.MsgDownloadFailed, msg)
	assert.Len(t, f.store.uploads, 1)
}

func TestGenerate_DownloadTransportFailure(t *testing.T) {
	f := newFixture()
	f.gen.downloadErr = errors.New("connection reset")

	_, err := f.service.Generate(context.Background(), request())
	status, _ := statusOf(t, err)
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestGenerate_OutputUploadFailsWithoutBucketCreation(t *testing.T) {
	f := newFixture()
	f.store.failBucket = "output-images"
	f.store.failErr = errors.New("payload too large")

	_, err := f.service.Generate(context.Background(), request())
	status, msg := statusOf(t, err)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, services.MsgOutputUpload, msg)
	assert.Empty(t, f.store.created)
	assert.Empty(t, f.projects.projects)
}

func TestGenerate_OutputDefaultsToPNG(t *testing.T) {
	f := newFixture()
	f.gen.asset = &replicate.Asset{Data: []byte("raw")}

	project, err := f.service.Generate(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, storedObject{"output-images", "outputs/id2.png", "image/png"}, f.store.uploads[1])
	assert.Contains(t, project.OutputImageURL, "outputs/id2.png")
}

func TestGenerate_InsertFailureStillSucceeds(t *testing.T) {
	f := newFixture()
	f.projects.err = errors.New("relation does not exist")

	project, err := f.service.Generate(context.Background(), request())
	require.NoError(t, err)
	assert.Contains(t, project.OutputImageURL, "/output-images/outputs/id2.webp")
}

func TestExtensionFor(t *testing.T) {
	tests := map[string]string{
		"image/png":                 "png",
		"image/jpeg":                "jpg",
		"image/jpg":                 "jpg",
		"IMAGE/WEBP":                "webp",
		"image/png; charset=binary": "png",
	}
	for in, want := range tests {
		got, ok := services.ExtensionFor(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "image/gif", "application/octet-stream", "text/html"} {
		_, ok := services.ExtensionFor(in)
		assert.False(t, ok, in)
	}
}

func TestResolveContentType(t *testing.T) {
	assert.Equal(t, "image/jpeg", services.ResolveContentType("image/jpeg", pngBytes))
	assert.Equal(t, "image/png", services.ResolveContentType("", pngBytes))
	assert.Equal(t, "image/png", services.ResolveContentType("application/octet-stream", pngBytes))
	assert.Equal(t, "application/octet-stream", services.ResolveContentType("", nil))
}

func TestGenerate_StorageDeadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	gen := &generator{token: "r8_token"}
	service := services.NewGenerationService(
		supabase.NewStorageClient(server.URL, "service-key"),
		gen,
		&projectStore{},
		zap.NewNop(),
		"google/nano-banana",
		"input-images",
		"output-images",
	)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := service.Generate(ctx, request())
	status, msg := statusOf(t, err)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, services.MsgInputUpload, msg)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Empty(t, gen.runs)
}
