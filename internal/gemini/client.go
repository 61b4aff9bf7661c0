package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"pro-headshot-ai/internal/headshot"
)

const (
	defaultAnalysisModel = "gemini-2.5-flash"
	defaultImageModel    = "gemini-3-pro-image-preview"
)

// Only sexually-explicit content gets an explicit threshold; every other
// safety category stays at the API default.
var generationSafetySettings = []safetySetting{
	{
		Category:  "HARM_CATEGORY_SEXUALLY_EXPLICIT",
		Threshold: "BLOCK_ONLY_HIGH",
	},
}

type Options struct {
	APIKey        string
	BaseURL       string
	APIVersion    string
	AnalysisModel string
	ImageModel    string
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

// Client talks to the generativelanguage generateContent endpoint. It
// implements headshot.TextAnalyzer and headshot.ImageSynthesizer.
type Client struct {
	apiKey        string
	baseURL       string
	apiVersion    string
	analysisModel string
	imageModel    string
	httpClient    *http.Client
	logger        *slog.Logger
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "v1beta"
	}

	analysisModel := strings.TrimSpace(opts.AnalysisModel)
	if analysisModel == "" {
		analysisModel = defaultAnalysisModel
	}

	imageModel := strings.TrimSpace(opts.ImageModel)
	if imageModel == "" {
		imageModel = defaultImageModel
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		apiKey:        opts.APIKey,
		baseURL:       baseURL,
		apiVersion:    apiVersion,
		analysisModel: analysisModel,
		imageModel:    imageModel,
		httpClient:    opts.HTTPClient,
		logger:        logger,
	}
}

// AnalyzeImage sends one photo plus an instruction to the vision model and
// returns its trimmed text response.
func (c *Client) AnalyzeImage(ctx context.Context, photo headshot.Photo, instruction string) (string, error) {
	if photo.Empty() {
		return "", errors.New("photo is empty")
	}
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return "", errors.New("instruction is empty")
	}

	req := generateContentRequest{
		Contents: []content{
			{
				Role: "user",
				Parts: []part{
					{InlineData: photoBlob(photo)},
					{Text: instruction},
				},
			},
		},
	}

	resp, err := c.generateContent(ctx, c.analysisModel, req)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.text())
	if text == "" {
		return "", errors.New("analysis returned no text")
	}
	return text, nil
}

// GenerateImage sends the composed prompt and all reference photos, in
// order, to the image model. A response without any inline image part is
// not an error: the zero-valued Image marks a refusal and the caller
// decides how to surface it. The call is never retried.
func (c *Client) GenerateImage(ctx context.Context, req headshot.GenerationRequest) (headshot.GenerationResult, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return headshot.GenerationResult{}, errors.New("prompt is empty")
	}
	if len(req.Photos) == 0 {
		return headshot.GenerationResult{}, errors.New("at least one reference photo is required")
	}

	parts := []part{{Text: prompt}}
	for i, photo := range req.Photos {
		if photo.Empty() {
			return headshot.GenerationResult{}, fmt.Errorf("reference photo %d is empty", i+1)
		}
		parts = append(parts, part{InlineData: photoBlob(photo)})
	}

	apiReq := generateContentRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"IMAGE", "TEXT"},
		},
		SafetySettings: generationSafetySettings,
	}
	if sys := strings.TrimSpace(req.SystemInstruction); sys != "" {
		apiReq.SystemInstruction = &content{Role: "user", Parts: []part{{Text: sys}}}
	}

	resp, err := c.generateContent(ctx, c.imageModel, apiReq)
	if err != nil {
		return headshot.GenerationResult{}, err
	}

	out := headshot.GenerationResult{Text: strings.TrimSpace(resp.text())}
	if img, ok := resp.firstImage(); ok {
		out.Image = headshot.Photo{DataBase64: img.Data, MimeType: img.MimeType}
	}
	return out, nil
}

func (c *Client) generateContent(ctx context.Context, model string, payload generateContentRequest) (generateContentResponse, error) {
	if c.httpClient == nil {
		return generateContentResponse{}, errors.New("http client is nil")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, c.apiVersion, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("request: %w", err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		return generateContentResponse{}, fmt.Errorf("gemini API %s: %s", httpResp.Status, strings.TrimSpace(string(rawBody)))
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		return generateContentResponse{}, fmt.Errorf("decode response: %w", err)
	}

	return decoded, nil
}

func photoBlob(p headshot.Photo) *blob {
	mimeType := strings.TrimSpace(p.MimeType)
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return &blob{
		Data:     stripDataURLPrefix(p.DataBase64),
		MimeType: mimeType,
	}
}

func stripDataURLPrefix(value string) string {
	if !strings.HasPrefix(value, "data:") {
		return value
	}
	if idx := strings.IndexByte(value, ','); idx >= 0 {
		return value[idx+1:]
	}
	return value
}
