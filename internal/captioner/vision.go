package captioner

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/llavacap/internal/config"
	"github.com/timmy/llavacap/internal/logger"
)

// VisionCaptioner is a single-purpose image-to-text model behind a hosted
// inference endpoint. It ignores the prompt.
type VisionCaptioner struct {
	client *resty.Client
	path   string
	model  string
}

type visionResult struct {
	GeneratedText string `json:"generated_text"`
}

type visionError struct {
	Error apiError `json:"error"`
}

// NewVisionCaptioner creates a client for the image-to-text endpoint.
// Parameters:
//   - ctx: unused; present for a uniform constructor signature.
//   - cfg: run configuration; Hosted.Token authenticates, Vision selects the model.
//   - log: logger used for HTTP dumps when sys-logging is on.
//
// Returns:
//   - *VisionCaptioner: ready captioner.
//   - error: non-nil if no API token or model is configured.
func NewVisionCaptioner(_ context.Context, cfg *config.Config, log *logger.Logger) (*VisionCaptioner, error) {
	if cfg.Hosted.Token == "" {
		return nil, fmt.Errorf("vision API token is required (set HF_TOKEN)")
	}
	if cfg.Vision.Model == "" {
		return nil, fmt.Errorf("vision model is required (set VISION_MODEL)")
	}

	return &VisionCaptioner{
		client: newRestClient(cfg, cfg.Vision.BaseURL, cfg.Hosted.Token, log),
		path:   "/" + modelPath(cfg.Vision.Model),
		model:  cfg.Vision.Model,
	}, nil
}

// modelPath escapes each segment of an "org/name" model id.
func modelPath(model string) string {
	segments := strings.Split(strings.Trim(model, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// Name returns the backend identifier.
func (c *VisionCaptioner) Name() string {
	return "vision"
}

// Caption uploads the raw image bytes; the prompt is not used.
func (c *VisionCaptioner) Caption(ctx context.Context, _ string, imagePath string) (string, error) {
	data, err := readImage(c.Name(), imagePath)
	if err != nil {
		return "", err
	}

	var result []visionResult
	var apiErr visionError
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", mimeType(imagePath)).
		SetHeader("Accept", "application/json").
		SetBody(data).
		SetResult(&result).
		SetError(&apiErr).
		Post(c.path)
	if err != nil {
		return "", requestError(c.Name(), httpResp, err)
	}

	if httpResp.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = string(httpResp.Body())
		}
		return "", newErrorf(c.Name(), KindBackend, "HTTP %d: %s", httpResp.StatusCode(), msg)
	}

	if len(result) == 0 {
		return "", newErrorf(c.Name(), KindMalformedResponse, "no generated text from %s", c.model)
	}

	caption := NormalizeText(result[0].GeneratedText)
	if caption == "" {
		return "", newErrorf(c.Name(), KindMalformedResponse, "empty caption from %s", c.model)
	}
	return caption, nil
}
