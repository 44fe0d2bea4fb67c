package captioner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/llavacap/internal/config"
	"github.com/timmy/llavacap/internal/logger"
	"github.com/timmy/llavacap/internal/prompts"
)

// HostedCaptioner captions images through a hosted OpenAI-compatible
// chat completions API (the Hugging Face inference router by default).
type HostedCaptioner struct {
	client      *resty.Client
	model       string
	temperature float64
}

// OpenAI-compatible Chat Completion API request/response structures
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string for system, []interface{} for user with images
}

type chatTextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type chatImageContent struct {
	Type     string       `json:"type"`
	ImageURL chatImageURL `json:"image_url"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

// apiError accepts both {"error": "text"} and {"error": {"message": "text"}}.
type apiError struct {
	Message string `json:"message"`
}

func (e *apiError) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		e.Message = text
		return nil
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	e.Message = obj.Message
	return nil
}

// NewHostedCaptioner creates a client for the hosted API.
// Parameters:
//   - ctx: unused; present for a uniform constructor signature.
//   - cfg: run configuration; Hosted.Token is required.
//   - log: logger used for HTTP dumps when sys-logging is on.
//
// Returns:
//   - *HostedCaptioner: ready captioner.
//   - error: non-nil if no API token is configured.
func NewHostedCaptioner(_ context.Context, cfg *config.Config, log *logger.Logger) (*HostedCaptioner, error) {
	if cfg.Hosted.Token == "" {
		return nil, fmt.Errorf("hosted API token is required (set HF_TOKEN)")
	}

	return &HostedCaptioner{
		client:      newRestClient(cfg, cfg.Hosted.BaseURL, cfg.Hosted.Token, log),
		model:       cfg.Hosted.Model,
		temperature: cfg.Temperature,
	}, nil
}

// newRestClient builds the resty client shared by the hosted backends.
func newRestClient(cfg *config.Config, baseURL, token string, log *logger.Logger) *resty.Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(token).
		SetTimeout(cfg.RequestTimeout).
		SetLogger(log)
	if cfg.SysLogging {
		client.SetDebug(true)
	}
	return client
}

// Name returns the backend identifier.
func (c *HostedCaptioner) Name() string {
	return "hosted"
}

// Caption posts the prompt and the image as a data URI.
func (c *HostedCaptioner) Caption(ctx context.Context, prompt, imagePath string) (string, error) {
	data, err := readImage(c.Name(), imagePath)
	if err != nil {
		return "", err
	}

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{
				Role:    "system",
				Content: prompts.CaptionSystemPrompt,
			},
			{
				Role: "user",
				Content: []interface{}{
					chatTextContent{Type: "text", Text: prompt},
					chatImageContent{
						Type:     "image_url",
						ImageURL: chatImageURL{URL: EncodeDataURI(data, mimeType(imagePath))},
					},
				},
			},
		},
		MaxTokens:   300,
		Temperature: c.temperature,
	}

	var resp chatResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post("/chat/completions")
	if err != nil {
		return "", requestError(c.Name(), httpResp, err)
	}

	if httpResp.IsError() {
		msg := string(httpResp.Body())
		if resp.Error != nil && resp.Error.Message != "" {
			msg = resp.Error.Message
		}
		return "", newErrorf(c.Name(), KindBackend, "HTTP %d: %s", httpResp.StatusCode(), msg)
	}

	if resp.Error != nil {
		return "", newErrorf(c.Name(), KindBackend, "%s", resp.Error.Message)
	}

	if len(resp.Choices) == 0 {
		return "", newErrorf(c.Name(), KindMalformedResponse, "no choices in response (status: %d)", httpResp.StatusCode())
	}

	caption := NormalizeText(resp.Choices[0].Message.Content)
	if caption == "" {
		return "", newErrorf(c.Name(), KindMalformedResponse, "empty caption in response")
	}
	return caption, nil
}

// requestError classifies a resty failure. An error status is a backend error,
// an undecodable success body is malformed, and no response at all is a
// connection problem.
func requestError(backend string, resp *resty.Response, err error) error {
	if resp != nil && resp.RawResponse != nil {
		if resp.IsError() {
			return newErrorf(backend, KindBackend, "HTTP %d: %s", resp.StatusCode(), resp.String())
		}
		return newErrorf(backend, KindMalformedResponse, "HTTP %d: %v", resp.StatusCode(), err)
	}
	return newError(backend, KindConnection, err)
}
