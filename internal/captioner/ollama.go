package captioner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/timmy/llavacap/internal/config"
	"github.com/timmy/llavacap/internal/logger"
	"github.com/timmy/llavacap/internal/prompts"
)

// OllamaCaptioner captions images with a vision model served by a local Ollama server.
type OllamaCaptioner struct {
	client  *api.Client
	model   string
	options map[string]any
	log     *logger.Logger
}

// NewOllamaCaptioner connects to the Ollama server at cfg.OllamaAddress and
// checks that it answers before returning.
// Parameters:
//   - ctx: context for the reachability probe.
//   - cfg: run configuration.
//   - log: logger for request diagnostics.
//
// Returns:
//   - *OllamaCaptioner: ready captioner.
//   - error: non-nil if the address is invalid or the server is unreachable.
func NewOllamaCaptioner(ctx context.Context, cfg *config.Config, log *logger.Logger) (*OllamaCaptioner, error) {
	base, err := ollamaBaseURL(cfg.OllamaAddress)
	if err != nil {
		return nil, err
	}

	client := api.NewClient(base, &http.Client{Timeout: cfg.RequestTimeout})
	if err := client.Heartbeat(ctx); err != nil {
		return nil, fmt.Errorf("ollama server at %s is not reachable: %w", base, err)
	}

	options := map[string]any{
		"temperature": cfg.Temperature,
		"num_predict": 300,
	}
	// -1 leaves layer offloading to the server, which uses every layer that fits.
	if cfg.GPULayers >= 0 {
		options["num_gpu"] = cfg.GPULayers
	}

	log.WithFields(logger.Fields{
		"address": base.String(),
		"model":   cfg.Ollama.Model,
	}).Debug("Ollama captioner ready")

	return &OllamaCaptioner{
		client:  client,
		model:   cfg.Ollama.Model,
		options: options,
		log:     log,
	}, nil
}

// Name returns the backend identifier.
func (c *OllamaCaptioner) Name() string {
	return "ollama"
}

// Caption sends the prompt and image to the chat endpoint.
func (c *OllamaCaptioner) Caption(ctx context.Context, prompt, imagePath string) (string, error) {
	data, err := readImage(c.Name(), imagePath)
	if err != nil {
		return "", err
	}

	stream := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{Role: "system", Content: prompts.CaptionSystemPrompt},
			{Role: "user", Content: prompt, Images: []api.ImageData{data}},
		},
		Stream:  &stream,
		Options: c.options,
	}

	var response strings.Builder
	err = c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		response.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", classifyOllamaError(c.Name(), err)
	}

	caption := NormalizeText(response.String())
	if caption == "" {
		return "", newErrorf(c.Name(), KindMalformedResponse, "empty response from model %s", c.model)
	}
	return caption, nil
}

func classifyOllamaError(backend string, err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusBadRequest {
			return newError(backend, KindUnsupportedInput, err)
		}
		return newError(backend, KindBackend, err)
	}
	var authErr api.AuthorizationError
	if errors.As(err, &authErr) {
		return newError(backend, KindBackend, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newError(backend, KindConnection, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return newError(backend, KindConnection, err)
	}
	return newError(backend, KindBackend, err)
}

// ollamaBaseURL accepts "host:port" or a full URL.
func ollamaBaseURL(address string) (*url.URL, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("ollama address is empty")
	}
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	u, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama address %q: %w", address, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid ollama address %q: missing host", address)
	}
	return u, nil
}
