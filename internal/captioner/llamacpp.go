package captioner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/timmy/llavacap/internal/config"
	"github.com/timmy/llavacap/internal/logger"
)

// allGPULayers is passed to llama.cpp when every layer should be offloaded.
const allGPULayers = 999

// LlamaCppCaptioner runs a llama.cpp multimodal CLI against a local GGUF model
// and its vision projector.
type LlamaCppCaptioner struct {
	binary      string
	model       string
	mmproj      string
	temperature float64
	gpuLayers   int
	run         commandRunner
}

// NewLlamaCppCaptioner resolves the binary and model files up front.
// Parameters:
//   - ctx: unused; present for a uniform constructor signature.
//   - cfg: run configuration (LlamaCpp paths, temperature, gpu layers).
//   - log: receives native stderr when sys-logging is on.
//
// Returns:
//   - *LlamaCppCaptioner: ready captioner.
//   - error: non-nil if the binary or a model file is missing.
func NewLlamaCppCaptioner(_ context.Context, cfg *config.Config, log *logger.Logger) (*LlamaCppCaptioner, error) {
	binary, err := exec.LookPath(cfg.LlamaCpp.Binary)
	if err != nil {
		return nil, fmt.Errorf("llama.cpp binary not found: %w", err)
	}
	for _, f := range []string{cfg.LlamaCpp.Model, cfg.LlamaCpp.MMProj} {
		if _, err := os.Stat(f); err != nil {
			return nil, fmt.Errorf("llama.cpp model file: %w", err)
		}
	}

	return &LlamaCppCaptioner{
		binary:      binary,
		model:       cfg.LlamaCpp.Model,
		mmproj:      cfg.LlamaCpp.MMProj,
		temperature: cfg.Temperature,
		gpuLayers:   cfg.GPULayers,
		run:         execRunner(log, cfg.SysLogging),
	}, nil
}

// Name returns the backend identifier.
func (c *LlamaCppCaptioner) Name() string {
	return "llama.cpp"
}

// Caption runs one inference and returns the cleaned stdout.
func (c *LlamaCppCaptioner) Caption(ctx context.Context, prompt, imagePath string) (string, error) {
	if _, err := os.Stat(imagePath); err != nil {
		return "", newError(c.Name(), KindUnsupportedInput, err)
	}

	out, err := c.run(ctx, c.binary, c.args(prompt, imagePath)...)
	if err != nil {
		return "", classifyCommandError(c.Name(), err)
	}

	caption := NormalizeText(stripLlamaPreamble(string(out)))
	if caption == "" {
		return "", newErrorf(c.Name(), KindMalformedResponse, "no text on stdout")
	}
	return caption, nil
}

func (c *LlamaCppCaptioner) args(prompt, imagePath string) []string {
	layers := c.gpuLayers
	if layers < 0 {
		layers = allGPULayers
	}
	return []string{
		"-m", c.model,
		"--mmproj", c.mmproj,
		"--image", imagePath,
		"-p", prompt,
		"--temp", strconv.FormatFloat(c.temperature, 'f', -1, 64),
		"-ngl", strconv.Itoa(layers),
		"-n", "300",
	}
}

// stripLlamaPreamble drops the image-encoding banner older llava builds print
// to stdout before the generated text.
func stripLlamaPreamble(out string) string {
	const anchor = "per image patch)"
	if i := strings.LastIndex(out, anchor); i != -1 {
		out = out[i+len(anchor):]
	}
	return out
}
