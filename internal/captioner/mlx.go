package captioner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"

	"github.com/timmy/llavacap/internal/config"
	"github.com/timmy/llavacap/internal/logger"
)

// mlxScript drives mlx-vlm in-process so stdout carries only the caption.
const mlxScript = `import sys
from mlx_vlm import load, generate
from mlx_vlm.prompt_utils import apply_chat_template
from mlx_vlm.utils import load_config

model_path, image, prompt, temp = sys.argv[1], sys.argv[2], sys.argv[3], float(sys.argv[4])
model, processor = load(model_path)
formatted = apply_chat_template(processor, load_config(model_path), prompt, num_images=1)
out = generate(model, processor, formatted, [image], temperature=temp, max_tokens=300, verbose=False)
print(getattr(out, "text", out))
`

// MLXCaptioner runs mlx-vlm on Apple silicon.
type MLXCaptioner struct {
	python      string
	model       string
	temperature float64
	run         commandRunner
}

// NewMLXCaptioner checks the platform and the Python runtime before returning.
// Parameters:
//   - ctx: bounds the import probe.
//   - cfg: run configuration (MLX python and model, temperature).
//   - log: receives Python stderr when sys-logging is on.
//
// Returns:
//   - *MLXCaptioner: ready captioner.
//   - error: non-nil off Apple silicon or when mlx_vlm cannot be imported.
func NewMLXCaptioner(ctx context.Context, cfg *config.Config, log *logger.Logger) (*MLXCaptioner, error) {
	if runtime.GOOS != "darwin" || runtime.GOARCH != "arm64" {
		return nil, fmt.Errorf("MLX requires Apple silicon (darwin/arm64), running on %s/%s", runtime.GOOS, runtime.GOARCH)
	}
	python, err := exec.LookPath(cfg.MLX.Python)
	if err != nil {
		return nil, fmt.Errorf("python interpreter not found: %w", err)
	}

	run := execRunner(log, cfg.SysLogging)
	if _, err := run(ctx, python, "-c", "import mlx_vlm"); err != nil {
		return nil, fmt.Errorf("mlx_vlm is not importable: %w", err)
	}

	return &MLXCaptioner{
		python:      python,
		model:       cfg.MLX.Model,
		temperature: cfg.Temperature,
		run:         run,
	}, nil
}

// Name returns the backend identifier.
func (c *MLXCaptioner) Name() string {
	return "mlx"
}

// Caption runs one generation in a Python subprocess.
func (c *MLXCaptioner) Caption(ctx context.Context, prompt, imagePath string) (string, error) {
	if _, err := os.Stat(imagePath); err != nil {
		return "", newError(c.Name(), KindUnsupportedInput, err)
	}

	out, err := c.run(ctx, c.python, "-c", mlxScript,
		c.model, imagePath, prompt, strconv.FormatFloat(c.temperature, 'f', -1, 64))
	if err != nil {
		return "", classifyCommandError(c.Name(), err)
	}

	caption := NormalizeText(string(out))
	if caption == "" {
		return "", newErrorf(c.Name(), KindMalformedResponse, "no text on stdout")
	}
	return caption, nil
}
