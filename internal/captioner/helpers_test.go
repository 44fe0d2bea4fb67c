package captioner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/timmy/llavacap/internal/config"
)

// pngBytes is a minimal payload; adapters only forward bytes, they never decode.
var pngBytes = []byte("\x89PNG\r\n\x1a\nfake-image-bytes")

func testConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	cfg, err := config.Load(&config.LoadOptions{LookupEnv: func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}})
	require.NoError(t, err)
	return cfg
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "img.png")
	require.NoError(t, os.WriteFile(path, pngBytes, 0o644))
	return path
}

// stubCaptioner records calls and returns a fixed result.
type stubCaptioner struct {
	name    string
	result  string
	err     error
	prompts []string
}

func (s *stubCaptioner) Name() string { return s.name }

func (s *stubCaptioner) Caption(_ context.Context, prompt, _ string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.result, s.err
}
