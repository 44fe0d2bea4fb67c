package captioner

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/llavacap/internal/logger"
)

func TestVisionCaptioner_Caption(t *testing.T) {
	var gotPath, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"generated_text":"a red  bicycle\nleaning on a wall"}]`))
	}))
	defer srv.Close()

	cfg := testConfig(t, map[string]string{
		"HF_TOKEN":        "hf_test",
		"VISION_BASE_URL": srv.URL + "/models",
		"VISION_MODEL":    "Salesforce/blip-image-captioning-large",
	})
	c, err := NewVisionCaptioner(context.Background(), cfg, logger.GetDefault())
	require.NoError(t, err)
	assert.Equal(t, "vision", c.Name())

	caption, err := c.Caption(context.Background(), "this prompt is ignored", writeImage(t))
	require.NoError(t, err)

	assert.Equal(t, "a red bicycle leaning on a wall", caption)
	assert.Equal(t, "/models/Salesforce/blip-image-captioning-large", gotPath)
	assert.Equal(t, "image/png", gotType)
	assert.Equal(t, pngBytes, gotBody)
}

func TestVisionCaptioner_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   Kind
	}{
		{"loading", http.StatusServiceUnavailable, `{"error":"Model is currently loading"}`, KindBackend},
		{"empty list", http.StatusOK, `[]`, KindMalformedResponse},
		{"blank text", http.StatusOK, `[{"generated_text":""}]`, KindMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			cfg := testConfig(t, map[string]string{"HF_TOKEN": "t", "VISION_BASE_URL": srv.URL})
			c, err := NewVisionCaptioner(context.Background(), cfg, logger.GetDefault())
			require.NoError(t, err)

			_, err = c.Caption(context.Background(), "", writeImage(t))
			assert.True(t, isKind(err, tt.kind), "got %v", err)
		})
	}
}

func TestNewVisionCaptioner_RequiresToken(t *testing.T) {
	_, err := NewVisionCaptioner(context.Background(), testConfig(t, nil), logger.GetDefault())
	assert.Error(t, err)
}

func TestModelPath(t *testing.T) {
	assert.Equal(t, "org/model", modelPath("/org/model/"))
	assert.Equal(t, "org/model%20v2", modelPath("org/model v2"))
}
