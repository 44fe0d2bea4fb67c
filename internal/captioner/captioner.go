// Package captioner provides the image captioning backends behind a single
// Captioner interface, plus the registry that selects one from configuration.
package captioner

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Captioner turns an image plus a prompt into caption text.
type Captioner interface {
	// Name returns a short backend identifier for logs.
	Name() string

	// Caption generates a caption for the image at imagePath.
	// Implementations must not modify or delete imagePath.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - prompt: guidance text; some backends ignore it.
	//   - imagePath: local image file.
	// Returns:
	//   - string: caption text.
	//   - error: *AdapterError describing the failure.
	Caption(ctx context.Context, prompt, imagePath string) (string, error)
}

// Kind classifies adapter failures.
type Kind string

const (
	KindConnection        Kind = "connection"
	KindMalformedResponse Kind = "malformed response"
	KindUnsupportedInput  Kind = "unsupported input"
	KindBackend           Kind = "backend error"
)

// AdapterError is returned by Captioner.Caption.
type AdapterError struct {
	Backend string
	Kind    Kind
	Err     error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Backend, e.Kind, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

func newError(backend string, kind Kind, err error) *AdapterError {
	return &AdapterError{Backend: backend, Kind: kind, Err: err}
}

func newErrorf(backend string, kind Kind, format string, args ...interface{}) *AdapterError {
	return newError(backend, kind, fmt.Errorf(format, args...))
}

// isKind reports whether err wraps an AdapterError of the given kind.
func isKind(err error, kind Kind) bool {
	var ae *AdapterError
	return errors.As(err, &ae) && ae.Kind == kind
}

// NormalizeText collapses every whitespace run, newlines included, into a
// single space and trims both ends. It is idempotent.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// ImageDataURI reads an image file and encodes it as a base64 data URI.
func ImageDataURI(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	return EncodeDataURI(data, mimeType(path)), nil
}

// EncodeDataURI formats raw bytes as a data URI of the given MIME type.
func EncodeDataURI(data []byte, mime string) string {
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
}

func mimeType(path string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

// readImage loads imagePath, classifying failures as unsupported input.
func readImage(backend, imagePath string) ([]byte, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, newError(backend, KindUnsupportedInput, err)
	}
	if len(data) == 0 {
		return nil, newErrorf(backend, KindUnsupportedInput, "empty image file %s", imagePath)
	}
	return data, nil
}
