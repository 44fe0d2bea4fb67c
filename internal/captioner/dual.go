package captioner

import (
	"context"
	"fmt"

	"github.com/timmy/llavacap/internal/prompts"
)

// DualCaptioner sequences two captioners: the first produces an initial
// caption and, when refinement is on, the second rewrites it using the
// original prompt and the image. Callers see a single Captioner.
type DualCaptioner struct {
	first  Captioner
	second Captioner
	refine bool
}

// NewDualCaptioner composes two captioners.
// Parameters:
//   - first: produces the initial caption.
//   - second: refines it; may be nil when refine is false.
//   - refine: enables the second stage (secondary captioning).
//
// Returns:
//   - *DualCaptioner: composed captioner.
func NewDualCaptioner(first, second Captioner, refine bool) *DualCaptioner {
	return &DualCaptioner{first: first, second: second, refine: refine && second != nil}
}

// Name returns the backend identifier including both stages.
func (c *DualCaptioner) Name() string {
	if c.second == nil {
		return fmt.Sprintf("dual(%s)", c.first.Name())
	}
	return fmt.Sprintf("dual(%s+%s)", c.first.Name(), c.second.Name())
}

// Caption returns the result of the last stage that ran.
func (c *DualCaptioner) Caption(ctx context.Context, prompt, imagePath string) (string, error) {
	initial, err := c.first.Caption(ctx, prompt, imagePath)
	if err != nil {
		return "", err
	}
	if !c.refine {
		return initial, nil
	}

	refined, err := c.second.Caption(ctx, RefinePrompt(prompt, initial), imagePath)
	if err != nil {
		return "", err
	}
	return refined, nil
}

// RefinePrompt builds the second-stage prompt from the user's prompt and the first caption.
func RefinePrompt(prompt, initial string) string {
	if prompt == "" {
		prompt = "(none)"
	}
	return fmt.Sprintf(prompts.RefineTemplate, prompt, initial)
}
