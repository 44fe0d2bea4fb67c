package logger

import (
	"context"
	"time"
)

// Step times one unit of work (a backend call, a file) and logs how it ended.
//
//	step := logger.Begin(ctx, "caption")
//	caption, err := c.Caption(ctx, prompt, path)
//	step.End(err)
type Step struct {
	ctx    context.Context
	name   string
	start  time.Time
	fields Fields
}

// Begin starts timing a step.
func Begin(ctx context.Context, name string) *Step {
	return &Step{ctx: ctx, name: name, start: time.Now(), fields: Fields{}}
}

// Set attaches an extra field to the final log line.
func (s *Step) Set(key string, value interface{}) *Step {
	s.fields[key] = value
	return s
}

// Elapsed returns the time since Begin.
func (s *Step) Elapsed() time.Duration {
	return time.Since(s.start)
}

// End logs the step at debug level on success and at error level otherwise.
func (s *Step) End(err error) {
	l := FromContext(s.ctx).WithFields(s.fields).WithFields(Fields{
		FieldStep:       s.name,
		FieldDurationMs: s.Elapsed().Milliseconds(),
	})
	if err != nil {
		l.WithError(err).WithField(FieldOutcome, "failed").Errorf("%s failed", s.name)
		return
	}
	l.WithField(FieldOutcome, "ok").Debugf("%s finished", s.name)
}
