package rules

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"
)

// ValidationError carries the rendered document and the checker output so a
// failure can be attributed to the specific rule being saved.
type ValidationError struct {
	Rendered string
	Output   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("rule validation failed: %s", e.Output)
}

// Checker validates rendered rule documents with an external promtool binary.
type Checker struct {
	Promtool string
	Timeout  time.Duration
}

func NewChecker(promtool string, timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Checker{Promtool: promtool, Timeout: timeout}
}

// Verify logs a startup warning when the configured promtool binary cannot be
// found. A missing checker is a configuration problem, not a silent no-op.
func (c *Checker) Verify() {
	if _, err := exec.LookPath(c.Promtool); err != nil {
		log.Warn().Str("promtool", c.Promtool).Err(err).
			Msg("promtool not found; rule validation will fail until it is installed")
	}
}

// Check writes the rendered document to a temp file and runs
// `promtool check rules` against it with a bounded timeout. Any non-zero
// exit surfaces the rendered text plus promtool's output.
func (c *Checker) Check(ctx context.Context, rendered []byte) error {
	fp, err := os.CreateTemp("", "promfleet-rules-*.yml")
	if err != nil {
		return fmt.Errorf("create temp rule file: %w", err)
	}
	defer os.Remove(fp.Name())

	if _, err := fp.Write(rendered); err != nil {
		fp.Close()
		return fmt.Errorf("write temp rule file: %w", err)
	}
	if err := fp.Close(); err != nil {
		return fmt.Errorf("close temp rule file: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.Promtool, "check", "rules", fp.Name())
	out, err := cmd.CombinedOutput()
	if err != nil {
		// Only a non-zero exit is a verdict on the rule. A missing binary
		// or a timeout is an operational failure and must not be reported
		// as a syntax error in the document.
		if ctx.Err() != nil {
			return fmt.Errorf("run %s: %w", c.Promtool, ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ValidationError{Rendered: string(rendered), Output: string(out)}
		}
		return fmt.Errorf("run %s: %w", c.Promtool, err)
	}
	return nil
}
