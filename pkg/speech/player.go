package speech

import (
	"context"
	"fmt"
	"io"
	"os/exec"
)

// Player plays encoded audio until r is exhausted or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, r io.Reader, format string) error
}

// DiscardPlayer drains audio without playing it.
type DiscardPlayer struct{}

func (DiscardPlayer) Play(ctx context.Context, r io.Reader, _ string) error {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return err
	}
	return ctx.Err()
}

// CommandPlayer pipes audio into an external player, for example
// `ffplay -nodisp -autoexit -loglevel quiet -` or `mpg123 -q -`.
type CommandPlayer struct {
	Command string
	Args    []string
}

func (p CommandPlayer) Play(ctx context.Context, r io.Reader, format string) error {
	cmd := exec.CommandContext(ctx, p.Command, p.Args...)
	cmd.Stdin = r
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("play %s audio with %s: %w", format, p.Command, err)
	}
	return nil
}
