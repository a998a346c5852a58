package device

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Compiler turns pattern source into device bytecode.
type Compiler interface {
	Compile(ctx context.Context, source string) ([]byte, error)
}

// CompilerFunc adapts a function to the Compiler interface.
type CompilerFunc func(ctx context.Context, source string) ([]byte, error)

// Compile calls f.
func (f CompilerFunc) Compile(ctx context.Context, source string) ([]byte, error) {
	return f(ctx, source)
}

// ExecCompiler runs an external program that reads source on stdin and
// writes bytecode to stdout.
type ExecCompiler struct {
	Path string
	Args []string
}

// Compile runs the program, killing it when ctx ends.
func (c ExecCompiler) Compile(ctx context.Context, source string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Stdin = strings.NewReader(source)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("%w: %s", ErrCompileFailed, msg)
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%w: compiler produced no output", ErrCompileFailed)
	}
	return stdout.Bytes(), nil
}
