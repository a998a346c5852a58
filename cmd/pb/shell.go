package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/pixelblaze-tools/pb-go/pkg/report"
)

const shellHelp = `Commands are the same as on the command line, without "pb":
  brightness 0.5
  pattern 'rainbow melt' -exact
  ws '{"getConfig": true}'

Quote arguments containing spaces. Other commands:
  help     Show this help
  exit     Leave the shell
`

// shell runs one invocation per input line until EOF, "exit" or ctx ends.
// Each line builds its own session config from the global options.
func (a *app) shell(ctx context.Context) int {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "pb> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		HistoryFile:     filepath.Join(a.opts.StateDir, "history"),
	})
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: failed to create readline: %v\n", err)
		return report.ExitFailure
	}
	defer rl.Close()

	a.runShell(ctx, rl.Readline, rl.Stdout(), rl.Stderr())
	return report.ExitSuccess
}

// runShell is the command loop, separated from the terminal for tests.
func (a *app) runShell(ctx context.Context, readLine func() (string, error), stdout, stderr io.Writer) {
	rep := report.New(stdout, stderr)
	line := *a
	// stdin belongs to the prompt; render takes code as arguments.
	line.stdin = strings.NewReader("")
	line.stderr = stderr

	for ctx.Err() == nil {
		input, err := readLine()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			return
		}

		args, err := splitArgs(input)
		if err != nil {
			rep.Fail(err)
			continue
		}
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "exit", "quit":
			return
		case "help", "?":
			fmt.Fprint(stdout, shellHelp)
		case "shell":
			rep.Fail(fmt.Errorf("already in the shell"))
		default:
			line.invoke(ctx, rep, args[0], args[1:])
		}
	}
}

// splitArgs splits a line into words, honoring single and double quotes.
// A backslash escapes the next character outside single quotes.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inWord = true
		case r == ' ' || r == '\t':
			if inWord {
				args = append(args, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if escaped {
		return nil, fmt.Errorf("trailing backslash")
	}
	if inWord {
		args = append(args, cur.String())
	}
	return args, nil
}
