package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// MoveSource reads one move per line. Tokens are trimmed and upper-cased, so
// "  c7" arrives as "C7"; validation is left to the agent.
//
// Reading from a terminal cannot be interrupted, ctx is only checked before
// prompting.
type MoveSource struct {
	scanner *bufio.Scanner
	prompt  io.Writer
}

func NewMoveSource(r io.Reader, prompt io.Writer) *MoveSource {
	return &MoveSource{
		scanner: bufio.NewScanner(r),
		prompt:  prompt,
	}
}

func (s *MoveSource) NextMove(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fmt.Fprint(s.prompt, "Your turn: ")
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", fmt.Errorf("could not read input: %w", err)
		}
		return "", io.EOF
	}
	return strings.ToUpper(strings.TrimSpace(s.scanner.Text())), nil
}
