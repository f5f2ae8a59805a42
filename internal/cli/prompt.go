package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// interactive reports whether stdin is a terminal.
func (a *app) interactive() bool {
	f, ok := a.stdin.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ask reads one line from stdin. The label is printed to stderr only when a
// person is typing; piped input is read silently. End of input yields "".
func (a *app) ask(label string) (string, error) {
	if a.interactive() {
		fmt.Fprint(a.stderr, label)
	}
	if a.in == nil {
		a.in = bufio.NewReader(a.stdin)
	}
	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// valueOrAsk returns flagValue when the flag was given, otherwise prompts.
func (a *app) valueOrAsk(flagValue string, given bool, label string) (string, error) {
	if given {
		return flagValue, nil
	}
	return a.ask(label)
}
