package console

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cjeanneret/AziGo/internal/debug"
	"github.com/cjeanneret/AziGo/internal/logic/supervisor"
)

// CommandList is printed at startup and after clear.
const CommandList = "Commands: auto | manual | stop | status | quit | help | clear"

const clearScreen = "\033[H\033[2J"

// Handler applies supervisor commands.
type Handler interface {
	Handle(cmd supervisor.Command) (supervisor.Report, error)
}

// Console reads operator commands line by line and forwards them to a Handler.
type Console struct {
	in       io.Reader
	out      io.Writer
	handler  Handler
	helpPath string
}

// New creates a console reading from in and writing to out.
func New(in io.Reader, out io.Writer, h Handler, helpPath string) *Console {
	return &Console{in: in, out: out, handler: h, helpPath: helpPath}
}

// Run processes lines until quit, end of input or ctx cancellation. It
// returns nil in all three cases and the handler error when a command
// fails for any reason other than being unknown.
func (c *Console) Run(ctx context.Context) error {
	fmt.Fprintf(c.out, "\n%s\n\n", CommandList)

	sc := bufio.NewScanner(c.in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		quit, err := c.Exec(sc.Text())
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read console: %w", err)
	}
	debug.Live("Console: end of input")
	return nil
}

// Exec runs one input line and reports whether it ended the session.
func (c *Console) Exec(line string) (bool, error) {
	word := strings.TrimSpace(line)
	switch word {
	case "":
		return false, nil
	case "help":
		fmt.Fprint(c.out, clearScreen)
		c.printHelp()
		fmt.Fprint(c.out, "\n\n")
		return false, nil
	case "clear":
		fmt.Fprintf(c.out, "%s%s\n\n", clearScreen, CommandList)
		return false, nil
	}

	cmd, err := supervisor.ParseCommand(word)
	if err != nil {
		fmt.Fprintf(c.out, "\n[CMD] Unknown command: %s\n", word)
		return false, nil
	}
	report, err := c.handler.Handle(cmd)
	if report.Message != "" {
		fmt.Fprintf(c.out, "\n%s\n", report.Message)
	}
	switch {
	case errors.Is(err, supervisor.ErrUnknownCommand):
		fmt.Fprintf(c.out, "\n[CMD] Unknown command: %s\n", word)
		return false, nil
	case errors.Is(err, supervisor.ErrShutdown):
		return true, nil
	case err != nil:
		return true, err
	}
	return report.Mode == supervisor.Quit, nil
}

// printHelp copies the help file without its final newline.
func (c *Console) printHelp() {
	data, err := os.ReadFile(c.helpPath)
	if err != nil {
		fmt.Fprintf(c.out, "\nError opening file: %v\n", err)
		return
	}
	c.out.Write(bytes.TrimSuffix(data, []byte("\n")))
}
