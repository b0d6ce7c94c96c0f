// Package shell implements the interactive ad-blocking shell: a line
// oriented REPL over a platform instance, with commands for managing
// filters and querying the filter engine.
package shell

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"

	"go.uber.org/zap"

	"github.com/joeycumines/goja-adblock/internal/argv"
	"github.com/joeycumines/goja-adblock/platform"
)

// ErrExit is returned by a command to end the session cleanly.
var ErrExit = errors.New("shell: exit")

// Command is a single shell command.
type Command interface {
	// Name returns the command name.
	Name() string

	// Description returns a short description of the command.
	Description() string

	// Usage returns the usage string for the command.
	Usage() string

	// Execute runs the command. args excludes the command name.
	Execute(sh *Shell, args []string) error
}

// base provides the descriptive half of a Command for embedding.
type base struct {
	name        string
	description string
	usage       string
}

func (c base) Name() string        { return c.name }
func (c base) Description() string { return c.description }
func (c base) Usage() string       { return c.usage }

// Shell reads commands from in and executes them against a platform.
type Shell struct {
	platform *platform.Platform
	in       *bufio.Scanner
	out      io.Writer
	errOut   io.Writer
	log      *zap.Logger
	prompt   string
	commands map[string]Command
}

// New creates a Shell with the builtin command set registered.
func New(p *platform.Platform, in io.Reader, out, errOut io.Writer, log *zap.Logger) *Shell {
	if log == nil {
		log = zap.NewNop()
	}
	sh := &Shell{
		platform: p,
		in:       bufio.NewScanner(in),
		out:      out,
		errOut:   errOut,
		log:      log,
		prompt:   "abp> ",
		commands: make(map[string]Command),
	}
	for _, cmd := range builtinCommands() {
		sh.Register(cmd)
	}
	return sh
}

// Register adds or replaces a command.
func (sh *Shell) Register(cmd Command) {
	sh.commands[cmd.Name()] = cmd
}

// Platform returns the platform commands operate on.
func (sh *Shell) Platform() *platform.Platform {
	return sh.platform
}

// Printf writes formatted output to the session's stdout.
func (sh *Shell) Printf(format string, args ...any) {
	fmt.Fprintf(sh.out, format, args...)
}

// Errorf writes formatted output to the session's stderr.
func (sh *Shell) Errorf(format string, args ...any) {
	fmt.Fprintf(sh.errOut, format, args...)
}

// Run reads and executes commands until input is exhausted or a
// command returns ErrExit. Command failures are reported to the
// session, not returned.
func (sh *Shell) Run() error {
	for {
		fmt.Fprint(sh.out, sh.prompt)
		if !sh.in.Scan() {
			fmt.Fprintln(sh.out)
			return sh.in.Err()
		}
		line := sh.in.Text()

		args := argv.Parse(line)
		if len(args) == 0 {
			continue
		}

		if err := sh.Dispatch(args); err != nil {
			if errors.Is(err, ErrExit) {
				return nil
			}
			sh.Errorf("error: %v\n", err)
			sh.log.Debug("command failed", zap.String("command", args[0]), zap.Error(err))
		}
	}
}

// Dispatch executes a single parsed command line.
func (sh *Shell) Dispatch(args []string) error {
	cmd, ok := sh.commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q, try \"help\"", args[0])
	}
	return cmd.Execute(sh, args[1:])
}

// commandNames returns the registered command names, sorted.
func (sh *Shell) commandNames() []string {
	names := make([]string, 0, len(sh.commands))
	for name := range sh.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
