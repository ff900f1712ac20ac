package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
)

// ErrUnknownCommand is returned by Get for names that are not registered.
var ErrUnknownCommand = errors.New("command not found")

// Registry holds the available commands and dispatches to them.
type Registry struct {
	commands map[string]Command
	fallback string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds cmd, replacing any command of the same name.
func (r *Registry) Register(cmd Command) {
	r.commands[cmd.Name()] = cmd
}

// SetFallback names the command that receives argument lists whose first
// element is not a command name.
func (r *Registry) SetFallback(name string) {
	r.fallback = name
}

// Get returns a command by name.
func (r *Registry) Get(name string) (Command, error) {
	if cmd, ok := r.commands[name]; ok {
		return cmd, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
}

// List returns the registered command names, sorted.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch selects the command named by args[0], parses its flags from the
// rest and executes it. When args is empty or args[0] is not a command, the
// whole of args goes to the fallback command.
func (r *Registry) Dispatch(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var cmd Command
	if len(args) > 0 {
		if c, ok := r.commands[args[0]]; ok {
			cmd, args = c, args[1:]
		}
	}
	if cmd == nil {
		if r.fallback == "" {
			if len(args) == 0 {
				return fmt.Errorf("no command given")
			}
			return fmt.Errorf("%w: %s", ErrUnknownCommand, args[0])
		}
		c, err := r.Get(r.fallback)
		if err != nil {
			return err
		}
		cmd = c
	}

	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: btrun %s\n", cmd.Usage())
		_, _ = fmt.Fprintf(stderr, "\n%s\n\n", cmd.Description())
		_, _ = fmt.Fprintln(stderr, "Options:")
		fs.PrintDefaults()
	}
	cmd.SetupFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	return cmd.Execute(ctx, fs.Args(), stdout, stderr)
}
