package command

import (
	"context"
	"fmt"
	"io"

	"github.com/joeycumines/btrun/internal/config"
)

// ValidateCommand builds tree definition files without ticking them.
type ValidateCommand struct {
	*BaseCommand
	config *config.Config
}

// NewValidateCommand creates a new validate command.
func NewValidateCommand(cfg *config.Config) *ValidateCommand {
	return &ValidateCommand{
		BaseCommand: NewBaseCommand(
			"validate",
			"Check that tree definition files build",
			"validate <file>...",
		),
		config: cfg,
	}
}

// Execute builds each file with a fresh factory and reports the result per
// file. It fails if any file does not build.
func (c *ValidateCommand) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("validate: no files given")
	}
	s, err := config.DefaultSchema().ResolveSettings(c.config, c.Name())
	if err != nil {
		return err
	}
	logger, err := resolveLogger("", "", s, stderr)
	if err != nil {
		return err
	}
	defer logger.Close()

	var failed int
	for _, path := range args {
		f, err := newFactory(s, logger.Logger, io.Discard)
		if err != nil {
			return err
		}
		tree, err := f.CreateTreeFromFile(path, nil)
		if err != nil {
			failed++
			_, _ = fmt.Fprintf(stdout, "%s: %v\n", path, err)
			continue
		}
		_, _ = fmt.Fprintf(stdout, "%s: OK (tree %s, %d nodes)\n", path, tree.ID(), len(tree.Nodes()))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d definitions are invalid", failed, len(args))
	}
	return nil
}
