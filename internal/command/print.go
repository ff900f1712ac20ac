package command

import (
	"context"
	"flag"
	"io"

	"github.com/joeycumines/btrun/internal/config"
)

// PrintCommand builds a tree and prints its structure without ticking it.
type PrintCommand struct {
	*BaseCommand
	config *config.Config
	treeID string
}

// NewPrintCommand creates a new print command.
func NewPrintCommand(cfg *config.Config) *PrintCommand {
	return &PrintCommand{
		BaseCommand: NewBaseCommand(
			"print",
			"Print the structure of a behavior tree",
			"print [options] [file]",
		),
		config: cfg,
	}
}

// SetupFlags configures the flags for the print command.
func (c *PrintCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.treeID, "tree", "", "Tree ID to print instead of the main tree")
}

// Execute prints the embedded tutorial tree, or the tree file in args.
func (c *PrintCommand) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	path, err := singlePath(args)
	if err != nil {
		return err
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

	f, err := newFactory(s, logger.Logger, io.Discard)
	if err != nil {
		return err
	}
	tree, err := loadTree(f, path, c.treeID, nil)
	if err != nil {
		return err
	}
	return tree.Print(stdout)
}
