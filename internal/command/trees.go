package command

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/joeycumines/btrun/internal/behavior"
	"github.com/joeycumines/btrun/internal/config"
	"github.com/joeycumines/btrun/internal/example/tutorial"
)

// newFactory returns a factory with the builtin and tutorial nodes
// registered. Node output goes to out.
func newFactory(s config.Settings, logger *slog.Logger, out io.Writer) (*behavior.Factory, error) {
	opts := []behavior.FactoryOption{behavior.WithLogger(logger)}
	if len(s.SearchPaths) > 0 {
		opts = append(opts, behavior.WithSearchPaths(s.SearchPaths...))
	}
	if s.ScriptCacheSize > 0 {
		opts = append(opts, behavior.WithScriptCacheSize(s.ScriptCacheSize))
	}
	f := behavior.NewFactory(opts...)
	if err := tutorial.Register(f, tutorial.NewGripperInterface(out), out); err != nil {
		return nil, err
	}
	return f, nil
}

// loadTree instantiates a tree from path, or from the embedded tutorial
// definition when path is empty. A non-empty treeID overrides the main tree
// of the definition. When announce is non-nil the source is reported on it
// before loading.
func loadTree(f *behavior.Factory, path, treeID string, announce io.Writer) (*behavior.Tree, error) {
	if announce != nil {
		if path == "" {
			_, _ = fmt.Fprintln(announce, "Creating from text")
		} else {
			_, _ = fmt.Fprintf(announce, "Creating from file: %s\n", path)
		}
	}

	if treeID == "" {
		if path == "" {
			return f.CreateTreeFromText(tutorial.MainTreeXML, nil)
		}
		return f.CreateTreeFromFile(path, nil)
	}

	var err error
	if path == "" {
		err = f.RegisterTreeFromText(tutorial.MainTreeXML)
	} else {
		err = f.RegisterTreeFromFile(path)
	}
	if err != nil {
		return nil, err
	}
	return f.CreateTree(treeID, nil)
}

// singlePath validates that args holds at most one definition path.
func singlePath(args []string) (string, error) {
	switch len(args) {
	case 0:
		return "", nil
	case 1:
		return args[0], nil
	default:
		return "", fmt.Errorf("expected at most one tree file, got %d arguments", len(args))
	}
}
