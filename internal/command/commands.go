package command

import "github.com/joeycumines/btrun/internal/config"

// NewDefaultRegistry returns a registry holding every btrun command, with
// run as the fallback for arguments that do not name a command.
func NewDefaultRegistry(cfg *config.Config, configPath, version string) *Registry {
	r := NewRegistry()
	r.Register(NewHelpCommand(r))
	r.Register(NewVersionCommand(version))
	r.Register(NewConfigCommand(cfg, configPath))
	r.Register(NewInitCommand())
	r.Register(NewRunCommand(cfg))
	r.Register(NewPrintCommand(cfg))
	r.Register(NewNodesCommand(cfg))
	r.Register(NewValidateCommand(cfg))
	r.SetFallback("run")
	return r
}
