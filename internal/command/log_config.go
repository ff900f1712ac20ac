package command

import (
	"io"

	"github.com/joeycumines/btrun/internal/config"
	"github.com/joeycumines/btrun/internal/logging"
)

// resolveLogger builds the command logger. Flag values take precedence over
// the resolved settings; an empty flag means "use the settings". The caller
// must Close the returned logger.
func resolveLogger(flagPath, flagLevel string, s config.Settings, stderr io.Writer) (*logging.Logger, error) {
	levelStr := flagLevel
	if levelStr == "" {
		levelStr = s.LogLevel
	}
	level, err := logging.ParseLevel(levelStr)
	if err != nil {
		return nil, err
	}

	logPath := flagPath
	if logPath == "" {
		logPath = s.LogFile
	}

	maxSizeMB := s.LogMaxSizeMB
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	// Zero maxFiles is valid (no backups, just truncate on rotate).
	maxFiles := s.LogMaxFiles
	if maxFiles < 0 {
		maxFiles = 5
	}

	return logging.New(logging.Options{
		Level:     level,
		Stderr:    stderr,
		File:      logPath,
		MaxSizeMB: maxSizeMB,
		MaxFiles:  maxFiles,
	})
}
