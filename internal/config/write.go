package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// SetKeyInFile sets key to value in the config file at path, creating the
// file when needed. section is "" for a global option, or the command name
// of a [section] block. An existing line for the key in that section is
// replaced in place; otherwise the line is added after the last entry of the
// section, and a missing section is appended. Comments and the other
// sections are left untouched.
func SetKeyInFile(path, section, key, value string) error {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config file: %w", err)
	}

	var lines []string
	if text := strings.TrimSuffix(string(data), "\n"); text != "" {
		lines = strings.Split(text, "\n")
	}
	entry := key
	if value != "" {
		entry += " " + value
	}

	var (
		current string
		seen    = section == ""
		end     int
		found   bool
	)
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if name, ok := sectionName(trimmed); ok {
			current = name
			if current == section {
				seen, end = true, i+1
			}
			continue
		}
		if current != section || trimmed == "" {
			continue
		}
		end = i + 1
		if name, _, _ := strings.Cut(trimmed, " "); name == key && !strings.HasPrefix(trimmed, "#") {
			lines[i] = entry
			found = true
			break
		}
	}

	switch {
	case found:
	case seen:
		lines = slices.Insert(lines, end, entry)
	default:
		if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) != "" {
			lines = append(lines, "")
		}
		lines = append(lines, "["+section+"]", entry)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return atomicWriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644)
}

// sectionName parses a "[name]" header line.
func sectionName(line string) (string, bool) {
	if !strings.HasPrefix(line, "[") || !strings.HasSuffix(line, "]") {
		return "", false
	}
	return strings.TrimSpace(line[1 : len(line)-1]), true
}

// atomicWriteFile writes data to a temporary file in the same directory and
// renames it over filename, so readers never observe a partial config.
func atomicWriteFile(filename string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(filename)
	tempFile, err := os.CreateTemp(dir, ".tmp-config-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	var success bool
	defer func() {
		if !success {
			if err := os.Remove(tempFile.Name()); err != nil && !os.IsNotExist(err) {
				slog.Warn("failed to remove temporary file", "path", tempFile.Name(), "error", err)
			}
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file %q: %w", tempFile.Name(), err)
	}
	if err := os.Chmod(tempFile.Name(), perm); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tempFile.Name(), filename); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filename, err)
	}
	success = true
	return nil
}
