package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"funcreg/internal/config"
)

const (
	logLevelEnvKey  = "FUNCREG_LOG_LEVEL"
	logFormatEnvKey = "FUNCREG_LOG_FORMAT"
)

// levelChoice records which layer supplied the log level.
type levelChoice struct {
	raw    string
	source string
}

// configureLoggerForCLI installs the default slog logger. An invalid flag is
// an error; an invalid env or config value falls back with a warning.
func configureLoggerForCLI(flagLevel, configLevel string) (string, error) {
	choice := chooseLogLevel(flagLevel, os.Getenv(logLevelEnvKey), configLevel)
	format := os.Getenv(logFormatEnvKey)

	level, err := parseLogLevel(choice.raw)
	if err == nil {
		slog.SetDefault(newLogger(os.Stderr, level, format))
		return "", nil
	}

	if choice.source == "flag" {
		return "", fmt.Errorf("invalid --log-level %q", flagLevel)
	}

	slog.SetDefault(newLogger(os.Stderr, slog.LevelDebug, format))
	switch choice.source {
	case "env":
		return fmt.Sprintf("warning: invalid %s=%q; defaulting to %s", logLevelEnvKey, choice.raw, config.DefaultLogLevel), nil
	case "config":
		return fmt.Sprintf("warning: invalid log_level=%q; defaulting to %s", choice.raw, config.DefaultLogLevel), nil
	}
	return "", nil
}

func chooseLogLevel(flagLevel, envLevel, configLevel string) levelChoice {
	candidates := []levelChoice{
		{raw: flagLevel, source: "flag"},
		{raw: envLevel, source: "env"},
		{raw: configLevel, source: "config"},
	}
	for _, candidate := range candidates {
		if strings.TrimSpace(candidate.raw) != "" {
			return candidate
		}
	}
	return levelChoice{source: "default"}
}

func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "":
		return slog.LevelDebug, nil
	case "warning":
		value = "warn"
	}

	if numeric, err := strconv.Atoi(value); err == nil {
		return slog.Level(numeric), nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelDebug, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

// newLogger builds a text logger unless format asks for json.
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
