package internal

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// LogMode selects where and how diagnostics are written.
type LogMode int

const (
	// LogCLI writes human-readable lines to stderr.
	LogCLI LogMode = iota
	// LogServer writes JSON lines to stdout.
	LogServer
	// LogMCP writes to a file, since stdio carries the protocol.
	LogMCP
)

// NewLogger builds the logger for a run mode. The returned closer releases
// any file the logger writes to.
func NewLogger(config *Config, mode LogMode) (*logrus.Logger, func() error) {
	log := logrus.New()
	closer := func() error { return nil }

	switch {
	case config.Verbose:
		log.SetLevel(logrus.DebugLevel)
	case config.Quiet:
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.WarnLevel)
	}

	switch mode {
	case LogServer:
		log.SetFormatter(&logrus.JSONFormatter{})
		log.SetOutput(os.Stdout)
		if !config.Verbose {
			log.SetLevel(logrus.InfoLevel)
		}
	case LogMCP:
		log.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
		log.SetOutput(io.Discard)
		if !config.MCPLogEnabled {
			break
		}
		if err := EnsureDirs(config.CacheDir); err != nil {
			break
		}
		logFile, err := os.OpenFile(filepath.Join(config.CacheDir, "mcp.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			break
		}
		log.SetOutput(logFile)
		log.SetLevel(logrus.DebugLevel)
		closer = logFile.Close
	default:
		log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
		log.SetOutput(os.Stderr)
	}

	return log, closer
}
