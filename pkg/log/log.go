package log

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	// LogFormatText is the text log format.
	LogFormatText = "text"
	// LogFormatJSON is the json log format.
	LogFormatJSON = "json"

	verbosityFlag = "verbosity"
	formatFlag    = "log-format"
	outputFlag    = "log-output"
)

type logCtxKey struct{}

// Config holds the logging configuration.
type Config struct {
	// Verbosity is the log verbosity. 0 is info, anything above is debug.
	Verbosity int
	// Format is the log format, text or json.
	Format string
	// Output is where log lines are written. Defaults to stderr.
	Output string
}

// AddFlagsToCommand adds the logging flags to the supplied command.
func AddFlagsToCommand(cmd *cobra.Command, config *Config) {
	cmd.PersistentFlags().IntVarP(&config.Verbosity,
		verbosityFlag,
		"v",
		0,
		"Log verbosity. 0 is info and above, >0 enables debug logging.")

	cmd.PersistentFlags().StringVar(&config.Format,
		formatFlag,
		LogFormatText,
		"The format of the log output. Can be text or json.")

	cmd.PersistentFlags().StringVar(&config.Output,
		outputFlag,
		"stderr",
		"Where log lines are written. Can be stderr, stdout or a file path.")
}

// Configure applies the supplied configuration to the standard logger.
func Configure(config *Config) error {
	if config.Verbosity > 0 {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}

	switch strings.ToLower(config.Format) {
	case LogFormatText:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case LogFormatJSON:
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return invalidLogFormatError{format: config.Format}
	}

	switch config.Output {
	case "":
		return ErrLogOutputRequired
	case "stderr":
		logrus.SetOutput(os.Stderr)
	case "stdout":
		logrus.SetOutput(os.Stdout)
	default:
		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log output file %s: %w", config.Output, err)
		}
		logrus.SetOutput(file)
	}

	return nil
}

// GetLogger returns the logger from the context, or the standard logger
// when the context carries none.
func GetLogger(ctx context.Context) *logrus.Entry {
	if logger, ok := ctx.Value(logCtxKey{}).(*logrus.Entry); ok {
		return logger
	}

	return logrus.NewEntry(logrus.StandardLogger())
}

// WithLogger stores the supplied logger in the context.
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, logCtxKey{}, logger)
}
