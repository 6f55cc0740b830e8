package logging

import (
	"bytes"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatActions = "actions"
)

type ActionsFormatter struct{}

func textFormatter() log.Formatter {
	return &log.TextFormatter{
		FullTimestamp:          true,
		TimestampFormat:        time.RFC3339Nano,
		DisableLevelTruncation: true,
	}
}

func jsonFormatter() log.Formatter {
	return &log.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
	}
}

// Setup configures the standard logger. Quiet mode only lets errors through.
func Setup(logger *log.Logger, out io.Writer, level, format string, quiet bool) error {
	logger.SetOutput(out)

	switch format {
	case FormatJSON:
		logger.SetFormatter(jsonFormatter())
	case FormatText:
		logger.SetFormatter(textFormatter())
	case FormatActions:
		logger.SetFormatter(&ActionsFormatter{})
	default:
		return fmt.Errorf("log format '%s' is not recognized", format)
	}

	logLevel, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("while setting log level: %s", err)
	}
	if quiet {
		logLevel = log.ErrorLevel
	}
	logger.SetLevel(logLevel)

	return nil
}

func (a *ActionsFormatter) Format(e *log.Entry) ([]byte, error) {
	buf := &bytes.Buffer{}
	switch e.Level {
	case log.ErrorLevel, log.FatalLevel, log.PanicLevel:
		buf.WriteString("::error::")
	case log.WarnLevel:
		buf.WriteString("::warning::")
	default:
		buf.WriteString("[")
		buf.WriteString(e.Time.Format(time.RFC3339Nano))
		buf.WriteString("] ")
	}
	buf.WriteString(e.Message)
	buf.WriteRune('\n')
	return buf.Bytes(), nil
}
