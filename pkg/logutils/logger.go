package logutils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// New returns a new logger that writes JSON to the specified file.
// If file is empty, logs are written to stdout.
//
// The level parameter can be one of: debug, info, warn, error, fatal.
func New(level string, file string) (zerolog.Logger, func(), error) {
	return NewWithMirror(level, file, nil)
}

// NewWithMirror is New with a second, human-readable console sink. A nil
// mirror disables it. The run command mirrors to stderr when no dashboard
// owns the terminal.
func NewWithMirror(level string, file string, mirror io.Writer) (zerolog.Logger, func(), error) {
	return NewWithMirrorLevel(level, file, mirror, zerolog.TraceLevel)
}

// NewWithMirrorLevel is NewWithMirror where the mirror only receives events
// at mirrorLevel or above. The file still receives everything at level.
func NewWithMirrorLevel(level string, file string, mirror io.Writer, mirrorLevel zerolog.Level) (zerolog.Logger, func(), error) {
	closer := func() {}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, closer, err
	}

	// File Setup
	var writer io.Writer = os.Stdout
	if file != "" {
		logsDir := filepath.Dir(file)
		if err := os.MkdirAll(logsDir, 0o755); err != nil {
			return zerolog.Logger{}, closer, fmt.Errorf("create logs dir: %w", err)
		}

		osFile, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Logger{}, closer, err
		}
		closer = func() { _ = osFile.Close() }
		writer = osFile
	}

	if mirror != nil {
		console := zerolog.ConsoleWriter{
			Out:        mirror,
			TimeFormat: time.TimeOnly,
		}
		writer = zerolog.MultiLevelWriter(writer, &zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: console},
			Level:  mirrorLevel,
		})
	}

	l := zerolog.New(writer).
		With().
		Timestamp().
		Logger().
		Level(lvl)

	return l, closer, nil
}
