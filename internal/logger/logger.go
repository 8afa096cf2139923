package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

func init() {
	// Everything goes through Log, keep the package default quiet
	log.SetLevel(log.FatalLevel)
}

var (
	// Log is the global logger instance
	Log *log.Logger

	logFile *os.File
)

// Init creates Log. The log file always receives info and above; verbose
// adds stderr and debug level.
func Init(verbose bool) error {
	logPath := Path()

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		Log = newStderr(verbose)
		return nil
	}

	var err error
	logFile, err = os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		Log = newStderr(verbose)
		return nil
	}

	var output io.Writer = logFile
	if verbose {
		output = io.MultiWriter(logFile, os.Stderr)
	}

	Log = log.NewWithOptions(output, log.Options{
		ReportTimestamp: true,
	})
	if verbose {
		Log.SetLevel(log.DebugLevel)
	} else {
		Log.SetLevel(log.InfoLevel)
	}
	return nil
}

// NewWorker returns the logger of a job worker process. Its stderr is
// forwarded line by line into the parent log, so no timestamps.
func NewWorker(verbose bool) *log.Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{})
	if verbose {
		l.SetLevel(log.DebugLevel)
	}
	return l
}

func newStderr(verbose bool) *log.Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
	if verbose {
		l.SetLevel(log.DebugLevel)
	} else {
		l.SetLevel(log.WarnLevel)
	}
	return l
}

// Close closes the log file
func Close() {
	if logFile != nil {
		_ = logFile.Close()
	}
}

// Path returns the path to the log file
func Path() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		homeDir, _ := os.UserHomeDir()
		cacheDir = filepath.Join(homeDir, ".cache")
	}
	return filepath.Join(cacheDir, "craftctl", "craftctl.log")
}
