// Author: Daniel Antonsen (@danielantonsen)
// Distributed Under MIT License

package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/gologger/formatter"
	"github.com/projectdiscovery/gologger/levels"
	"github.com/projectdiscovery/gologger/writer"
)

// Config controls where log lines go
type Config struct {
	File    string // log file path (empty disables file output)
	Verbose int    // 0 = warnings/errors on console, 1 = +info, 2 = +debug
	Silence bool   // nothing but fatal on console
}

var (
	mu      sync.Mutex
	logFile *os.File
)

// teeWriter writes every line to the log file and a filtered subset to the console
type teeWriter struct {
	file    io.Writer
	console writer.Writer
	show    func(levels.Level) bool
}

func (t *teeWriter) Write(data []byte, level levels.Level) {
	if t.file != nil {
		mu.Lock()
		fmt.Fprintf(t.file, "%s - %s - %s\n", time.Now().Format("2006-01-02 15:04:05,000"), levelName(level), data)
		mu.Unlock()
	}
	if t.show(level) {
		t.console.Write(data, level)
	}
}

// Init configures the default logger. Close must be called to release the log file.
func Init(c Config) error {
	var file io.Writer
	if c.File != "" {
		f, err := os.OpenFile(c.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		mu.Lock()
		logFile = f
		mu.Unlock()
		file = f
	}

	gologger.DefaultLogger.SetMaxLevel(levels.LevelDebug)
	gologger.DefaultLogger.SetFormatter(formatter.NewCLI(true))
	gologger.DefaultLogger.SetWriter(&teeWriter{
		file:    file,
		console: writer.NewCLI(),
		show:    consoleFilter(c),
	})
	return nil
}

// Close flushes and closes the log file
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Sync()
		logFile.Close()
		logFile = nil
	}
}

func consoleFilter(c Config) func(levels.Level) bool {
	return func(l levels.Level) bool {
		switch l {
		case levels.LevelFatal, levels.LevelSilent:
			return true
		case levels.LevelError, levels.LevelWarning:
			return !c.Silence
		case levels.LevelInfo:
			return !c.Silence && c.Verbose >= 1
		default:
			return !c.Silence && c.Verbose >= 2
		}
	}
}

func levelName(l levels.Level) string {
	switch l {
	case levels.LevelFatal:
		return "CRITICAL"
	case levels.LevelError:
		return "ERROR"
	case levels.LevelWarning:
		return "WARNING"
	case levels.LevelInfo:
		return "INFO"
	case levels.LevelDebug, levels.LevelVerbose:
		return "DEBUG"
	}
	return "PRINT"
}

func Info(s string) {
	gologger.Info().Msg(s)
}

func Infof(s string, v ...interface{}) {
	gologger.Info().Msgf(s, v...)
}

func Debug(s string) {
	gologger.Debug().Msg(s)
}

func Debugf(s string, v ...interface{}) {
	gologger.Debug().Msgf(s, v...)
}

func Warning(s string) {
	gologger.Warning().Msg(s)
}

func Warningf(s string, v ...interface{}) {
	gologger.Warning().Msgf(s, v...)
}

func Error(s string) {
	gologger.Error().Msg(s)
}

func Errorf(s string, v ...interface{}) {
	gologger.Error().Msgf(s, v...)
}

func Fatal(s string) {
	gologger.Fatal().Msg(s)
}

func Fatalf(s string, v ...interface{}) {
	gologger.Fatal().Msgf(s, v...)
}

// Worker returns a logger that tags every line with the worker name
func Worker(name string) *WorkerLogger {
	return &WorkerLogger{name: name}
}

// WorkerLogger tags log lines with the goroutine's worker name
type WorkerLogger struct {
	name string
}

func (w *WorkerLogger) Name() string { return w.name }

func (w *WorkerLogger) Infof(s string, v ...interface{}) {
	gologger.Info().Str("worker", w.name).Msgf(s, v...)
}

func (w *WorkerLogger) Debugf(s string, v ...interface{}) {
	gologger.Debug().Str("worker", w.name).Msgf(s, v...)
}

func (w *WorkerLogger) Warningf(s string, v ...interface{}) {
	gologger.Warning().Str("worker", w.name).Msgf(s, v...)
}

func (w *WorkerLogger) Errorf(s string, v ...interface{}) {
	gologger.Error().Str("worker", w.name).Msgf(s, v...)
}
