package logger

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Verbosity levels as passed by the front end. The core never configures
// logging itself, it only receives the level.
const (
	LevelQuiet = 0
	LevelInfo  = 1
	LevelDebug = 2
)

type Logger struct {
	info        *log.Logger
	warning     *log.Logger
	errorLogger *log.Logger
	verbosity   int
	active      bool
}

var DILogger Logger

// InitializeLogger sets up the package logger. When logfilename is empty
// messages go to stderr, otherwise to a size rotated file.
func InitializeLogger(verbosity int, logfilename string) {
	if verbosity <= LevelQuiet {
		DILogger = Logger{}
		return
	}

	var out io.Writer = os.Stderr
	if logfilename != "" {
		out = &lumberjack.Logger{
			Filename:   logfilename,
			MaxSize:    50, // MB
			MaxBackups: 3,
			MaxAge:     30, // days
		}
	}

	info := log.New(out, "DiskImage|INFO: ", log.Ldate|log.Ltime)
	warning := log.New(out, "DiskImage|WARNING: ", log.Ldate|log.Ltime)
	errorLogger := log.New(out, "DiskImage|ERROR: ", log.Ldate|log.Ltime)
	DILogger = Logger{info: info, warning: warning, errorLogger: errorLogger,
		verbosity: verbosity, active: true}
}

func (logger Logger) Info(msg string) {
	if logger.active {
		logger.info.Println(msg)
	}
}

func (logger Logger) Debug(msg string) {
	if logger.active && logger.verbosity >= LevelDebug {
		logger.info.Println(msg)
	}
}

func (logger Logger) Warning(msg string) {
	if logger.active {
		logger.warning.Println(msg)
	}
}

func (logger Logger) Error(msg any) {
	if logger.active {
		logger.errorLogger.Println(msg)
	}
}
