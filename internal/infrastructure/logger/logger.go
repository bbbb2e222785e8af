package logger

import (
	"io"
	"log"
	"os"
)

var (
	Info  *log.Logger
	Error *log.Logger
	Debug *log.Logger
	Warn  *log.Logger
)

func init() {
	logFlags := log.Ldate | log.Ltime | log.LUTC | log.Lshortfile

	Info = log.New(os.Stdout, "INFO: ", logFlags)
	Error = log.New(os.Stdout, "ERROR: ", logFlags)
	Warn = log.New(os.Stdout, "WARN: ", logFlags)

	// Debug output is opt-in; the scheduler logs on every slot check
	// and would drown everything else.
	debugOut := io.Discard
	if os.Getenv("DEBUG") != "" {
		debugOut = os.Stdout
	}
	Debug = log.New(debugOut, "DEBUG: ", logFlags)
}
