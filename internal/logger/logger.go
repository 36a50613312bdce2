package logger

import (
	"io"
	stdlog "log"
	"os"

	"github.com/op/go-logging"
)

const module = "picdrop"

/*
New returns a leveled logger writing human-readable lines to w. Messages
are expected in key=value form, e.g. `rid=%s method=%s status=%d`.
Level is one of CRITICAL, ERROR, WARNING, NOTICE, INFO, DEBUG
(case-insensitive).
*/
func New(w io.Writer, level string) (*logging.Logger, error) {
	lvl, err := logging.LogLevel(level)
	if err != nil {
		return nil, err
	}
	log := logging.MustGetLogger(module)
	format := logging.MustStringFormatter("%{time:2006-01-02T15:04:05.000Z07:00} [%{level}] %{message}")
	backend := logging.NewBackendFormatter(logging.NewLogBackend(w, "", 0), format)
	leveled := logging.AddModuleLevel(backend)
	leveled.SetLevel(lvl, module)
	log.SetBackend(leveled)
	return log, nil
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *logging.Logger {
	log, _ := New(io.Discard, "CRITICAL")
	return log
}

// Std returns a standard library logger that forwards to log at ERROR level,
// for http.Server.ErrorLog.
func Std(log *logging.Logger) *stdlog.Logger {
	return stdlog.New(errorWriter{log}, "", 0)
}

type errorWriter struct{ log *logging.Logger }

func (e errorWriter) Write(p []byte) (int, error) {
	msg := string(p)
	if n := len(msg); n > 0 && msg[n-1] == '\n' {
		msg = msg[:n-1]
	}
	e.log.Errorf("service=http msg=%q", msg)
	return len(p), nil
}

// Stderr is the default destination for service logs.
var Stderr io.Writer = os.Stderr
