package logging

import (
	"os"
	"testing"
)

type captureLogger struct {
	noopLogger
	fatals []string
}

func (c *captureLogger) Fatalw(msg string, keysAndValues ...interface{}) {
	c.fatals = append(c.fatals, msg)
}

func TestFatalExitwLogsAndExits(t *testing.T) {
	cl := &captureLogger{}
	SetLogger(cl)
	defer SetLogger(nil)

	code := -1
	exit = func(c int) { code = c }
	defer func() { exit = os.Exit }()

	FatalExitw("startup failed", "err", "boom")

	if len(cl.fatals) != 1 || cl.fatals[0] != "startup failed" {
		t.Fatalf("fatals = %v, want one startup failed entry", cl.fatals)
	}
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}

func TestSetLoggerNilRestoresDefault(t *testing.T) {
	cl := &captureLogger{}
	SetLogger(cl)
	SetLogger(nil)
	// Must not reach the capture logger once reset.
	GetLogger().Fatalw("ignored")
	if len(cl.fatals) != 0 {
		t.Fatalf("reset logger still received %v", cl.fatals)
	}
}
