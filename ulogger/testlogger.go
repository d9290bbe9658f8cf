package ulogger

import "testing"

// TestLogger routes log output through testing.T so messages show up only
// for failing tests.
type TestLogger struct {
	t       testing.TB
	verbose bool
}

func NewTestLogger(t testing.TB, options ...Option) *TestLogger {
	return &TestLogger{t: t}
}

// NewVerboseTestLogger also emits debug lines.
func NewVerboseTestLogger(t testing.TB) *TestLogger {
	return &TestLogger{t: t, verbose: true}
}

func (l *TestLogger) LogLevel() int        { return 0 }
func (l *TestLogger) SetLogLevel(_ string) {}

func (l *TestLogger) Debugf(format string, args ...interface{}) {
	if l.verbose {
		l.t.Helper()
		l.t.Logf("DEBUG: "+format, args...)
	}
}

func (l *TestLogger) Infof(format string, args ...interface{}) {
	l.t.Helper()
	l.t.Logf("INFO: "+format, args...)
}

func (l *TestLogger) Warnf(format string, args ...interface{}) {
	l.t.Helper()
	l.t.Logf("WARN: "+format, args...)
}

func (l *TestLogger) Errorf(format string, args ...interface{}) {
	l.t.Helper()
	l.t.Logf("ERROR: "+format, args...)
}

func (l *TestLogger) Fatalf(format string, args ...interface{}) {
	l.t.Helper()
	l.t.Fatalf(format, args...)
}

func (l *TestLogger) New(service string, options ...Option) Logger {
	return l
}

func (l *TestLogger) Duplicate(options ...Option) Logger {
	return l
}
