package core

// Logger is the application wide logger.
// args may hold an error and Fields, which are forwarded to the error tracker.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Fields holds structured context for a log entry.
type Fields map[string]interface{}
