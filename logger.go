package relay

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Logger is the minimal structured logging interface the connector emits
// debug output through. Key-value pairs follow the message, alternating keys
// and values.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// SimpleLogger writes levelled key-value lines to stderr via the standard
// library logger. Intended for development; production consumers should adapt
// their own logger to the Logger interface.
type SimpleLogger struct {
	logger *log.Logger
}

// NewSimpleLogger creates a console logger.
func NewSimpleLogger() *SimpleLogger {
	return &SimpleLogger{
		logger: log.New(os.Stderr, "relay ", log.LstdFlags|log.Lmsgprefix),
	}
}

func (l *SimpleLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.print("DEBUG", msg, keysAndValues)
}

func (l *SimpleLogger) Info(msg string, keysAndValues ...interface{}) {
	l.print("INFO", msg, keysAndValues)
}

func (l *SimpleLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.print("WARN", msg, keysAndValues)
}

func (l *SimpleLogger) Error(msg string, keysAndValues ...interface{}) {
	l.print("ERROR", msg, keysAndValues)
}

func (l *SimpleLogger) print(level, msg string, keysAndValues []interface{}) {
	var b strings.Builder
	b.WriteString(level)
	b.WriteByte(' ')
	b.WriteString(msg)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(&b, " %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	if len(keysAndValues)%2 == 1 {
		fmt.Fprintf(&b, " %v", keysAndValues[len(keysAndValues)-1])
	}
	l.logger.Print(b.String())
}

// DebugConfig controls which lifecycle events produce debug log lines. All
// flags require Enabled and a Logger on the connector.
type DebugConfig struct {
	Enabled      bool
	LogRequests  bool
	LogRetries   bool
	LogCache     bool
	LogCircuit   bool
	LogRateLimit bool
	RequestIDGen func() string
}

// DefaultDebugConfig enables all event classes with UUID request IDs; the
// master Enabled switch stays off until WithDebug flips it.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		LogRequests:  true,
		LogRetries:   true,
		LogCache:     true,
		LogCircuit:   true,
		LogRateLimit: true,
		RequestIDGen: uuid.NewString,
	}
}
