// Package logging provides categorized file-based logging for testforge.
// Logs are written to <workspace>/.forge/logs/ with a separate file per
// category. When logging is disabled every call is a silent no-op, so hot
// paths can log unconditionally.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup and shutdown
	CategoryIndex   Category = "index"   // Embedding index operations
	CategoryEmbed   Category = "embed"   // Embedding engine calls
	CategoryLLM     Category = "llm"     // Text-generation provider calls
	CategoryLocator Category = "locator" // Markup locator extraction
	CategoryTestGen Category = "testgen" // Test-case generation pipeline
	CategorySynth   Category = "synth"   // Script synthesis and validation
	CategoryIngest  Category = "ingest"  // Chunk-file ingestion and watching
	CategoryBrowser Category = "browser" // Live page snapshot capture
)

// Options controls the logging subsystem. The zero value disables logging.
type Options struct {
	Enabled    bool
	Level      string          // debug, info, warn, error
	Categories map[string]bool // nil enables all categories
}

// Logger wraps a standard logger with category and file output.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	optsMu    sync.RWMutex
	opts      Options
	logLevel  int
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Initialize sets up the logging directory. Call once at startup with the
// workspace path. A disabled Options leaves everything as silent no-ops.
func Initialize(workspace string, o Options) error {
	optsMu.Lock()
	opts = o
	switch o.Level {
	case "debug":
		logLevel = LevelDebug
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}
	optsMu.Unlock()

	if !o.Enabled {
		return nil
	}
	if workspace == "" {
		return fmt.Errorf("workspace path required")
	}

	logsDir = filepath.Join(workspace, ".forge", "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== testforge logging initialized ===")
	boot.Info("Logs directory: %s", logsDir)
	boot.Info("Log level: %s", o.Level)
	return nil
}

// IsEnabled reports whether logging is globally enabled.
func IsEnabled() bool {
	optsMu.RLock()
	defer optsMu.RUnlock()
	return opts.Enabled
}

// IsCategoryEnabled reports whether a specific category is enabled.
func IsCategoryEnabled(category Category) bool {
	optsMu.RLock()
	defer optsMu.RUnlock()
	if !opts.Enabled {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	enabled, ok := opts.Categories[string(category)]
	if !ok {
		return true
	}
	return enabled
}

// Get returns (or creates) the logger for a category. Returns a no-op logger
// when logging or the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) || logsDir == "" {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	// Date prefix keeps rotation a plain file-move.
	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelDebug {
		return
	}
	l.logger.Printf("[DEBUG] "+format, args...)
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelInfo {
		return
	}
	l.logger.Printf("[INFO] "+format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelWarn {
		return
	}
	l.logger.Printf("[WARN] "+format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[ERROR] "+format, args...)
}

// CloseAll closes all open log files. Call at shutdown.
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - quick logging without getting a logger first.
// All are no-ops when the category is disabled.
// =============================================================================

// Boot logs to the boot category.
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// BootError logs an error to the boot category.
func BootError(format string, args ...interface{}) {
	Get(CategoryBoot).Error(format, args...)
}

// Index logs to the index category.
func Index(format string, args ...interface{}) {
	Get(CategoryIndex).Info(format, args...)
}

// IndexDebug logs debug to the index category.
func IndexDebug(format string, args ...interface{}) {
	Get(CategoryIndex).Debug(format, args...)
}

// IndexWarn logs a warning to the index category.
func IndexWarn(format string, args ...interface{}) {
	Get(CategoryIndex).Warn(format, args...)
}

// IndexError logs an error to the index category.
func IndexError(format string, args ...interface{}) {
	Get(CategoryIndex).Error(format, args...)
}

// Embed logs to the embed category.
func Embed(format string, args ...interface{}) {
	Get(CategoryEmbed).Info(format, args...)
}

// EmbedDebug logs debug to the embed category.
func EmbedDebug(format string, args ...interface{}) {
	Get(CategoryEmbed).Debug(format, args...)
}

// LLM logs to the llm category.
func LLM(format string, args ...interface{}) {
	Get(CategoryLLM).Info(format, args...)
}

// LLMDebug logs debug to the llm category.
func LLMDebug(format string, args ...interface{}) {
	Get(CategoryLLM).Debug(format, args...)
}

// LLMError logs an error to the llm category.
func LLMError(format string, args ...interface{}) {
	Get(CategoryLLM).Error(format, args...)
}

// Locator logs to the locator category.
func Locator(format string, args ...interface{}) {
	Get(CategoryLocator).Info(format, args...)
}

// LocatorDebug logs debug to the locator category.
func LocatorDebug(format string, args ...interface{}) {
	Get(CategoryLocator).Debug(format, args...)
}

// TestGen logs to the testgen category.
func TestGen(format string, args ...interface{}) {
	Get(CategoryTestGen).Info(format, args...)
}

// TestGenDebug logs debug to the testgen category.
func TestGenDebug(format string, args ...interface{}) {
	Get(CategoryTestGen).Debug(format, args...)
}

// TestGenWarn logs a warning to the testgen category.
func TestGenWarn(format string, args ...interface{}) {
	Get(CategoryTestGen).Warn(format, args...)
}

// Synth logs to the synth category.
func Synth(format string, args ...interface{}) {
	Get(CategorySynth).Info(format, args...)
}

// SynthDebug logs debug to the synth category.
func SynthDebug(format string, args ...interface{}) {
	Get(CategorySynth).Debug(format, args...)
}

// SynthWarn logs a warning to the synth category.
func SynthWarn(format string, args ...interface{}) {
	Get(CategorySynth).Warn(format, args...)
}

// Ingest logs to the ingest category.
func Ingest(format string, args ...interface{}) {
	Get(CategoryIngest).Info(format, args...)
}

// IngestDebug logs debug to the ingest category.
func IngestDebug(format string, args ...interface{}) {
	Get(CategoryIngest).Debug(format, args...)
}

// IngestError logs an error to the ingest category.
func IngestError(format string, args ...interface{}) {
	Get(CategoryIngest).Error(format, args...)
}

// Browser logs to the browser category.
func Browser(format string, args ...interface{}) {
	Get(CategoryBrowser).Info(format, args...)
}

// BrowserDebug logs debug to the browser category.
func BrowserDebug(format string, args ...interface{}) {
	Get(CategoryBrowser).Debug(format, args...)
}

// BrowserError logs an error to the browser category.
func BrowserError(format string, args ...interface{}) {
	Get(CategoryBrowser).Error(format, args...)
}

// =============================================================================
// REQUEST ID TRACING - correlates the steps of one generation/synthesis call.
// =============================================================================

// RequestLogger provides request-scoped logging with a correlation ID.
type RequestLogger struct {
	logger    *Logger
	requestID string
}

// WithRequestID creates a request-scoped logger.
func WithRequestID(category Category, requestID string) *RequestLogger {
	return &RequestLogger{logger: Get(category), requestID: requestID}
}

func (r *RequestLogger) Debug(format string, args ...interface{}) {
	if r.logger.logger == nil || logLevel > LevelDebug {
		return
	}
	r.logger.logger.Printf("[DEBUG] [req:%s] %s", r.requestID, fmt.Sprintf(format, args...))
}

func (r *RequestLogger) Info(format string, args ...interface{}) {
	if r.logger.logger == nil || logLevel > LevelInfo {
		return
	}
	r.logger.logger.Printf("[INFO] [req:%s] %s", r.requestID, fmt.Sprintf(format, args...))
}

func (r *RequestLogger) Warn(format string, args ...interface{}) {
	if r.logger.logger == nil || logLevel > LevelWarn {
		return
	}
	r.logger.logger.Printf("[WARN] [req:%s] %s", r.requestID, fmt.Sprintf(format, args...))
}

func (r *RequestLogger) Error(format string, args ...interface{}) {
	if r.logger.logger == nil {
		return
	}
	r.logger.logger.Printf("[ERROR] [req:%s] %s", r.requestID, fmt.Sprintf(format, args...))
}

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer measures operation duration.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithInfo ends the timer and logs at info level.
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Info("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs a warning when duration exceeds the threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
