// Package logging provides categorized file-based logging for gramNERD.
// Logs are written to <data_dir>/logs with separate files per category.
// When debug mode is off, no files are written at all.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/system.
type Category string

const (
	CategoryBoot     Category = "boot"     // Startup and initialization
	CategoryStore    Category = "store"    // Ledger operations
	CategoryBrowser  Category = "browser"  // Browser automation, selector fallbacks
	CategoryEngine   Category = "engine"   // Mode engines and run supervisor
	CategoryAdvisory Category = "advisory" // Advisory model API calls
	CategoryAPI      Category = "api"      // Dashboard HTTP surface
)

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
	debugMode bool
	stateMu   sync.RWMutex
)

// Initialize sets up the logging directory. Should be called once at
// startup with the data directory path. With debug false this is a
// silent no-op and all loggers become no-ops.
func Initialize(dataDir string, debug bool) error {
	stateMu.Lock()
	debugMode = debug
	if !debug {
		logsDir = ""
		stateMu.Unlock()
		return nil
	}
	logsDir = filepath.Join(dataDir, "logs")
	stateMu.Unlock()

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== gramNERD logging initialized ===")
	boot.Info("Logs directory: %s", logsDir)
	return nil
}

// IsDebugMode returns whether debug logging is enabled.
func IsDebugMode() bool {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return debugMode
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger when debug mode is disabled.
func Get(category Category) *Logger {
	stateMu.RLock()
	dir := logsDir
	enabled := debugMode
	stateMu.RUnlock()

	if !enabled || dir == "" {
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

	// Date prefix keeps rotation trivial.
	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(dir, fmt.Sprintf("%s_%s.log", date, category))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
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
	if l.logger == nil {
		return
	}
	l.logger.Printf("[DEBUG] "+format, args...)
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[INFO] "+format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil {
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

// CloseAll closes all open log files (call at shutdown).
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
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops when debug mode is disabled
// =============================================================================

// Boot logs to the boot category.
func Boot(format string, args ...interface{}) { Get(CategoryBoot).Info(format, args...) }

// BootError logs error to the boot category.
func BootError(format string, args ...interface{}) { Get(CategoryBoot).Error(format, args...) }

// Store logs to the store category.
func Store(format string, args ...interface{}) { Get(CategoryStore).Info(format, args...) }

// StoreDebug logs debug to the store category.
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }

// StoreError logs error to the store category.
func StoreError(format string, args ...interface{}) { Get(CategoryStore).Error(format, args...) }

// Browser logs to the browser category.
func Browser(format string, args ...interface{}) { Get(CategoryBrowser).Info(format, args...) }

// BrowserDebug logs debug to the browser category.
func BrowserDebug(format string, args ...interface{}) { Get(CategoryBrowser).Debug(format, args...) }

// BrowserWarn logs warning to the browser category.
func BrowserWarn(format string, args ...interface{}) { Get(CategoryBrowser).Warn(format, args...) }

// BrowserError logs error to the browser category.
func BrowserError(format string, args ...interface{}) { Get(CategoryBrowser).Error(format, args...) }

// Engine logs to the engine category.
func Engine(format string, args ...interface{}) { Get(CategoryEngine).Info(format, args...) }

// EngineDebug logs debug to the engine category.
func EngineDebug(format string, args ...interface{}) { Get(CategoryEngine).Debug(format, args...) }

// EngineWarn logs warning to the engine category.
func EngineWarn(format string, args ...interface{}) { Get(CategoryEngine).Warn(format, args...) }

// EngineError logs error to the engine category.
func EngineError(format string, args ...interface{}) { Get(CategoryEngine).Error(format, args...) }

// Advisory logs to the advisory category.
func Advisory(format string, args ...interface{}) { Get(CategoryAdvisory).Info(format, args...) }

// AdvisoryDebug logs debug to the advisory category.
func AdvisoryDebug(format string, args ...interface{}) { Get(CategoryAdvisory).Debug(format, args...) }

// AdvisoryWarn logs warning to the advisory category.
func AdvisoryWarn(format string, args ...interface{}) { Get(CategoryAdvisory).Warn(format, args...) }

// AdvisoryError logs error to the advisory category.
func AdvisoryError(format string, args ...interface{}) { Get(CategoryAdvisory).Error(format, args...) }

// API logs to the api category.
func API(format string, args ...interface{}) { Get(CategoryAPI).Info(format, args...) }

// APIDebug logs debug to the api category.
func APIDebug(format string, args ...interface{}) { Get(CategoryAPI).Debug(format, args...) }

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer helps measure operation duration.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}
