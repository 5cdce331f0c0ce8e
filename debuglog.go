package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DebugLogger provides unified debug message handling for console, the
// session log file and the terminal overlay
type DebugLogger struct {
	enabled        bool
	baseDir        string
	sessionID      string
	out            io.Writer
	mu             sync.RWMutex
	sessionFile    *os.File
	overlayHistory []DebugMessage // For overlay terminal
	maxOverlayMsgs int
	writeQueue     chan string
	stopWorker     chan bool
	workerStopped  sync.WaitGroup
	now            func() time.Time
}

type DebugMessage struct {
	Timestamp time.Time
	Component string
	Message   string
	SessionID string
}

// NewDebugLogger creates a unified debug logger. When enabled, messages are
// also appended to <baseDir>/<sessionID>.txt by a background writer.
func NewDebugLogger(enabled bool, baseDir, sessionID string) *DebugLogger {
	dl := &DebugLogger{
		enabled:        enabled,
		baseDir:        baseDir,
		sessionID:      sessionID,
		out:            os.Stdout,
		overlayHistory: make([]DebugMessage, 0),
		maxOverlayMsgs: 50, // Keep last 50 messages for overlay
		writeQueue:     make(chan string, 256),
		stopWorker:     make(chan bool, 1),
		now:            time.Now,
	}

	if enabled {
		file, err := dl.openSessionFile()
		if err != nil {
			fmt.Fprintf(dl.out, "[DEBUG_LOGGER] Session log disabled: %v\n", err)
			dl.enabled = false
			return dl
		}
		dl.sessionFile = file
		dl.workerStopped.Add(1)
		go dl.fileWriteWorker()
	}

	return dl
}

func (dl *DebugLogger) openSessionFile() (*os.File, error) {
	if err := os.MkdirAll(dl.baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create debug directory: %w", err)
	}
	path := filepath.Join(dl.baseDir, dl.sessionID+".txt")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	header := fmt.Sprintf("\n=== DRIVERCAM SESSION LOG: %s ===\n", dl.sessionID)
	header += fmt.Sprintf("Started: %s\n", dl.now().Format("2006-01-02 15:04:05"))
	header += "========================================\n\n"
	file.WriteString(header)
	return file, nil
}

// debugMsg is the main unified debug function
func (dl *DebugLogger) debugMsg(component, message string, sessionID ...string) {
	timestamp := dl.now()

	line := fmt.Sprintf("[%s][%s] %s", timestamp.Format("15:04:05.000"), component, message)
	fmt.Fprintln(dl.out, line)

	msg := DebugMessage{
		Timestamp: timestamp,
		Component: component,
		Message:   message,
	}
	if len(sessionID) > 0 {
		msg.SessionID = sessionID[0]
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()

	// Overlay history works independently of debug mode
	dl.overlayHistory = append(dl.overlayHistory, msg)
	if len(dl.overlayHistory) > dl.maxOverlayMsgs {
		dl.overlayHistory = dl.overlayHistory[1:] // Remove oldest
	}

	if !dl.enabled {
		return
	}
	select {
	case dl.writeQueue <- line + "\n":
	default:
		// Queue full, drop message to prevent blocking
	}
}

// fileWriteWorker handles async file writing
func (dl *DebugLogger) fileWriteWorker() {
	defer dl.workerStopped.Done()

	for {
		select {
		case line := <-dl.writeQueue:
			dl.sessionFile.WriteString(line)

		case <-dl.stopWorker:
			// Drain remaining lines
			for len(dl.writeQueue) > 0 {
				dl.sessionFile.WriteString(<-dl.writeQueue)
			}
			dl.sessionFile.Sync()
			return
		}
	}
}

// GetOverlayHistory returns recent messages for the overlay terminal as
// "[COMPONENT] message" strings, oldest first
func (dl *DebugLogger) GetOverlayHistory() []string {
	dl.mu.RLock()
	defer dl.mu.RUnlock()

	history := make([]string, len(dl.overlayHistory))
	for i, msg := range dl.overlayHistory {
		history[i] = fmt.Sprintf("[%s] %s", msg.Component, msg.Message)
	}
	return history
}

// SessionLogPath returns the session log file, empty when file logging is off
func (dl *DebugLogger) SessionLogPath() string {
	if !dl.enabled {
		return ""
	}
	return filepath.Join(dl.baseDir, dl.sessionID+".txt")
}

// Close flushes and closes the session log
func (dl *DebugLogger) Close() {
	if !dl.enabled {
		return
	}

	dl.stopWorker <- true
	dl.workerStopped.Wait()

	dl.mu.Lock()
	dl.enabled = false
	dl.sessionFile.Close()
	dl.mu.Unlock()
}
