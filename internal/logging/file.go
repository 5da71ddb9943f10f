package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileWriter writes log records to a session log file.
// It always receives all levels regardless of console settings.
type FileWriter struct {
	mu       sync.Mutex
	file     *os.File
	logDir   string
	logPath  string
	initOnce sync.Once
	initErr  error
}

// NewFileWriter creates a new file writer.
// Initialization is lazy - the file is only created on first write.
func NewFileWriter(logDir string) *FileWriter {
	return &FileWriter{
		logDir: logDir,
	}
}

func (f *FileWriter) init() error {
	f.initOnce.Do(func() {
		f.initErr = f.doInit()
	})
	return f.initErr
}

func (f *FileWriter) doInit() error {
	logDir := f.logDir
	if !filepath.IsAbs(logDir) {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		logDir = filepath.Join(cwd, f.logDir)
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logPath := filepath.Join(logDir, fmt.Sprintf("session_%s.log", timestamp))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("create log file: %w", err)
	}

	f.file = file
	f.logPath = logPath

	latestPath := filepath.Join(logDir, "latest.log")
	_ = os.Remove(latestPath)
	_ = os.Symlink(filepath.Base(logPath), latestPath)

	return nil
}

// Write implements zapcore.WriteSyncer.
func (f *FileWriter) Write(p []byte) (int, error) {
	if err := f.init(); err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return len(p), nil
	}
	return f.file.Write(p)
}

// Sync implements zapcore.WriteSyncer.
func (f *FileWriter) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	return f.file.Sync()
}

// GetPath returns the path to the current log file.
// Returns empty string if not initialized.
func (f *FileWriter) GetPath() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logPath
}

// Close closes the file writer.
func (f *FileWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file != nil {
		err := f.file.Close()
		f.file = nil
		return err
	}
	return nil
}

// newFileCore creates a JSON core that records every level.
func newFileCore(w *FileWriter) zapcore.Core {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.NameKey = "prefix"
	return zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), w, zapcore.DebugLevel)
}
