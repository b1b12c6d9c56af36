package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"prod-watch/internal/models"
)

const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
)

var (
	mu           sync.RWMutex
	activeLogger *log.Logger
	logFile      *os.File
	minLevel     = levelInfo
)

// InitLogger 初始化日志系统。
func InitLogger(config *models.Config) error {
	if config == nil {
		return fmt.Errorf("日志配置为空")
	}
	logToStd := config.LogToStd == nil || *config.LogToStd
	logOutput, file, err := buildLogWriter(config.LogFile, logToStd)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = file
	activeLogger = log.New(logOutput, "", log.LstdFlags|log.Lshortfile)
	minLevel = parseLevel(config.LogLevel)
	return nil
}

func buildLogWriter(path string, logToStd bool) (io.Writer, *os.File, error) {
	if path == "" {
		return os.Stdout, nil, nil
	}

	logDir := filepath.Dir(path)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("创建日志目录失败: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, nil, fmt.Errorf("打开日志文件失败: %w", err)
	}
	if !logToStd {
		return file, file, nil
	}
	return io.MultiWriter(os.Stdout, file), file, nil
}

// SetOutput 替换日志输出 主要用于测试捕获日志
func SetOutput(w io.Writer) {
	mu.Lock()
	activeLogger = log.New(w, "", log.LstdFlags)
	mu.Unlock()
}

// Close 关闭日志文件。
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	activeLogger = nil
}

// Info 记录信息日志。
func Info(format string, v ...interface{}) {
	logWithLevel(levelInfo, "INFO", format, v...)
}

// Error 记录错误日志。
func Error(format string, v ...interface{}) {
	logWithLevel(levelError, "ERROR", format, v...)
}

// Warn 记录警告日志。
func Warn(format string, v ...interface{}) {
	logWithLevel(levelWarn, "WARN", format, v...)
}

// Debug 记录调试日志。
func Debug(format string, v ...interface{}) {
	logWithLevel(levelDebug, "DEBUG", format, v...)
}

// SetLogLevel 设置日志级别。
func SetLogLevel(level string) {
	mu.Lock()
	minLevel = parseLevel(level)
	mu.Unlock()
}

func parseLevel(raw string) int {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return levelDebug
	case "warn", "warning":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func logWithLevel(level int, name, format string, v ...interface{}) {
	mu.RLock()
	current := activeLogger
	enabled := level >= minLevel
	mu.RUnlock()
	if !enabled {
		return
	}
	prefix := "[" + name + "] "
	if current != nil {
		_ = current.Output(3, fmt.Sprintf(prefix+format, v...))
		return
	}
	_ = log.Output(3, fmt.Sprintf(prefix+format, v...))
}
