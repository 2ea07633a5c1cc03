package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

// Log общий логгер приложения
var Log = logrus.New()

// Fields поля структурированного лога
type Fields = logrus.Fields

func init() {
	Log.SetLevel(logrus.InfoLevel)
	Log.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
	})
}

// SetupLogger настраивает уровень логирования и, если задана директория,
// дублирует вывод в файл app.log
func SetupLogger(level, dir string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("неверный уровень логирования %q: %w", level, err)
	}
	Log.SetLevel(lvl)

	if dir == "" {
		Log.SetOutput(os.Stdout)
		return nil
	}

	// Создаем директорию для логов, если она не существует
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("не удалось создать директорию логов: %w", err)
	}
	file, err := os.OpenFile(filepath.Join(dir, "app.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("не удалось открыть файл лога: %w", err)
	}
	Log.SetOutput(io.MultiWriter(os.Stdout, file))
	return nil
}

// WithFields возвращает запись лога с полями
func WithFields(fields Fields) *logrus.Entry {
	return Log.WithFields(fields)
}

func caller() string {
	_, file, line, _ := runtime.Caller(2)
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

// LogInfo логирует информационное сообщение
func LogInfo(format string, v ...interface{}) {
	Log.WithField("caller", caller()).Infof(format, v...)
}

// LogWarn логирует предупреждение
func LogWarn(format string, v ...interface{}) {
	Log.WithField("caller", caller()).Warnf(format, v...)
}

// LogError логирует сообщение об ошибке
func LogError(format string, v ...interface{}) {
	Log.WithField("caller", caller()).Errorf(format, v...)
}

// LogDebug логирует отладочное сообщение
func LogDebug(format string, v ...interface{}) {
	Log.WithField("caller", caller()).Debugf(format, v...)
}

// LogOperation логирует операцию с длительностью
func LogOperation(operation string, startTime time.Time, err error) {
	entry := Log.WithFields(Fields{
		"operation": operation,
		"duration":  time.Since(startTime),
	})
	if err != nil {
		entry.WithError(err).Error("operation failed")
		return
	}
	entry.Debug("operation completed")
}
