package logger

import (
	"fmt"

	"github.com/kataras/golog"
)

var log = golog.Default

// Init configures the process-wide logger. Level is one of golog's
// level names ("debug", "info", "warn", "error"); empty keeps "info".
func Init(level string) {
	if level != "" {
		log.SetLevel(level)
	}
	log.SetTimeFormat("2006-01-02 15:04:05")
}

func Debug(msg string, fields map[string]any) {
	log.Debug(args(msg, fields)...)
}

func Info(msg string, fields map[string]any) {
	log.Info(args(msg, fields)...)
}

func Warn(msg string, fields map[string]any) {
	log.Warn(args(msg, fields)...)
}

func Error(msg string, fields map[string]any) {
	log.Error(args(msg, fields)...)
}

func Fatal(msg string, fields map[string]any) {
	log.Fatal(args(msg, fields)...)
}

func args(msg string, fields map[string]any) []any {
	out := []any{msg}
	for k, v := range fields {
		out = append(out, fmt.Sprintf("%s=%v", k, v))
	}
	return out
}
