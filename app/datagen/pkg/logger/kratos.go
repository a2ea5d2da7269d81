package logger

import (
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/sirupsen/logrus"
)

// kratosLogger 把 kratos 的 log.Logger 接口桥接到全局 logrus 实例
type kratosLogger struct{}

// NewKratosLogger 返回写入 Log 的 kratos 日志适配器
func NewKratosLogger() log.Logger {
	return kratosLogger{}
}

// Log 实现 log.Logger 接口
func (kratosLogger) Log(level log.Level, keyvals ...any) error {
	fields := make(logrus.Fields, len(keyvals)/2)
	msg := ""
	for i := 0; i+1 < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if key == log.DefaultMessageKey {
			msg = fmt.Sprint(keyvals[i+1])
			continue
		}
		fields[key] = keyvals[i+1]
	}
	if len(keyvals)%2 == 1 {
		fields["extra"] = keyvals[len(keyvals)-1]
	}

	entry := Log.WithFields(fields)
	switch level {
	case log.LevelDebug:
		entry.Debug(msg)
	case log.LevelWarn:
		entry.Warn(msg)
	case log.LevelError, log.LevelFatal:
		entry.Error(msg)
	default:
		entry.Info(msg)
	}
	return nil
}
