package utils

import (
	"strings"

	"github.com/sirupsen/logrus"
	log "github.com/sirupsen/logrus"
)

var Log = logrus.New()

func SetLogLevel(level string) {
	// We are not using logrus' trace and panic levels
	switch strings.ToLower(level) {
	case "debug":
		Log.SetLevel(log.DebugLevel)
	case "info":
		Log.SetLevel(log.InfoLevel)
	case "warning", "warn":
		Log.SetLevel(log.WarnLevel)
	case "error":
		Log.SetLevel(log.ErrorLevel)
	case "fatal":
		Log.SetLevel(log.FatalLevel)
	default:
		log.Fatal("Bad error level string")
	}
}

// LeveledLogger adapts a logrus logger to the key/value logging interface
// used by retryablehttp and the polling queue.
type LeveledLogger struct {
	L *logrus.Logger
}

func fields(kv []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		f[key] = kv[i+1]
	}
	return f
}

func (l LeveledLogger) Error(msg string, kv ...interface{}) { l.L.WithFields(fields(kv)).Error(msg) }
func (l LeveledLogger) Warn(msg string, kv ...interface{})  { l.L.WithFields(fields(kv)).Warn(msg) }
func (l LeveledLogger) Info(msg string, kv ...interface{})  { l.L.WithFields(fields(kv)).Info(msg) }
func (l LeveledLogger) Debug(msg string, kv ...interface{}) { l.L.WithFields(fields(kv)).Debug(msg) }
