package logging

import (
	"strings"
	"sync"

	"github.com/asticode/go-astiav"
	"github.com/sirupsen/logrus"
)

// BridgeLibav sends FFmpeg log lines to l. FFmpeg verbosity follows l's level.
func BridgeLibav(l *logrus.Logger) {
	astiav.SetLogLevel(LibavLevel(l.GetLevel()))

	var mu sync.Mutex
	astiav.SetLogCallback(func(c astiav.Classer, level astiav.LogLevel, _, msg string) {
		msg = strings.TrimSpace(msg)
		if msg == "" {
			return
		}
		entry := logrus.NewEntry(l).WithField("source", "libav")
		if c != nil {
			if cl := c.Class(); cl != nil {
				entry = entry.WithField("class", cl.Name())
			}
		}

		mu.Lock()
		defer mu.Unlock()
		entry.Log(LogrusLevel(level), msg)
	})
}

// LogrusLevel maps an FFmpeg log level onto logrus.
func LogrusLevel(level astiav.LogLevel) logrus.Level {
	switch {
	case level <= astiav.LogLevelError:
		return logrus.ErrorLevel
	case level <= astiav.LogLevelWarning:
		return logrus.WarnLevel
	case level <= astiav.LogLevelInfo:
		return logrus.InfoLevel
	case level <= astiav.LogLevelVerbose:
		return logrus.DebugLevel
	default:
		return logrus.TraceLevel
	}
}

// LibavLevel is the FFmpeg verbosity matching a logrus level.
// FFmpeg info output is noisy, so it only shows at debug.
func LibavLevel(level logrus.Level) astiav.LogLevel {
	switch {
	case level >= logrus.TraceLevel:
		return astiav.LogLevelDebug
	case level >= logrus.DebugLevel:
		return astiav.LogLevelInfo
	case level >= logrus.WarnLevel:
		return astiav.LogLevelWarning
	default:
		return astiav.LogLevelError
	}
}
