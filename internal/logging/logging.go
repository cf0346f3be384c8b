package logging

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Setup configures the global logrus logger and routes libav output into it.
func Setup(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	logrus.SetOutput(os.Stderr)
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	BridgeLibav(logrus.StandardLogger())
	return nil
}
