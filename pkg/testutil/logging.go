package testutil

import (
	"io"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
)

func init() {
	var isVerbose bool
	for _, arg := range os.Args {
		if arg == "-test.v=true" || arg == "-test.v" {
			isVerbose = true
		}
	}

	logrus.SetLevel(logrus.TraceLevel)

	if !isVerbose {
		logrus.StandardLogger().Out = io.Discard
	}
}

// DisableLogging discards the standard logger's output for the rest of the
// test, restoring it on cleanup
func DisableLogging(t testing.TB) {
	originalLogOutput := logrus.StandardLogger().Out
	logrus.StandardLogger().Out = io.Discard
	t.Cleanup(func() {
		logrus.StandardLogger().Out = originalLogOutput
	})
}
