package logger

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var Log = newLogger(os.Stdout, "info")

var (
	subjectKeyMu sync.RWMutex
	// subjectKey is random per process until SetSubjectKey installs the
	// installation secret, so hashes are not reversible from source alone.
	subjectKey = randomKey()
)

func Init() {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	Log = newLogger(os.Stdout, level)
}

func newLogger(out io.Writer, level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	l.SetLevel(logLevel)
	return l
}

func WithField(key string, value interface{}) *logrus.Entry {
	return Log.WithField(key, value)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return Log.WithFields(fields)
}

// SetSubjectKey installs the HMAC key for subject hashes. Hashes stay
// comparable across restarts only while the key is unchanged. An empty key
// keeps the current one.
func SetSubjectKey(key string) {
	if key == "" {
		return
	}
	subjectKeyMu.Lock()
	subjectKey = []byte(key)
	subjectKeyMu.Unlock()
}

// HashSubject returns a short keyed reference to a subject id.
func HashSubject(subjectID string) string {
	if subjectID == "" {
		return ""
	}
	subjectKeyMu.RLock()
	mac := hmac.New(sha256.New, subjectKey)
	subjectKeyMu.RUnlock()
	mac.Write([]byte(subjectID))
	return hex.EncodeToString(mac.Sum(nil)[:8])
}

func randomKey() []byte {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic("logger: crypto/rand unavailable: " + err.Error())
	}
	return key
}
