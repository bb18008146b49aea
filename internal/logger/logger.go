package logger

import (
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	emailRegex  = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	tokenRegex  = regexp.MustCompile(`eyJ[^\s]+`)
	userIDRegex = regexp.MustCompile(`\buser_id\s*=\s*[0-9a-fA-F-]+\b`)
)

// Logger is a centralized structured logger
type Logger struct {
	out *logrus.Logger
}

// std backs every Logger returned by New, so one SetLevel call reaches all
// packages.
var std = newLogrus(os.Stdout)

// New returns a Logger writing JSON lines to stdout through the shared
// instance.
func New() *Logger {
	return &Logger{out: std}
}

// NewWithWriter creates a standalone Logger writing to w.
func NewWithWriter(w io.Writer) *Logger {
	return &Logger{out: newLogrus(w)}
}

func newLogrus(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: "message",
		},
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel sets the level of the shared instance used by New.
func SetLevel(level string) {
	setLevel(std, level)
}

// SetLevel accepts logrus level names; unknown names leave the level unchanged.
func (l *Logger) SetLevel(level string) {
	setLevel(l.out, level)
}

func setLevel(l *logrus.Logger, level string) {
	if lvl, err := logrus.ParseLevel(strings.ToLower(level)); err == nil {
		l.SetLevel(lvl)
	}
}

// SetOutput redirects the shared instance used by New.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

// Anonymize replaces sensitive information in logs (emails, tokens, IDs)
func Anonymize(s string) string {
	s = emailRegex.ReplaceAllString(s, "[REDACTED_EMAIL]")
	s = tokenRegex.ReplaceAllString(s, "[REDACTED_TOKEN]")
	s = userIDRegex.ReplaceAllString(s, "user_id=[USER_ID]")
	return s
}

func (l *Logger) entry(module string) *logrus.Entry {
	if module == "" {
		return logrus.NewEntry(l.out)
	}
	return l.out.WithField("module", module)
}

// --- Convenient methods ---
func (l *Logger) Info(module, msg string) {
	l.entry(module).Info(Anonymize(msg))
}

func (l *Logger) Debug(module, msg string) {
	l.entry(module).Debug(Anonymize(msg))
}

func (l *Logger) Error(module, msg string, err error) {
	e := l.entry(module)
	if err != nil {
		e = e.WithField("error", Anonymize(err.Error()))
	}
	e.Error(Anonymize(msg))
}
