package types

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/journald"
)

// PicloneLogger wraps zerolog so engine components get one injectable
// logging capability instead of poking at module-level state.
type PicloneLogger struct {
	zerolog.Logger
	fileLock *flock.Flock
	logFile  *os.File
}

const logDir = "/var/log/piclone"

func journaldReachable() bool {
	conn, err := net.Dial("unixgram", "/run/systemd/journal/socket")
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// resolveLevel parses level and honors the $NAME_DEBUG / $NAME_TRACE
// environment escape hatches, defaulting to info.
func resolveLevel(name, level string) zerolog.Level {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		l = zerolog.InfoLevel
	}
	prefix := strings.ToUpper(name)
	if os.Getenv(prefix+"_DEBUG") != "" {
		l = zerolog.DebugLevel
	}
	if os.Getenv(prefix+"_TRACE") != "" {
		l = zerolog.TraceLevel
	}
	return l
}

// NewPicloneLogger builds the appliance logger. Output goes to journald
// when the socket is reachable, otherwise to a file under /var/log/piclone,
// plus the console unless quiet is set. Level can be forced to debug or
// trace via $NAME_DEBUG / $NAME_TRACE.
func NewPicloneLogger(name, level string, quiet bool) PicloneLogger {
	lg := PicloneLogger{}

	var sinks []io.Writer
	if journaldReachable() {
		sinks = append(sinks, journald.NewJournalDWriter())
	} else {
		_ = os.MkdirAll(logDir, os.ModeDir|os.ModePerm)
		path := filepath.Join(logDir, fmt.Sprintf("%s.log", name))
		if f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
			lg.logFile = f
			sinks = append(sinks, zerolog.ConsoleWriter{Out: f, TimeFormat: time.RFC3339, NoColor: true})
		}
		lg.fileLock = flock.New(path + ".lock")
	}
	if !quiet {
		sinks = append(sinks, zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.TimeFormat = time.RFC3339
		}))
	}

	out := zerolog.MultiLevelWriter(sinks...)
	lg.Logger = zerolog.New(out).With().Timestamp().Logger().Level(resolveLevel(name, level))
	return lg
}

// Cleanup releases the log file and its lock when file logging is active.
func (m *PicloneLogger) Cleanup() {
	if m.fileLock != nil {
		m.fileLock.Lock()
		defer m.fileLock.Unlock()
	}
	if m.logFile != nil {
		m.logFile.Close()
		m.logFile = nil
	}
	if m.fileLock != nil {
		m.fileLock.Unlock()
		m.fileLock = nil
	}
}

// NewBufferLogger logs structured JSON into b, for tests.
func NewBufferLogger(b *bytes.Buffer) PicloneLogger {
	return PicloneLogger{Logger: zerolog.New(b).With().Timestamp().Logger()}
}

// NewNullLogger discards everything.
func NewNullLogger() PicloneLogger {
	return PicloneLogger{Logger: zerolog.New(io.Discard).With().Timestamp().Logger()}
}

func (m *PicloneLogger) SetLevel(level string) {
	l, _ := zerolog.ParseLevel(level)
	m.Logger = m.Logger.Level(l)
}

func (m PicloneLogger) GetLevel() zerolog.Level {
	return m.Logger.GetLevel()
}

func (m PicloneLogger) IsDebug() bool {
	return m.Logger.GetLevel() == zerolog.DebugLevel
}

func (m PicloneLogger) Infof(tpl string, args ...interface{}) {
	m.Logger.Info().Msg(fmt.Sprintf(tpl, args...))
}

func (m PicloneLogger) Debugf(tpl string, args ...interface{}) {
	m.Logger.Debug().Msg(fmt.Sprintf(tpl, args...))
}

func (m PicloneLogger) Warnf(tpl string, args ...interface{}) {
	m.Logger.Warn().Msg(fmt.Sprintf(tpl, args...))
}

func (m PicloneLogger) Errorf(tpl string, args ...interface{}) {
	m.Logger.Error().Msg(fmt.Sprintf(tpl, args...))
}
