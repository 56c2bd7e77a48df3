// Package log is the keyed-pair logging facade of turbodb (used by sync),
// carried over from the host application's own log package rather than
// pulled in as a third-party dependency.
package log

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Lvl is a logging severity level.
type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

var lvlNames = [...]string{"CRIT", "ERROR", "WARN", "INFO", "DEBUG", "TRACE"}

func (l Lvl) String() string {
	if int(l) < 0 || int(l) >= len(lvlNames) {
		return "UNKNOWN"
	}
	return lvlNames[l]
}

var (
	mu  sync.Mutex
	out = os.Stderr
	min = LvlInfo
)

// SetLevel changes the minimum level that gets written out. Tests use this to
// silence chatter or to assert on fatal conditions.
func SetLevel(l Lvl) {
	mu.Lock()
	defer mu.Unlock()
	min = l
}

func write(l Lvl, msg string, ctx []interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if l > min {
		return
	}
	var b strings.Builder
	b.WriteString(time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	b.WriteByte(' ')
	b.WriteString(l.String())
	b.WriteByte(' ')
	b.WriteString(msg)
	for i := 0; i+1 < len(ctx); i += 2 {
		fmt.Fprintf(&b, " %v=%v", ctx[i], ctx[i+1])
	}
	fmt.Fprintln(out, b.String())
}

func Trace(msg string, ctx ...interface{}) { write(LvlTrace, msg, ctx) }
func Debug(msg string, ctx ...interface{}) { write(LvlDebug, msg, ctx) }
func Info(msg string, ctx ...interface{})  { write(LvlInfo, msg, ctx) }
func Warn(msg string, ctx ...interface{})  { write(LvlWarn, msg, ctx) }
func Error(msg string, ctx ...interface{}) { write(LvlError, msg, ctx) }

// Crit logs at the critical level. Unlike go-ethereum's log.Crit, it does not
// itself exit the process — fatal termination is the caller's decision (see
// status.Fatal), so Crit here is purely informational.
func Crit(msg string, ctx ...interface{}) { write(LvlCrit, msg, ctx) }

// Logger is a narrowed interface for collaborators that only need to emit
// messages (e.g. sync.IntegrateServerChangesets's logger parameter).
type Logger interface {
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
}

type pkgLogger struct{}

func (pkgLogger) Info(msg string, ctx ...interface{})  { Info(msg, ctx...) }
func (pkgLogger) Warn(msg string, ctx ...interface{})  { Warn(msg, ctx...) }
func (pkgLogger) Error(msg string, ctx ...interface{}) { Error(msg, ctx...) }

// New returns the package-level Logger, optionally tagging every message with
// fixed context pairs (mirrors log.New("database", "in-memory") in the
// teacher's ethdb package).
func New(ctx ...interface{}) Logger {
	if len(ctx) == 0 {
		return pkgLogger{}
	}
	return &tagged{ctx: ctx}
}

type tagged struct{ ctx []interface{} }

func (t *tagged) Info(msg string, ctx ...interface{})  { write(LvlInfo, msg, append(append([]interface{}{}, t.ctx...), ctx...)) }
func (t *tagged) Warn(msg string, ctx ...interface{})  { write(LvlWarn, msg, append(append([]interface{}{}, t.ctx...), ctx...)) }
func (t *tagged) Error(msg string, ctx ...interface{}) { write(LvlError, msg, append(append([]interface{}{}, t.ctx...), ctx...)) }
