package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Level 是日志级别；数值越大越严重。
type Level int

const (
	VERBOSE Level = iota
	DEBUG
	INFO
	SUCCESS
	WARNING
	ERROR
	FATAL
)

// DefaultLevel 是未配置 log_level 时的最低输出级别。
const DefaultLevel = INFO

func (l Level) String() string {
	switch l {
	case VERBOSE:
		return "V"
	case DEBUG:
		return "D"
	case INFO:
		return "I"
	case SUCCESS:
		return "✓"
	case WARNING:
		return "!"
	case ERROR:
		return "!!"
	case FATAL:
		return "FATAL"
	default:
		return "?"
	}
}

func (l Level) Color() *color.Color {
	switch l {
	case VERBOSE, DEBUG:
		return color.New(color.FgWhite, color.Italic)
	case SUCCESS:
		return color.New(color.FgHiGreen)
	case WARNING:
		return color.New(color.FgYellow)
	case ERROR:
		return color.New(color.FgHiRed, color.Bold)
	case FATAL:
		return color.New(color.FgHiRed, color.Bold, color.Underline)
	default:
		return color.New(color.FgWhite)
	}
}

// ParseLevel 解析配置里的级别名（verbose/debug/info/success/warning/error/fatal）。
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "verbose":
		return VERBOSE, true
	case "debug":
		return DEBUG, true
	case "info", "":
		return INFO, true
	case "success":
		return SUCCESS, true
	case "warning", "warn":
		return WARNING, true
	case "error":
		return ERROR, true
	case "fatal":
		return FATAL, true
	default:
		return 0, false
	}
}

type Logger interface {
	Emit(Level, string, ...any)
}

type named struct {
	mgr  *Manager
	name string
}

func (l *named) Emit(level Level, message string, args ...any) {
	l.mgr.Emit(level, l.name, message, args...)
}

// Manager 负责把各模块的日志统一写到同一个输出（默认 stderr）。
//
// 约束：
// - 不允许写 stdout（stdout 可能承载 JSON report）
// - 并发安全：Emit 可能来自多个 goroutine（keepalive ticker 等）
type Manager struct {
	mu     sync.Mutex
	w      io.Writer
	min    Level
	offset int
}

func NewManager(w io.Writer, min Level) *Manager {
	if w == nil {
		w = io.Discard
	}
	return &Manager{w: w, min: min}
}

// Log 是进程级默认 Manager。
var Log = NewManager(os.Stderr, DefaultLevel)

func (m *Manager) Get(name string) Logger {
	return &named{mgr: m, name: name}
}

func (m *Manager) SetMinLevel(l Level) {
	m.mu.Lock()
	m.min = l
	m.mu.Unlock()
}

func (m *Manager) SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	m.mu.Lock()
	m.w = w
	m.mu.Unlock()
}

func (m *Manager) Emit(level Level, name string, message string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if level < m.min {
		return
	}
	if len(name) > m.offset {
		m.offset = len(name)
	}
	padding := strings.Repeat(" ", m.offset-len(name))
	msg := fmt.Sprintf(message, args...)
	_, _ = level.Color().Fprintf(m.w, "[%s] %s(%s) %s\n", name, padding, level, strings.TrimRight(msg, "\n"))
}

// Get 从默认 Manager 取一个具名 Logger。
func Get(name string) Logger { return Log.Get(name) }

func SetMinLevel(l Level) { Log.SetMinLevel(l) }

func SetOutput(w io.Writer) { Log.SetOutput(w) }

// Discard 返回一个丢弃所有输出的 Logger（测试用）。
func Discard() Logger { return NewManager(io.Discard, FATAL+1).Get("discard") }
