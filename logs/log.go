package logs

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 定义日志级别常量（数值越大，级别越高）
const (
	LevelTrace   = iota // 0（最低，最详细）
	LevelDebug          // 1
	LevelVerbose        // 2
	LevelInfo           // 3
	LevelWarning        // 4
	LevelError          // 5（最高，最严重）
)

// Logger 节点/组件级别的日志接口，执行器、注册表、存储层都通过它打日志
type Logger interface {
	Trace(format string, v ...interface{})
	Debug(format string, v ...interface{})
	Verbose(format string, v ...interface{})
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
	// Named 派生一个带子名字的 logger，例如 "vault.db"
	Named(name string) Logger
}

type zapLogger struct {
	level int
	sugar *zap.SugaredLogger
}

var (
	mu     sync.RWMutex
	global Logger = NewNopLogger() // 进程级 logger，由组装方通过 SetLogger 安装
)

// toZapLevel Trace/Debug/Verbose 在 zap 里都落到 Debug
func toZapLevel(level int) zapcore.Level {
	switch {
	case level <= LevelVerbose:
		return zapcore.DebugLevel
	case level == LevelInfo:
		return zapcore.InfoLevel
	case level == LevelWarning:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

func newZapLogger(name string, level int, ws zapcore.WriteSyncer) *zapLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), ws, toZapLevel(level))
	z := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Named(name)
	return &zapLogger{level: level, sugar: z.Sugar()}
}

// NewNodeLogger 为一个组件创建独立的 logger，level 使用 LevelXxx 常量
func NewNodeLogger(name string, level int) Logger {
	return newZapLogger(name, level, zapcore.Lock(os.Stdout))
}

// NewNopLogger 丢弃所有输出，测试里常用
func NewNopLogger() Logger {
	return &zapLogger{level: LevelError + 1, sugar: zap.NewNop().Sugar()}
}

// NewWithWriter 输出到指定 writer
func NewWithWriter(name string, level int, ws zapcore.WriteSyncer) Logger {
	return newZapLogger(name, level, ws)
}

func (l *zapLogger) Trace(format string, v ...interface{}) {
	if l.level <= LevelTrace {
		l.sugar.Debugf("[TRACE] "+format, v...)
	}
}

func (l *zapLogger) Debug(format string, v ...interface{}) {
	if l.level <= LevelDebug {
		l.sugar.Debugf(format, v...)
	}
}

func (l *zapLogger) Verbose(format string, v ...interface{}) {
	if l.level <= LevelVerbose {
		l.sugar.Debugf("[VERBOSE] "+format, v...)
	}
}

func (l *zapLogger) Info(format string, v ...interface{}) {
	if l.level <= LevelInfo {
		l.sugar.Infof(format, v...)
	}
}

func (l *zapLogger) Warn(format string, v ...interface{}) {
	if l.level <= LevelWarning {
		l.sugar.Warnf(format, v...)
	}
}

func (l *zapLogger) Error(format string, v ...interface{}) {
	if l.level <= LevelError {
		l.sugar.Errorf(format, v...)
	}
}

func (l *zapLogger) Named(name string) Logger {
	return &zapLogger{level: l.level, sugar: l.sugar.Named(name)}
}

// ParseLevel 把配置里的字符串转成级别，不认识的按 Info 处理
func ParseLevel(s string) int {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "verbose":
		return LevelVerbose
	case "warn", "warning":
		return LevelWarning
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetLogger 替换全局 logger，nil 恢复为丢弃输出
func SetLogger(l Logger) {
	if l == nil {
		l = NewNopLogger()
	}
	mu.Lock()
	defer mu.Unlock()
	global = l
}

func current() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// 包级别的日志方法
func Trace(format string, v ...interface{})   { current().Trace(format, v...) }
func Debug(format string, v ...interface{})   { current().Debug(format, v...) }
func Verbose(format string, v ...interface{}) { current().Verbose(format, v...) }
func Info(format string, v ...interface{})    { current().Info(format, v...) }
func Warn(format string, v ...interface{})    { current().Warn(format, v...) }
func Error(format string, v ...interface{})   { current().Error(format, v...) }
