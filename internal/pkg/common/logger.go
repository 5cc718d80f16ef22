package common

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "allergen-engine"

var (
	// Logger is the process-wide logger. It is a no-op until InitLogger runs.
	Logger  = zap.NewNop()
	LogMode string

	// short colored labels for the console core
	levelLabels = map[zapcore.Level]string{
		zapcore.DebugLevel: "\033[36mDBG",
		zapcore.InfoLevel:  "\033[32mINF",
		zapcore.WarnLevel:  "\033[33mWRN",
		zapcore.ErrorLevel: "\033[31mERR",
		zapcore.FatalLevel: "\033[35mFAT",
	}
	resetColor = "\033[0m"

	// messages that still print when LOG_MODE=concise
	conciseMessages = map[string]bool{
		MsgRequestCompleted: true,
		MsgStarting:         true,
		MsgShuttingDown:     true,
		MsgServerExited:     true,
	}
)

// Lifecycle messages shared by main and the request logger.
const (
	MsgRequestCompleted = "request completed"
	MsgStarting         = "starting application"
	MsgShuttingDown     = "shutting down server"
	MsgServerExited     = "server exited"
)

func getEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "",
		CallerKey:      "",
		MessageKey:     "msg",
		StacktraceKey:  "",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    customLevelEncoder,
		EncodeTime:     customTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
}

func customTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("15:04:05.000"))
}

func customLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	label, ok := levelLabels[l]
	if !ok {
		label = l.CapitalString()
	}
	enc.AppendString(label + resetColor)
}

// ParseLevel maps a config string to a zap level, defaulting to info.
func ParseLevel(logLevel string) zapcore.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitLogger builds the file + console logger and replaces the zap globals.
func InitLogger(logLevel string) error {
	level := ParseLevel(logLevel)

	// LOG_MODE is read after .env has been loaded
	LogMode = os.Getenv("LOG_MODE")

	if err := os.MkdirAll("logs", 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logFile, err := os.OpenFile("logs/app.log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(getEncoderConfig()),
		zapcore.AddSync(logFile),
		level,
	)
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(getEncoderConfig()),
		zapcore.AddSync(os.Stdout),
		level,
	)

	Logger = zap.New(zapcore.NewTee(fileCore, consoleCore),
		zap.AddCallerSkip(1),
		zap.Fields(zap.String("service", serviceName)),
	)
	zap.ReplaceGlobals(Logger)

	return nil
}

// filterFields drops fields that may carry credentials.
func filterFields(fields []zap.Field) []zap.Field {
	filtered := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.ToLower(field.Key)
		if key == "api_key" || key == "authorization" || strings.Contains(key, "secret") {
			continue
		}
		filtered = append(filtered, field)
	}
	return filtered
}

// LogInfo writes an info entry.
func LogInfo(msg string, fields ...zap.Field) {
	if LogMode == "concise" && !conciseMessages[msg] {
		return
	}
	Logger.Info(msg, filterFields(fields)...)
}

// LogError writes an error entry.
func LogError(msg string, fields ...zap.Field) {
	Logger.Error(msg, filterFields(fields)...)
}

// LogWarn writes a warning entry.
func LogWarn(msg string, fields ...zap.Field) {
	Logger.Warn(msg, filterFields(fields)...)
}

// LogDebug writes a debug entry.
func LogDebug(msg string, fields ...zap.Field) {
	Logger.Debug(msg, filterFields(fields)...)
}

// LogFatal writes a fatal entry and exits.
func LogFatal(msg string, fields ...zap.Field) {
	Logger.Fatal(msg, fields...)
}

// Sync flushes buffered entries.
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// LogCacheHit records a cache hit for the given cache type.
func LogCacheHit(cacheType string) {
	LogDebug("cache hit", zap.String("type", cacheType))
}

// LogCacheMiss records a cache miss for the given cache type.
func LogCacheMiss(cacheType string) {
	LogDebug("cache miss", zap.String("type", cacheType))
}

// LogAICall records the outcome of one completion request.
func LogAICall(model string, duration time.Duration, err error) {
	if err != nil {
		LogWarn("AI request failed",
			zap.String("model", model),
			zap.Error(err),
			zap.Duration("duration", duration),
		)
		return
	}
	LogInfo("AI request succeeded",
		zap.String("model", model),
		zap.Duration("duration", duration),
	)
}
