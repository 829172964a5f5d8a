package cmd

import (
	"strings"

	"github.com/tsarna/aisbridge/pkg/aisbridge/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// setupLogger builds the process logger. -d forces debug and development
// mode; -v raises the default info level to debug. With a log file the
// output is teed to a rotating JSON file. The returned func closes the file.
func setupLogger(logCfg config.Log) (*zap.Logger, func(), error) {
	level := logCfg.Level
	if GetDebug() {
		level = "debug"
	} else if GetVerbose() && strings.EqualFold(level, "info") {
		level = "debug"
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(parseLevel(level))
	zapConfig.Development = GetDebug()

	if logCfg.File == "" {
		logger, err := zapConfig.Build()
		return logger, func() {}, err
	}

	rotator := &lumberjack.Logger{
		Filename:   logCfg.File,
		MaxSize:    logCfg.MaxSizeMB,
		MaxBackups: logCfg.MaxBackups,
		MaxAge:     logCfg.MaxAgeDays,
		Compress:   logCfg.Compress,
	}

	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zapConfig.EncoderConfig),
		zapcore.AddSync(rotator),
		zapConfig.Level,
	)

	logger, err := zapConfig.Build(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	}))
	if err != nil {
		rotator.Close()
		return nil, nil, err
	}

	return logger, func() { rotator.Close() }, nil
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}
