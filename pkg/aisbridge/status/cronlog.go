package status

import (
	"go.uber.org/zap"
)

// ZapCronLogger adapts a zap.Logger to the cron.Logger interface. Cron's
// informational chatter goes to debug.
type ZapCronLogger struct {
	logger *zap.Logger
}

func NewZapCronLogger(logger *zap.Logger) *ZapCronLogger {
	return &ZapCronLogger{logger: logger}
}

func (z *ZapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	z.logger.Debug(msg, fields(keysAndValues)...)
}

func (z *ZapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	z.logger.Error(msg, append(fields(keysAndValues), zap.Error(err))...)
}

func fields(keysAndValues []interface{}) []zap.Field {
	result := make([]zap.Field, 0, len(keysAndValues)/2+1)
	for i := 0; i < len(keysAndValues)-1; i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			result = append(result, zap.Any(key, keysAndValues[i+1]))
		}
	}
	return result
}
