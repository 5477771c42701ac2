package logging

import (
	"math"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	requestIDField     = "request_id"
	subgraphNameField  = "subgraph_name"
	transportKindField = "transport_kind"
	operationNameField = "operation_name"
)

func New(pretty bool, development bool, level zapcore.LevelEnabler) *zap.Logger {
	return NewZapLogger(zapcore.AddSync(os.Stdout), pretty, development, level)
}

func zapBaseEncoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeDuration = zapcore.SecondsDurationEncoder
	ec.TimeKey = "time"
	return ec
}

func ZapJsonEncoder() zapcore.Encoder {
	ec := zapBaseEncoderConfig()
	ec.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		nanos := t.UnixNano()
		millis := int64(math.Trunc(float64(nanos) / float64(time.Millisecond)))
		enc.AppendInt64(millis)
	}
	return zapcore.NewJSONEncoder(ec)
}

func zapConsoleEncoder() zapcore.Encoder {
	ec := zapBaseEncoderConfig()
	ec.ConsoleSeparator = " "
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05 PM")
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

func attachBaseFields(logger *zap.Logger) *zap.Logger {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}

	logger = logger.With(
		zap.String("hostname", host),
		zap.Int("pid", os.Getpid()),
	)

	return logger
}

func defaultZapCoreOptions(development bool) []zap.Option {
	var zapOpts []zap.Option

	if development {
		zapOpts = append(zapOpts, zap.AddCaller(), zap.Development())
	}

	// Stacktrace is included on logs of ErrorLevel and above.
	zapOpts = append(zapOpts,
		zap.AddStacktrace(zap.ErrorLevel),
	)

	return zapOpts
}

func NewZapLogger(syncer zapcore.WriteSyncer, pretty, development bool, level zapcore.LevelEnabler) *zap.Logger {
	var encoder zapcore.Encoder

	if pretty {
		encoder = zapConsoleEncoder()
	} else {
		encoder = ZapJsonEncoder()
	}

	c := zapcore.NewCore(
		encoder,
		syncer,
		level,
	)
	zapLogger := zap.New(c, defaultZapCoreOptions(development)...)
	zapLogger = attachBaseFields(zapLogger)

	return zapLogger
}

// WithRequestID annotates a log entry with the client request id.
func WithRequestID(requestID string) zap.Field {
	return zap.String(requestIDField, requestID)
}

// WithSubgraphName annotates a log entry with the subgraph being executed.
func WithSubgraphName(name string) zap.Field {
	return zap.String(subgraphNameField, name)
}

// WithTransportKind annotates a log entry with the transport kind.
func WithTransportKind(kind string) zap.Field {
	return zap.String(transportKindField, kind)
}

// WithOperationName annotates a log entry with the GraphQL operation name.
func WithOperationName(name string) zap.Field {
	return zap.String(operationNameField, name)
}
