package logging

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	_logger           = NewTmpLogger()
	_xRequestIDHeader = "x_request_id"
)

// Config selects the zap preset and level.
type Config struct {
	Level  string
	Pretty bool
}

func ReadConfig() *Config {
	viper.BindEnv("logger.level", "LOG_LEVEL")
	viper.SetDefault("logger.level", "INFO")

	return &Config{
		Level:  viper.GetString("logger.level"),
		Pretty: viper.GetBool("logger.pretty"),
	}
}

func NewLogger(cfg *Config) (*zap.Logger, error) {
	var c zap.Config
	var opts []zap.Option
	if cfg.Pretty {
		c = zap.NewDevelopmentConfig()
		opts = append(opts, zap.AddStacktrace(zap.ErrorLevel))
	} else {
		c = zap.NewProductionConfig()
	}

	level := zap.NewAtomicLevel()

	levelName := "INFO"
	if cfg.Level != "" {
		levelName = strings.ToUpper(cfg.Level)
	}

	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return nil, fmt.Errorf("could not parse log level %s", cfg.Level)
	}
	c.Level = level

	return c.Build(opts...)
}

// InitLogger replaces the process logger and returns it.
func InitLogger(cfg *Config) (*zap.Logger, error) {
	l, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	_logger = l
	return l, nil
}

func NewTmpLogger() *zap.Logger {
	c := zap.NewProductionConfig()
	c.DisableStacktrace = true
	l, err := c.Build()
	if err != nil {
		panic(err)
	}
	return l
}

// Logger returns the process logger carrying the request id found on ctx.
// ctx: nillable
func Logger(ctx context.Context) *zap.Logger {
	return injectXRequestID(_logger, ctx)
}

func SetXRequestIDHeader(headerName string) {
	_xRequestIDHeader = headerName
}

type requestIDKey struct{}

// WithRequestID stores id on ctx for Logger to pick up.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func injectXRequestID(logger *zap.Logger, ctx context.Context) *zap.Logger {
	requestID := RequestID(ctx)
	if requestID == "" {
		return logger
	}
	return logger.With(zap.String(_xRequestIDHeader, requestID))
}
