package logger

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/iamvkosarev/ai-multichat/config"
)

func New(cfg config.Log) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if cfg.Development {
		zapConfig = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("failed to parse log level %q: %w", cfg.Level, err)
		}
		zapConfig.Level = level
	}
	return zapConfig.Build()
}
