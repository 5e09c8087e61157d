package events

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/turbolytics/patcher/internal/config"
)

// New returns the publisher selected by cfg.Type.
func New(cfg config.Events, logger *zap.Logger) (Publisher, error) {
	switch cfg.Type {
	case "", "none":
		return Nop{}, nil
	case "stdout":
		return NewStdout(os.Stdout), nil
	case "kafka":
		k, err := NewKafka(cfg.Kafka, logger)
		if err != nil {
			return nil, err
		}
		return k, nil
	default:
		return nil, fmt.Errorf("unknown events type: %q", cfg.Type)
	}
}
