package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/turbolytics/patcher/pkg/setclause"
)

// newLogger returns a development logger unless a level is configured.
func newLogger(level string) (*zap.Logger, error) {
	if level == "" {
		return zap.NewDevelopment()
	}

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

// readFields reads fields from a JSON string or from a YAML/JSON file.
func readFields(raw, path string) (setclause.Fields, error) {
	switch {
	case raw != "" && path != "":
		return nil, errors.New("--fields and --fields-file are mutually exclusive")
	case raw != "":
		var f setclause.Fields
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			return nil, fmt.Errorf("invalid --fields: %w", err)
		}
		return f, nil
	case path != "":
		bs, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var f setclause.Fields
		if err := yaml.Unmarshal(bs, &f); err != nil {
			return nil, fmt.Errorf("invalid fields file %s: %w", path, err)
		}
		return f, nil
	default:
		return nil, nil
	}
}
