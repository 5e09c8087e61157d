package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/turbolytics/patcher/pkg/setclause"
	"gopkg.in/yaml.v3"
)

var (
	ErrNoResources        = errors.New("no resources configured")
	ErrDuplicateResource  = errors.New("duplicate resource")
	ErrResourceIncomplete = errors.New("resource requires name, table and key")
)

type Logger struct {
	Level string `yaml:"level"`
}

type Global struct {
	Logger Logger `yaml:"logger"`
}

type Database struct {
	ConnectionString string `yaml:"connection_string"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

type Kafka struct {
	Brokers string            `yaml:"brokers"`
	Topic   string            `yaml:"topic"`
	Config  map[string]string `yaml:"config"`
}

type Events struct {
	// Type is one of kafka, stdout or none.
	Type  string `yaml:"type"`
	Kafka Kafka  `yaml:"kafka"`
}

// Resource describes an updatable table.
type Resource struct {
	Name      string   `yaml:"name"`
	Table     string   `yaml:"table"`
	Key       string   `yaml:"key"`
	Returning []string `yaml:"returning,omitempty"`

	// Columns maps application field names to column names.
	Columns map[string]string `yaml:"columns,omitempty"`
	// Fields lists field names that are their own column name.
	Fields []string `yaml:"fields,omitempty"`

	// AllowUnknown accepts any field name. Only enable this when field names
	// never come from end users.
	AllowUnknown bool `yaml:"allow_unknown,omitempty"`
}

func (r Resource) Translation() setclause.Translation {
	return setclause.Translation(r.Columns)
}

// Allows reports whether field may be updated through this resource.
func (r Resource) Allows(field string) bool {
	if r.AllowUnknown {
		return true
	}
	if _, ok := r.Columns[field]; ok {
		return true
	}
	for _, f := range r.Fields {
		if f == field {
			return true
		}
	}
	return false
}

type Patcher struct {
	Global    Global     `yaml:"global"`
	Database  Database   `yaml:"database"`
	Server    Server     `yaml:"server"`
	Events    Events     `yaml:"events"`
	Resources []Resource `yaml:"resources"`
}

func (p *Patcher) Resource(name string) (Resource, bool) {
	for _, r := range p.Resources {
		if r.Name == name {
			return r, true
		}
	}
	return Resource{}, false
}

func (p *Patcher) Validate() error {
	if len(p.Resources) == 0 {
		return ErrNoResources
	}

	seen := make(map[string]struct{}, len(p.Resources))
	for i, r := range p.Resources {
		if r.Name == "" || r.Table == "" || r.Key == "" {
			return fmt.Errorf("resources[%d]: %w", i, ErrResourceIncomplete)
		}
		if _, ok := seen[r.Name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateResource, r.Name)
		}
		seen[r.Name] = struct{}{}
	}

	switch p.Events.Type {
	case "", "none", "stdout":
	case "kafka":
		if p.Events.Kafka.Topic == "" {
			return fmt.Errorf("events.kafka.topic is required")
		}
	default:
		return fmt.Errorf("unknown events type: %q", p.Events.Type)
	}

	return nil
}

func NewPatcherFromFile(fpath string) (*Patcher, error) {
	bs, err := os.ReadFile(fpath)
	if err != nil {
		return nil, err
	}

	return NewPatcher(bs)
}

func NewPatcher(bs []byte) (*Patcher, error) {
	var patcher Patcher
	if err := yaml.Unmarshal(bs, &patcher); err != nil {
		return nil, err
	}

	if err := patcher.Validate(); err != nil {
		return nil, err
	}

	return &patcher, nil
}
