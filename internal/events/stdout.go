package events

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
)

// Stdout writes each event as a line of JSON.
type Stdout struct {
	mu  sync.Mutex
	enc *json.Encoder

	statsTracker
}

func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{enc: json.NewEncoder(w)}
}

func (s *Stdout) Publish(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(event); err != nil {
		s.recordError(err)
		return err
	}
	s.recordWrite()
	return nil
}

func (s *Stdout) Close(ctx context.Context) error {
	return nil
}
