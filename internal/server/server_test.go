package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turbolytics/patcher/internal/config"
	"github.com/turbolytics/patcher/internal/events"
	"github.com/turbolytics/patcher/internal/update"
	"github.com/turbolytics/patcher/pkg/apperr"
	"github.com/turbolytics/patcher/pkg/setclause"
)

type fakeUpdater struct {
	*update.Updater

	resource string
	key      any
	fields   setclause.Fields

	row map[string]any
	err error
}

func (f *fakeUpdater) Update(ctx context.Context, resource string, key any, fields setclause.Fields) (map[string]any, error) {
	f.resource, f.key, f.fields = resource, key, fields
	if _, _, err := f.Updater.Render(resource, key, fields); err != nil {
		return nil, err
	}
	return f.row, f.err
}

func newFake() *fakeUpdater {
	return &fakeUpdater{
		Updater: update.New(nil, update.WithResources(config.Resource{
			Name:    "users",
			Table:   "users",
			Key:     "username",
			Columns: map[string]string{"firstName": "first_name"},
			Fields:  []string{"email"},
		})),
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestHealth(t *testing.T) {
	t.Run("without publisher stats", func(t *testing.T) {
		s := New(newFake(), nil)
		rec, body := do(t, s.Routes(), http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, map[string]any{"status": "ok"}, body)
	})

	t.Run("reports publisher stats", func(t *testing.T) {
		publisher := events.NewStdout(&bytes.Buffer{})
		require.NoError(t, publisher.Publish(context.Background(), events.NewUpdate("users", "users", nil, nil)))

		s := New(newFake(), nil, WithStats(publisher))
		rec, body := do(t, s.Routes(), http.MethodGet, "/health", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", body["status"])
		stats := body["events"].(map[string]any)
		assert.Equal(t, float64(1), stats["total_events"])
		assert.Equal(t, float64(0), stats["write_error_count"])
	})
}

func TestPatch(t *testing.T) {
	t.Run("updates in body order", func(t *testing.T) {
		f := newFake()
		f.row = map[string]any{"username": "aliya", "first_name": "Aliya"}
		s := New(f, nil)

		rec, body := do(t, s.Routes(), http.MethodPatch, "/api/v1/users/aliya",
			`{"email": "a@example.com", "firstName": "Aliya"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Equal(t, "users", f.resource)
		assert.Equal(t, "aliya", f.key)
		assert.Equal(t, []string{"email", "firstName"}, f.fields.Names())
		assert.Equal(t, map[string]any{"username": "aliya", "first_name": "Aliya"}, body["users"])
	})

	for name, payload := range map[string]string{
		"empty object": `{}`,
		"empty body":   ``,
	} {
		t.Run(name+" is a bad request", func(t *testing.T) {
			s := New(newFake(), nil)
			rec, body := do(t, s.Routes(), http.MethodPatch, "/api/v1/users/aliya", payload)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, map[string]any{"message": "No data", "status": float64(400)}, body["error"])
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		s := New(newFake(), nil)
		rec, _ := do(t, s.Routes(), http.MethodPatch, "/api/v1/users/aliya", `{"email":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("trailing data", func(t *testing.T) {
		f := newFake()
		s := New(f, nil)
		rec, body := do(t, s.Routes(), http.MethodPatch, "/api/v1/users/aliya",
			`{"email": "a@example.com"} {"firstName": "x"`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, body["error"].(map[string]any)["message"], ErrTrailingData.Error())
		assert.Empty(t, f.resource, "update must not run")
	})

	t.Run("trailing whitespace", func(t *testing.T) {
		s := New(newFake(), nil)
		rec, _ := do(t, s.Routes(), http.MethodPatch, "/api/v1/users/aliya", "{\"email\": \"x\"}\n\n")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("array body", func(t *testing.T) {
		s := New(newFake(), nil)
		rec, _ := do(t, s.Routes(), http.MethodPatch, "/api/v1/users/aliya", `["email"]`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		s := New(newFake(), nil)
		rec, body := do(t, s.Routes(), http.MethodPatch, "/api/v1/users/aliya", `{"isAdmin": true}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "unknown field: isAdmin", body["error"].(map[string]any)["message"])
	})

	t.Run("unknown resource", func(t *testing.T) {
		s := New(newFake(), nil)
		rec, _ := do(t, s.Routes(), http.MethodPatch, "/api/v1/jobs/1", `{"title": "x"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("internal errors are not leaked", func(t *testing.T) {
		f := newFake()
		f.err = apperr.Internal(errors.New("password authentication failed"))
		s := New(f, nil)

		rec, body := do(t, s.Routes(), http.MethodPatch, "/api/v1/users/aliya", `{"email": "x"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Internal Server Error", body["error"].(map[string]any)["message"])
	})
}

func TestRender(t *testing.T) {
	s := New(newFake(), nil)

	t.Run("renders without executing", func(t *testing.T) {
		rec, body := do(t, s.Routes(), http.MethodPost, "/api/v1/render/users",
			`{"key": "aliya", "fields": {"firstName": "Aliya", "email": "a@example.com"}}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t,
			`UPDATE "users" SET "first_name"=$1, "email"=$2 WHERE "username" = $3 RETURNING *`,
			body["sql"],
		)
		assert.Equal(t, []any{"Aliya", "a@example.com", "aliya"}, body["values"])
	})

	t.Run("no fields", func(t *testing.T) {
		rec, _ := do(t, s.Routes(), http.MethodPost, "/api/v1/render/users", `{"key": "aliya"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestStart(t *testing.T) {
	t.Run("stops on context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() {
			errCh <- New(newFake(), nil).Start(ctx, "127.0.0.1:0")
		}()

		cancel()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Fatal("server did not stop")
		}
	})

	t.Run("returns listen errors", func(t *testing.T) {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer l.Close()

		errCh := make(chan error, 1)
		go func() {
			errCh <- New(newFake(), nil).Start(context.Background(), l.Addr().String())
		}()

		select {
		case err := <-errCh:
			assert.Error(t, err)
		case <-time.After(10 * time.Second):
			t.Fatal("start did not return")
		}
	})
}
