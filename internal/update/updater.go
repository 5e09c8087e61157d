package update

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/turbolytics/patcher/internal/config"
	"github.com/turbolytics/patcher/internal/events"
	"github.com/turbolytics/patcher/pkg/apperr"
	"github.com/turbolytics/patcher/pkg/setclause"
)

var (
	ErrUnknownResource = errors.New("unknown resource")
	ErrNoRow           = errors.New("no row")
)

// Querier is satisfied by *pgx.Conn, *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Option func(*Updater)

func WithLogger(logger *zap.Logger) Option {
	return func(u *Updater) {
		u.logger = logger
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(u *Updater) {
		u.publisher = p
	}
}

func WithResources(resources ...config.Resource) Option {
	return func(u *Updater) {
		for _, r := range resources {
			u.resources[r.Name] = r
		}
	}
}

// Updater applies partial updates to configured resources.
type Updater struct {
	querier   Querier
	logger    *zap.Logger
	publisher events.Publisher
	resources map[string]config.Resource
}

func New(q Querier, opts ...Option) *Updater {
	u := &Updater{
		querier:   q,
		logger:    zap.NewNop(),
		publisher: events.Nop{},
		resources: make(map[string]config.Resource),
	}

	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *Updater) Resource(name string) (config.Resource, error) {
	r, ok := u.resources[name]
	if !ok {
		return config.Resource{}, apperr.NotFound(fmt.Errorf("%w: %s", ErrUnknownResource, name))
	}
	return r, nil
}

// Render returns the statement Update would execute, without executing it.
func (u *Updater) Render(resource string, key any, fields setclause.Fields) (string, []any, error) {
	r, err := u.Resource(resource)
	if err != nil {
		return "", nil, err
	}
	return Render(r, key, fields)
}

// Update sets fields on the row of resource identified by key and returns the
// row's RETURNING columns.
func (u *Updater) Update(ctx context.Context, resource string, key any, fields setclause.Fields) (map[string]any, error) {
	r, err := u.Resource(resource)
	if err != nil {
		return nil, err
	}

	query, args, err := Render(r, key, fields)
	if err != nil {
		return nil, err
	}

	u.logger.Debug("executing update",
		zap.String("resource", resource),
		zap.String("query", query),
		zap.Int("args", len(args)))

	rows, err := u.querier.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("updating %s: %w", resource, err))
	}

	row, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(fmt.Errorf("%w: %s %v", ErrNoRow, resource, key))
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("updating %s: %w", resource, err))
	}

	u.logger.Info("updated",
		zap.String("resource", resource),
		zap.Any("key", key),
		zap.Strings("fields", fields.Names()))

	// The row is already committed; a failed publish is logged, not returned.
	event := events.NewUpdate(resource, r.Table, fields, row)
	if err := u.publisher.Publish(ctx, event); err != nil {
		u.logger.Error("publishing change event",
			zap.String("event_id", event.ID),
			zap.Error(err))
	}

	return row, nil
}
