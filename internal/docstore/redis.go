package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/booking-redis/internal/config"
	"github.com/booking-redis/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on Redis. Documents are hashes, collection
// membership is tracked in sets, and RunTransaction maps onto WATCH/MULTI:
// every document read inside a transaction is watched, so a conflicting
// concurrent write makes EXEC fail and the runner retries.
type RedisStore struct {
	client     *redis.Client
	logger     *slog.Logger
	maxRetries int
	now        func() time.Time
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg *config.RedisConfig, logger *slog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	maxRetries := cfg.TxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}

	return &RedisStore{
		client:     client,
		logger:     logger,
		maxRetries: maxRetries,
		now:        time.Now,
	}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) Get(ctx context.Context, p Path) (Snapshot, error) {
	fields, err := s.client.HGetAll(ctx, p.Key()).Result()
	if err != nil {
		return Snapshot{}, &domain.PersistenceError{Op: "get " + p.Key(), Err: err}
	}
	if len(fields) == 0 {
		return Snapshot{Path: p, Exists: false}, nil
	}
	return Snapshot{Path: p, Exists: true, Fields: fields}, nil
}

func (s *RedisStore) Set(ctx context.Context, p Path, fields map[string]string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.applySet(ctx, pipe, p, fields)
		return nil
	})
	if err != nil {
		return &domain.PersistenceError{Op: "set " + p.Key(), Err: err}
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, p Path, fields map[string]string) error {
	n, err := s.client.HLen(ctx, p.Key()).Result()
	if err != nil {
		return &domain.PersistenceError{Op: "update " + p.Key(), Err: err}
	}
	if n == 0 {
		return &domain.NotFoundError{Kind: string(p.Kind())}
	}
	if err := s.client.HSet(ctx, p.Key(), s.stamp(fields)).Err(); err != nil {
		return &domain.PersistenceError{Op: "update " + p.Key(), Err: err}
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, p Path) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, p.Key())
		pipe.SRem(ctx, p.IndexKey(), p.ID())
		return nil
	})
	if err != nil {
		return &domain.PersistenceError{Op: "delete " + p.Key(), Err: err}
	}
	return nil
}

func (s *RedisStore) Increment(ctx context.Context, p Path, field string, delta int64) error {
	if err := s.client.HIncrBy(ctx, p.Key(), field, delta).Err(); err != nil {
		return &domain.PersistenceError{Op: "increment " + p.Key(), Err: err}
	}
	return nil
}

func (s *RedisStore) Query(ctx context.Context, collection Path, preds ...Predicate) ([]Snapshot, error) {
	ids, err := s.client.SMembers(ctx, collection.IndexKey()).Result()
	if err != nil {
		return nil, &domain.PersistenceError{Op: "query " + collection.IndexKey(), Err: err}
	}

	pipe := s.client.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(ids))
	paths := make(map[string]Path, len(ids))
	for _, id := range ids {
		item := collection.Item(id)
		paths[id] = item
		cmds[id] = pipe.HGetAll(ctx, item.Key())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, &domain.PersistenceError{Op: "query " + collection.IndexKey(), Err: err}
	}

	var out []Snapshot
	for _, id := range ids {
		fields, err := cmds[id].Result()
		if err != nil || len(fields) == 0 {
			// Stale index entry, the document itself is gone.
			continue
		}
		if !matches(fields, preds) {
			continue
		}
		out = append(out, Snapshot{Path: paths[id], Exists: true, Fields: fields})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path.Key() < out[j].Path.Key() })
	return out, nil
}

func (s *RedisStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			tx := &redisTx{rtx: rtx, store: s}
			if err := fn(ctx, tx); err != nil {
				return err
			}
			_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				tx.apply(ctx, pipe)
				return nil
			})
			return err
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			s.logger.Debug("transaction conflict, retrying", "attempt", attempt+1)
			continue
		default:
			return wrapStoreErr("transaction", err)
		}
	}
	return &domain.PersistenceError{Op: "transaction", Err: errors.New("optimistic retry budget exhausted")}
}

func (s *RedisStore) stamp(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		if v == ServerTimestamp {
			v = FormatTime(s.now())
		}
		out[k] = v
	}
	return out
}

func (s *RedisStore) applySet(ctx context.Context, pipe redis.Pipeliner, p Path, fields map[string]string) {
	pipe.Del(ctx, p.Key())
	if len(fields) == 0 {
		pipe.SRem(ctx, p.IndexKey(), p.ID())
		return
	}
	pipe.HSet(ctx, p.Key(), s.stamp(fields))
	pipe.SAdd(ctx, p.IndexKey(), p.ID())
}

type redisTx struct {
	rtx    *redis.Tx
	store  *RedisStore
	writes []writeOp
}

func (t *redisTx) Get(ctx context.Context, p Path) (Snapshot, error) {
	if err := t.rtx.Watch(ctx, p.Key()).Err(); err != nil {
		return Snapshot{}, &domain.PersistenceError{Op: "watch " + p.Key(), Err: err}
	}
	fields, err := t.rtx.HGetAll(ctx, p.Key()).Result()
	if err != nil {
		return Snapshot{}, &domain.PersistenceError{Op: "get " + p.Key(), Err: err}
	}
	if len(fields) == 0 {
		return Snapshot{Path: p, Exists: false}, nil
	}
	return Snapshot{Path: p, Exists: true, Fields: fields}, nil
}

func (t *redisTx) Set(p Path, fields map[string]string) {
	t.writes = append(t.writes, writeOp{op: opSet, path: p, fields: copyFields(fields)})
}

func (t *redisTx) Update(p Path, fields map[string]string) {
	t.writes = append(t.writes, writeOp{op: opUpdate, path: p, fields: copyFields(fields)})
}

func (t *redisTx) Increment(p Path, field string, delta int64) {
	t.writes = append(t.writes, writeOp{op: opIncrement, path: p, field: field, delta: delta})
}

func (t *redisTx) Delete(p Path) {
	t.writes = append(t.writes, writeOp{op: opDelete, path: p})
}

func (t *redisTx) apply(ctx context.Context, pipe redis.Pipeliner) {
	for _, w := range t.writes {
		switch w.op {
		case opSet:
			t.store.applySet(ctx, pipe, w.path, w.fields)
		case opUpdate:
			pipe.HSet(ctx, w.path.Key(), t.store.stamp(w.fields))
		case opDelete:
			pipe.Del(ctx, w.path.Key())
			pipe.SRem(ctx, w.path.IndexKey(), w.path.ID())
		case opIncrement:
			pipe.HIncrBy(ctx, w.path.Key(), w.field, w.delta)
		}
	}
}

func wrapStoreErr(op string, err error) error {
	if domain.IsValidation(err) || domain.IsNotFound(err) || domain.IsConflict(err) || domain.IsPersistence(err) {
		return err
	}
	return &domain.PersistenceError{Op: op, Err: err}
}
