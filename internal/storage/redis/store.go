// Package redis keeps the latest render snapshot of each run in Redis so
// dashboard replicas can share one view.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/AaronLay10/FNOLSimulator/internal/presentation"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot is the stored view of a run.
type Snapshot struct {
	RunID   string              `json:"run_id"`
	CaseID  string              `json:"case_id,omitempty"`
	SavedAt time.Time           `json:"saved_at"`
	Status  presentation.Status `json:"status"`
	Frame   presentation.Frame  `json:"frame"`
}

// Store implements snapshot persistence on Redis.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for snapshots.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	return NewFromClient(backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	}), opts...)
}

// NewFromClient creates a store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: "fnolsim:snapshot:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(runID string) string {
	return s.prefix + runID
}

func (s *Store) latestKey() string {
	return s.prefix + "latest"
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Save stores a snapshot and marks it as the latest.
func (s *Store) Save(ctx context.Context, snap *Snapshot) error {
	if snap.RunID == "" {
		return fmt.Errorf("snapshot without run id")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(snap.RunID), data, s.ttl)
	pipe.Set(ctx, s.latestKey(), snap.RunID, s.ttl)

	score := float64(snap.SavedAt.Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: snap.RunID})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load returns the snapshot of a run.
func (s *Store) Load(ctx context.Context, runID string) (*Snapshot, error) {
	val, err := s.client.Get(ctx, s.key(runID)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Latest returns the most recently saved snapshot.
func (s *Store) Latest(ctx context.Context) (*Snapshot, error) {
	runID, err := s.client.Get(ctx, s.latestKey()).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	return s.Load(ctx, runID)
}

// List returns the run ids with live snapshots, pruning expired ones.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired snapshots: %w", err)
	}
	runs, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return runs, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
