package store

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/roach88/registrar/internal/model"
)

const (
	keyMode  = "mode"
	keyState = "state"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("store: record not found")
	// ErrCorrupt is returned when a record exists but cannot be decoded.
	ErrCorrupt = errors.New("store: record corrupt")
)

// Store is the durable state store.
type Store interface {
	// LoadMode returns the stored mode or ErrNotFound.
	LoadMode(ctx context.Context) (model.Mode, error)
	// SaveMode replaces the stored mode. A nil mode deletes it.
	SaveMode(ctx context.Context, mode *model.Mode) error
	// Load returns the stored state, ErrNotFound or ErrCorrupt.
	Load(ctx context.Context) (model.PersistedState, error)
	// Update applies mutate to the stored state (a blank state when none
	// exists) inside one transaction and returns the written state.
	// mutate may run more than once if the backend retries a conflict.
	Update(ctx context.Context, mutate func(*model.PersistedState) error) (model.PersistedState, error)
	// Clear deletes the state record. The mode is untouched.
	Clear(ctx context.Context) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend     string
	Path        string
	RedisAddr   string
	RedisPrefix string
}

// New opens the backend named by opts.Backend.
func New(opts Options) (Store, error) {
	switch opts.Backend {
	case "", "sqlite":
		if opts.Path == "" {
			return nil, fmt.Errorf("sqlite store requires a path")
		}
		return OpenSQLite(opts.Path)
	case "redis":
		if opts.RedisAddr == "" {
			return nil, fmt.Errorf("redis store requires an address")
		}
		client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		var ropts []RedisOption
		if opts.RedisPrefix != "" {
			ropts = append(ropts, WithPrefix(opts.RedisPrefix))
		}
		return NewRedisStore(client, ropts...), nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}

func encodeMode(mode model.Mode) ([]byte, error) {
	data, err := json.Marshal(mode)
	if err != nil {
		return nil, fmt.Errorf("marshal mode: %w", err)
	}
	return data, nil
}

func decodeMode(data []byte) (model.Mode, error) {
	var mode model.Mode
	if err := json.Unmarshal(data, &mode); err != nil {
		return model.Mode{}, fmt.Errorf("%w: mode: %v", ErrCorrupt, err)
	}
	if err := mode.Validate(); err != nil {
		return model.Mode{}, fmt.Errorf("%w: mode: %v", ErrCorrupt, err)
	}
	return mode, nil
}

func encodeState(state model.PersistedState) ([]byte, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return data, nil
}

func decodeState(data []byte) (model.PersistedState, error) {
	var state model.PersistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return model.PersistedState{}, fmt.Errorf("%w: state: %v", ErrCorrupt, err)
	}
	if state.Version < 1 || state.Version > model.PersistedStateVersion {
		return model.PersistedState{}, fmt.Errorf("%w: state: unsupported version %d", ErrCorrupt, state.Version)
	}
	return state, nil
}

// applyUpdate runs mutate against current (nil when absent) and returns
// the encoded result, stamped with a fresh revision.
func applyUpdate(current []byte, mutate func(*model.PersistedState) error) (model.PersistedState, []byte, error) {
	state := model.NewPersistedState()
	if current != nil {
		var err error
		if state, err = decodeState(current); err != nil {
			return model.PersistedState{}, nil, err
		}
	}
	if err := mutate(&state); err != nil {
		return model.PersistedState{}, nil, err
	}
	state.Version = model.PersistedStateVersion
	state.Revision = nextRevision(time.Now())
	data, err := encodeState(state)
	if err != nil {
		return model.PersistedState{}, nil, err
	}
	return state, data, nil
}

var (
	revisionMu      sync.Mutex
	revisionEntropy = ulid.Monotonic(rand.Reader, 0)
)

// nextRevision returns a ULID strictly greater than any returned before
// within this process.
func nextRevision(now time.Time) string {
	revisionMu.Lock()
	defer revisionMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), revisionEntropy).String()
}
