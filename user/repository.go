package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/MrEthical07/goGuard/session"
	"github.com/redis/go-redis/v9"
)

// Record is the stored form of a user, keyed by the hashed user name.
type Record struct {
	Password        string                    `json:"password"`
	DisplayName     string                    `json:"display_name,omitempty"`
	Avatar          []byte                    `json:"avatar,omitempty"`
	TwoFactorSecret string                    `json:"twofa_token,omitempty"`
	Sessions        map[string]session.Record `json:"sessions,omitempty"`
}

func (r *Record) clone() *Record {
	c := *r
	c.Avatar = slices.Clone(r.Avatar)
	c.Sessions = maps.Clone(r.Sessions)
	return &c
}

// Repository stores user records under opaque keys. Get returns ErrNotFound
// for unknown keys.
type Repository interface {
	Get(ctx context.Context, key string) (*Record, error)
	Put(ctx context.Context, key string, rec *Record) error
	Keys(ctx context.Context) ([]string, error)
}

// DefaultRedisHash is the hash holding all user records.
const DefaultRedisHash = "users"

// RedisRepository keeps every record as one JSON field of a Redis hash.
type RedisRepository struct {
	redis redis.UniversalClient
	hash  string
}

// NewRedisRepository returns a repository over hash (DefaultRedisHash when empty).
func NewRedisRepository(redisClient redis.UniversalClient, hash string) *RedisRepository {
	if hash == "" {
		hash = DefaultRedisHash
	}
	return &RedisRepository{redis: redisClient, hash: hash}
}

// Get implements Repository.
func (r *RedisRepository) Get(ctx context.Context, key string) (*Record, error) {
	raw, err := r.redis.HGet(ctx, r.hash, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrBackend, key, err)
	}
	return &rec, nil
}

// Put implements Repository.
func (r *RedisRepository) Put(ctx context.Context, key string, rec *Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := r.redis.HSet(ctx, r.hash, key, raw).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

// Keys implements Repository.
func (r *RedisRepository) Keys(ctx context.Context) ([]string, error) {
	keys, err := r.redis.HKeys(ctx, r.hash).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return keys, nil
}

// FileRepository keeps all records in one JSON file. The file is read once
// and rewritten atomically on every Put.
type FileRepository struct {
	path string

	mu     sync.Mutex
	loaded bool
	users  map[string]*Record
}

// NewFileRepository returns a repository backed by path. A missing file is an
// empty repository.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

func (r *FileRepository) load() error {
	if r.loaded {
		return nil
	}
	users := map[string]*Record{}
	raw, err := os.ReadFile(r.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("%w: %v", ErrBackend, err)
	default:
		if err := json.Unmarshal(raw, &users); err != nil {
			return fmt.Errorf("%w: decode %s: %v", ErrBackend, r.path, err)
		}
	}
	r.users = users
	r.loaded = true
	return nil
}

// Get implements Repository.
func (r *FileRepository) Get(_ context.Context, key string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(); err != nil {
		return nil, err
	}
	rec, ok := r.users[key]
	if !ok || rec == nil {
		return nil, ErrNotFound
	}
	return rec.clone(), nil
}

// Put implements Repository.
func (r *FileRepository) Put(_ context.Context, key string, rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(); err != nil {
		return err
	}
	prev, had := r.users[key]
	r.users[key] = rec.clone()
	if err := r.write(); err != nil {
		if had {
			r.users[key] = prev
		} else {
			delete(r.users, key)
		}
		return err
	}
	return nil
}

// Keys implements Repository.
func (r *FileRepository) Keys(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(); err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(r.users)), nil
}

func (r *FileRepository) write() error {
	raw, err := json.Marshal(r.users)
	if err != nil {
		return err
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	tmp, err := os.CreateTemp(dir, ".users-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}
