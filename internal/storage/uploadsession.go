package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = errors.New("upload session not found")

// UploadSession is the transient state of a chunked upload. It lives in an
// external store, not process memory, so uploads survive restarts and work
// across instances.
type UploadSession struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	ContentType string       `json:"content_type"`
	TotalChunks int          `json:"total_chunks"`
	Received    map[int]bool `json:"received"`
	UploadedBy  uint         `json:"uploaded_by"`
	CreatedAt   time.Time    `json:"created_at"`
}

func (s *UploadSession) Complete() bool {
	return len(s.Received) == s.TotalChunks
}

type UploadSessionStore interface {
	Put(ctx context.Context, s *UploadSession) error
	Get(ctx context.Context, id string) (*UploadSession, error)
	Delete(ctx context.Context, id string) error
}

const sessionTTL = 24 * time.Hour

type RedisSessionStore struct {
	Client *redis.Client
}

func NewRedisSessionStore(address string) *RedisSessionStore {
	return &RedisSessionStore{
		Client: redis.NewClient(&redis.Options{Addr: address}),
	}
}

func sessionKey(id string) string { return "upload:" + id }

func (r *RedisSessionStore) Put(ctx context.Context, s *UploadSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := r.Client.Set(ctx, sessionKey(s.ID), data, sessionTTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisSessionStore) Get(ctx context.Context, id string) (*UploadSession, error) {
	data, err := r.Client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var s UploadSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *RedisSessionStore) Delete(ctx context.Context, id string) error {
	return r.Client.Del(ctx, sessionKey(id)).Err()
}
