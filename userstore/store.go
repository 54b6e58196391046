package userstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrUserNotFound is an exported constant or variable used by the authentication engine.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is an exported constant or variable used by the authentication engine.
	ErrEmailTaken = errors.New("email already registered")
	// ErrRedisUnavailable is an exported constant or variable used by the authentication engine.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// Record is the stored shape of a user account. PasswordHash holds a PHC
// string, never plaintext.
type Record struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	PasswordHash string         `json:"password_hash"`
	Name         string         `json:"name"`
	CreatedAt    int64          `json:"created_at"`
	LastLogin    int64          `json:"last_login,omitempty"`
	IsVerified   bool           `json:"is_verified"`
	IsActive     bool           `json:"is_active"`
	Preferences  map[string]any `json:"preferences"`
	Profile      map[string]any `json:"profile"`
}

// Store is a Redis-backed credential store. Records are JSON documents keyed
// by user ID with a SETNX-claimed email index for uniqueness.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a credential [Store] with the given key prefix.
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "u"
	}
	return &Store{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Store) key(userID string) string {
	return s.prefix + ":" + userID
}

func (s *Store) emailKey(email string) string {
	return s.prefix + "e:" + email
}

// Create persists a new user record. The email index is claimed with SETNX
// first, so of two concurrent creates for the same email exactly one wins;
// the other returns ErrEmailTaken. The caller supplies a normalized
// (lowercased, trimmed) email and a pre-assigned ID.
func (s *Store) Create(ctx context.Context, record *Record) error {
	claimed, err := s.redis.SetNX(ctx, s.emailKey(record.Email), record.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !claimed {
		return ErrEmailTaken
	}

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(record.ID), data, 0).Err(); err != nil {
		// Release the claim so the email is not locked by a half-created
		// account. Best effort: a failure here leaves the index entry for
		// operator cleanup.
		s.redis.Del(ctx, s.emailKey(record.Email))
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// GetByID retrieves a user record by ID.
func (s *Store) GetByID(ctx context.Context, userID string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	record := &Record{}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, err
	}
	return record, nil
}

// GetByEmail retrieves a user record through the email index. The email must
// already be normalized by the caller.
func (s *Store) GetByEmail(ctx context.Context, email string) (*Record, error) {
	userID, err := s.redis.Get(ctx, s.emailKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return s.GetByID(ctx, userID)
}

// UpdateProfile applies a partial profile update. Nil fields are left
// untouched; non-nil maps replace the stored payloads wholesale.
func (s *Store) UpdateProfile(ctx context.Context, userID string, name *string, preferences, profile map[string]any) (*Record, error) {
	return s.update(ctx, userID, func(record *Record) error {
		if name != nil {
			record.Name = *name
		}
		if preferences != nil {
			record.Preferences = preferences
		}
		if profile != nil {
			record.Profile = profile
		}
		return nil
	})
}

// RecordLogin stamps the user's last successful login time.
func (s *Store) RecordLogin(ctx context.Context, userID string, at time.Time) (*Record, error) {
	return s.update(ctx, userID, func(record *Record) error {
		record.LastLogin = at.Unix()
		return nil
	})
}

// UpdatePasswordHash replaces the stored password hash.
func (s *Store) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) (*Record, error) {
	return s.update(ctx, userID, func(record *Record) error {
		record.PasswordHash = passwordHash
		return nil
	})
}

// SetActive flips the account's active flag.
func (s *Store) SetActive(ctx context.Context, userID string, active bool) (*Record, error) {
	return s.update(ctx, userID, func(record *Record) error {
		record.IsActive = active
		return nil
	})
}

// SetVerified flips the account's email verification flag.
func (s *Store) SetVerified(ctx context.Context, userID string, verified bool) (*Record, error) {
	return s.update(ctx, userID, func(record *Record) error {
		record.IsVerified = verified
		return nil
	})
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

// update applies mutate under a WATCH/MULTI transaction so concurrent writers
// to the same record never lose updates.
func (s *Store) update(ctx context.Context, userID string, mutate func(*Record) error) (*Record, error) {
	const maxRetries = 4
	key := s.key(userID)

	for i := 0; i < maxRetries; i++ {
		var updated *Record

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record := &Record{}
			if err := json.Unmarshal(data, record); err != nil {
				return err
			}

			if err := mutate(record); err != nil {
				return err
			}

			encoded, err := json.Marshal(record)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, 0)
				return nil
			})
			if err != nil {
				return err
			}

			updated = record
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, ErrUserNotFound
			}
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}

		return updated, nil
	}

	return nil, fmt.Errorf("%w: update contention", ErrRedisUnavailable)
}
