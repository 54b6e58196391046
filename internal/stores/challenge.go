package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const challengeRecordVersionV1 = 1

var (
	ErrChallengeNotFound         = errors.New("challenge record not found")
	ErrChallengeRedisUnavailable = errors.New("challenge redis unavailable")
)

// ChallengeRecord is a short-lived, single-use record backing a password
// reset or email verification token.
type ChallengeRecord struct {
	UserID    string
	CreatedAt int64
	ExpiresAt int64
}

// ChallengeStore persists challenge records in Redis keyed by the SHA-256
// digest of the issued token. The plaintext token never touches Redis, so a
// store compromise does not leak redeemable tokens.
type ChallengeStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewChallengeStore creates a [ChallengeStore] with the given key prefix.
// Distinct flows (reset, verification) must use distinct prefixes so a token
// issued for one flow can never redeem the other.
func NewChallengeStore(redisClient redis.UniversalClient, prefix string) *ChallengeStore {
	return &ChallengeStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *ChallengeStore) key(tokenDigest string) string {
	return s.prefix + ":" + tokenDigest
}

func (s *ChallengeStore) Save(ctx context.Context, tokenDigest string, record *ChallengeRecord) error {
	encoded, err := encodeChallengeRecord(record)
	if err != nil {
		return err
	}

	ttl := time.Until(time.Unix(record.ExpiresAt, 0))
	if ttl <= 0 {
		return errors.New("challenge already expired")
	}

	if err := s.redis.Set(ctx, s.key(tokenDigest), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
	}

	return nil
}

// Consume atomically redeems a challenge: the record is returned to exactly
// one caller and deleted in the same transaction. Concurrent redeemers of
// the same token race on WATCH; the losers observe ErrChallengeNotFound.
func (s *ChallengeStore) Consume(ctx context.Context, tokenDigest string) (*ChallengeRecord, error) {
	const maxRetries = 4
	key := s.key(tokenDigest)

	for i := 0; i < maxRetries; i++ {
		var matched *ChallengeRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeChallengeRecord(data)
			if err != nil {
				return err
			}

			if time.Now().Unix() >= record.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrChallengeNotFound
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}

			matched = record
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil), errors.Is(err, ErrChallengeNotFound):
				return nil, ErrChallengeNotFound
			default:
				return nil, fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
			}
		}

		return matched, nil
	}

	return nil, ErrChallengeNotFound
}

// Get returns a challenge without consuming it. Used by introspection and
// tests, never by redemption paths.
func (s *ChallengeStore) Get(ctx context.Context, tokenDigest string) (*ChallengeRecord, error) {
	data, err := s.redis.Get(ctx, s.key(tokenDigest)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
	}

	record, err := decodeChallengeRecord(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() >= record.ExpiresAt {
		return nil, ErrChallengeNotFound
	}

	return record, nil
}

// Delete removes a challenge without returning it. Deleting an absent
// record is not an error.
func (s *ChallengeStore) Delete(ctx context.Context, tokenDigest string) error {
	if err := s.redis.Del(ctx, s.key(tokenDigest)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
	}
	return nil
}

// SweepExpired removes challenge records whose embedded expiry passed before
// their Redis TTL fired. Admin/sweeper-only O(n) operation.
func (s *ChallengeStore) SweepExpired(ctx context.Context) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	nowUnix := time.Now().Unix()

	for {
		keys, next, err := s.redis.Scan(ctx, cursor, s.prefix+":*", 1000).Result()
		if err != nil {
			return removed, fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
		}

		for _, key := range keys {
			data, err := s.redis.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				return removed, fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
			}

			record, err := decodeChallengeRecord(data)
			if err != nil || nowUnix >= record.ExpiresAt {
				if delErr := s.redis.Del(ctx, key).Err(); delErr != nil {
					return removed, fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, delErr)
				}
				removed++
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return removed, nil
}

func encodeChallengeRecord(record *ChallengeRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(challengeRecordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.UserID) > 65535 {
		return nil, errors.New("challenge record user id too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)

	return buf.Bytes(), nil
}

func decodeChallengeRecord(data []byte) (*ChallengeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != challengeRecordVersionV1 {
		return nil, errors.New("invalid challenge record version")
	}

	record := &ChallengeRecord{}

	if err := binary.Read(reader, binary.BigEndian, &record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var userIDLen uint16
	if err := binary.Read(reader, binary.BigEndian, &userIDLen); err != nil {
		return nil, err
	}

	userID := make([]byte, userIDLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return nil, err
	}
	record.UserID = string(userID)

	return record, nil
}
