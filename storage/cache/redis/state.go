package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/auth"
	"github.com/fatsal/lms/core/profile"
)

const keyPrefix = "lms:auth:"

// setIfNotCleared writes the profile unless the session carries the signed-out marker.
var setIfNotCleared = redis.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 1 then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
redis.call("SADD", KEYS[3], ARGV[3])
redis.call("PEXPIRE", KEYS[3], ARGV[2])
return 1
`)

type stateStore struct {
	client *redis.Client
	ttl    time.Duration // lifetime of a cached profile and of a signed-out marker
}

// NewClient connects to url and pings the server.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}
	client := redis.NewClient(opt)
	if err = client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

// NewStateStore returns an auth.StateStore shared by every API instance using client.
func NewStateStore(client *redis.Client, conf *core.Config) auth.StateStore {
	return &stateStore{client: client, ttl: conf.Session.RefreshTTL}
}

func profileKey(sessionID string) string { return keyPrefix + "session:" + sessionID + ":profile" }
func clearedKey(sessionID string) string { return keyPrefix + "session:" + sessionID + ":cleared" }
func userKey(userID string) string       { return keyPrefix + "user:" + userID + ":sessions" }

func (s *stateStore) GetProfile(ctx context.Context, sessionID string) (profile.Profile, bool, error) {
	data, err := s.client.Get(ctx, profileKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return profile.Profile{}, false, nil
		}
		return profile.Profile{}, false, errors.Wrap(err, "getting session profile")
	}

	var p profile.Profile
	if err = json.Unmarshal(data, &p); err != nil {
		return profile.Profile{}, false, errors.Wrap(err, "decoding session profile")
	}
	return p, true, nil
}

func (s *stateStore) SetProfile(ctx context.Context, sessionID string, p profile.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "encoding session profile")
	}
	keys := []string{profileKey(sessionID), clearedKey(sessionID), userKey(p.ID)}
	err = setIfNotCleared.Run(ctx, s.client, keys, data, s.ttl.Milliseconds(), sessionID).Err()
	return errors.Wrap(err, "setting session profile")
}

func (s *stateStore) Clear(ctx context.Context, sessionID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, clearedKey(sessionID), 1, s.ttl)
		pipe.Del(ctx, profileKey(sessionID))
		return nil
	})
	return errors.Wrap(err, "clearing session")
}

func (s *stateStore) ClearUser(ctx context.Context, userID string) error {
	sessionIDs, err := s.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return errors.Wrap(err, "listing user sessions")
	}
	keys := make([]string, 0, len(sessionIDs)+1)
	for _, sid := range sessionIDs {
		keys = append(keys, profileKey(sid))
	}
	keys = append(keys, userKey(userID))
	return errors.Wrap(s.client.Del(ctx, keys...).Err(), "clearing user sessions")
}

func (s *stateStore) IsCleared(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, clearedKey(sessionID)).Result()
	if err != nil {
		return false, errors.Wrap(err, "checking session")
	}
	return n == 1, nil
}
