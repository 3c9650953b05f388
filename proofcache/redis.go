// Copyright 2026 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package proofcache

import (
	"context"
	"fmt"
	"time"

	"github.com/canopyledger/canopy/errors"
	"github.com/go-redis/redis"
)

// RedisClient is the subset of the go-redis client API Redis uses. It is
// satisfied by *redis.Client, *redis.ClusterClient and *redis.Ring.
type RedisClient interface {
	Set(key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Eval(script string, keys []string, args ...interface{}) *redis.Cmd
}

// takeScript reads and deletes a key in one step so that two coordinators
// never both take the same proof.
const takeScript = `local v = redis.call("get", KEYS[1])
if v then redis.call("del", KEYS[1]) end
return v`

// Redis is a Cache shared through a Redis database. Entries expire after
// the configured TTL; the cache itself has no capacity bound.
type Redis struct {
	c      RedisClient
	prefix string
	ttl    time.Duration
}

// NewRedis returns a cache storing entries under keys starting with prefix.
// A zero ttl keeps entries until taken.
func NewRedis(client RedisClient, prefix string, ttl time.Duration) *Redis {
	return &Redis{c: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(k Key) string {
	// The braces make Redis Cluster slot every entry of one prefix together.
	return fmt.Sprintf("{%s}.proof.%s.%s", r.prefix, k.OldRoot, k.NewRoot)
}

// Put implements Cache.
func (r *Redis) Put(ctx context.Context, e *Entry) error {
	client := withClientContext(ctx, r.c)
	if err := client.Set(r.key(e.Key()), encode(e), r.ttl).Err(); err != nil {
		return errors.Errorf(errors.Unavailable, "proofcache: set %s: %v", e.Key(), err)
	}
	return nil
}

// Take implements Cache.
func (r *Redis) Take(ctx context.Context, k Key) (*Entry, error) {
	client := withClientContext(ctx, r.c)
	v, err := client.Eval(takeScript, []string{r.key(k)}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Errorf(errors.Unavailable, "proofcache: take %s: %v", k, err)
	}
	s, ok := v.(string)
	if !ok {
		return nil, errors.Errorf(errors.DataLoss, "proofcache: take %s: value of type %T", k, v)
	}
	return decode([]byte(s))
}

// Each go-redis client type has a WithContext method returning its own
// concrete type, so it cannot be part of RedisClient.
func withClientContext(ctx context.Context, client RedisClient) RedisClient {
	type withContextable interface {
		WithContext(context.Context) RedisClient
	}
	switch c := client.(type) {
	case *redis.Client:
		return c.WithContext(ctx)
	case *redis.ClusterClient:
		return c.WithContext(ctx)
	case *redis.Ring:
		return c.WithContext(ctx)
	case withContextable:
		return c.WithContext(ctx)
	}
	return client
}
