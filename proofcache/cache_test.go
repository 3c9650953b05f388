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
	"flag"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/canopyledger/canopy/batched"
	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/merkle"
	"github.com/canopyledger/canopy/queue"
	"github.com/canopyledger/canopy/util/clock"
	"github.com/go-redis/redis"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var redisAddr = flag.String("redis_addr", "", "Redis server to run the Redis cache tests against; they use an in-process fake if unset")

func entry(i byte) *Entry {
	return &Entry{
		Instruction: batched.Instruction{
			Queue:      queue.OutputQueue,
			OldRoot:    merkle.Hash{i},
			NewRoot:    merkle.Hash{i + 1},
			HashChain:  merkle.Hash{0xcc, i},
			StartIndex: uint64(i) * 10,
			Proof:      []byte{i, i, i},
		},
		ProofMillis: int64(i) * 100,
	}
}

// runCacheTests checks the behavior every Cache shares.
func runCacheTests(t *testing.T, newCache func(t *testing.T) Cache) {
	ctx := context.Background()
	t.Run("TakeMissing", func(t *testing.T) {
		got, err := newCache(t).Take(ctx, entry(1).Key())
		require.NoError(t, err)
		require.Nil(t, got)
	})
	t.Run("PutTake", func(t *testing.T) {
		c := newCache(t)
		for i := byte(1); i <= 3; i++ {
			require.NoError(t, c.Put(ctx, entry(i)))
		}
		got, err := c.Take(ctx, entry(2).Key())
		require.NoError(t, err)
		if diff := cmp.Diff(entry(2), got); diff != "" {
			t.Errorf("Take() diff (-want +got):\n%s", diff)
		}
		got, err = c.Take(ctx, entry(2).Key())
		require.NoError(t, err)
		require.Nil(t, got, "second Take() found the entry again")
	})
	t.Run("Replace", func(t *testing.T) {
		c := newCache(t)
		require.NoError(t, c.Put(ctx, entry(1)))
		e := entry(1)
		e.Instruction.Proof = []byte("newer")
		require.NoError(t, c.Put(ctx, e))
		got, err := c.Take(ctx, e.Key())
		require.NoError(t, err)
		require.Equal(t, []byte("newer"), got.Instruction.Proof)
	})
	t.Run("ConcurrentTake", func(t *testing.T) {
		c := newCache(t)
		require.NoError(t, c.Put(ctx, entry(7)))
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			hits int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, err := c.Take(ctx, entry(7).Key())
				if err == nil && got != nil {
					mu.Lock()
					hits++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		require.Equal(t, 1, hits)
	})
}

func TestMemory(t *testing.T) {
	runCacheTests(t, func(t *testing.T) Cache {
		m, err := NewMemory(8, 0, clock.System)
		require.NoError(t, err)
		return m
	})
}

func TestMemoryCapacity(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(2, 0, clock.System)
	require.NoError(t, err)
	require.NoError(t, m.Put(ctx, entry(1)))
	require.NoError(t, m.Put(ctx, entry(2)))
	err = m.Put(ctx, entry(3))
	require.ErrorIs(t, err, ErrCacheFull)
	require.True(t, errors.IsCapacity(err))
	// Replacing an existing key does not need room.
	require.NoError(t, m.Put(ctx, entry(2)))
	_, err = m.Take(ctx, entry(1).Key())
	require.NoError(t, err)
	require.NoError(t, m.Put(ctx, entry(3)))
	require.Equal(t, 2, m.Len())

	_, err = NewMemory(0, 0, clock.System)
	require.Error(t, err)
}

func TestMemoryTTL(t *testing.T) {
	ctx := context.Background()
	fake := clock.NewFake(time.Unix(100, 0))
	m, err := NewMemory(1, time.Minute, fake)
	require.NoError(t, err)
	require.NoError(t, m.Put(ctx, entry(1)))
	fake.Advance(59 * time.Second)
	require.Equal(t, 1, m.Len())
	fake.Advance(time.Second)
	require.Equal(t, 0, m.Len())
	// The expired entry no longer takes up room.
	require.NoError(t, m.Put(ctx, entry(2)))
	got, err := m.Take(ctx, entry(1).Key())
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestMemoryCopiesProof(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(1, 0, clock.System)
	require.NoError(t, err)
	e := entry(1)
	require.NoError(t, m.Put(ctx, e))
	e.Instruction.Proof[0] = 0xff
	got, err := m.Take(ctx, e.Key())
	require.NoError(t, err)
	require.Equal(t, []byte{1, 1, 1}, got.Instruction.Proof)
}

// fakeRedis implements the get-and-delete script and SET over a map.
type fakeRedis struct {
	mu   sync.Mutex
	kv   map[string]string
	ttls map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{kv: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeRedis) Set(key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := value.([]byte)
	if !ok {
		return redis.NewStatusResult("", errors.Errorf(errors.InvalidArgument, "value of type %T", value))
	}
	f.kv[key] = string(b)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Eval(script string, keys []string, _ ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if script != takeScript || len(keys) != 1 {
		return redis.NewCmdResult(nil, errors.New(errors.Unimplemented, "unexpected script"))
	}
	v, ok := f.kv[keys[0]]
	if !ok {
		return redis.NewCmdResult(nil, redis.Nil)
	}
	delete(f.kv, keys[0])
	return redis.NewCmdResult(v, nil)
}

func (f *fakeRedis) WithContext(context.Context) RedisClient { return f }

func TestRedis(t *testing.T) {
	runCacheTests(t, func(t *testing.T) Cache {
		if *redisAddr == "" {
			return NewRedis(newFakeRedis(), t.Name(), 0)
		}
		rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
		t.Cleanup(func() { rdb.Close() })
		return NewRedis(rdb, t.Name()+time.Now().String(), time.Minute)
	})
}

func TestRedisKeys(t *testing.T) {
	ctx := context.Background()
	f := newFakeRedis()
	r := NewRedis(f, "tree-1", 5*time.Minute)
	require.NoError(t, r.Put(ctx, entry(1)))
	for k, ttl := range f.ttls {
		require.True(t, strings.HasPrefix(k, "{tree-1}.proof.01"), "key %q", k)
		require.Equal(t, 5*time.Minute, ttl)
	}

	f.kv["{tree-1}.proof."+merkle.Hash{9}.String()+"."+merkle.Hash{10}.String()] = "junk"
	_, err := r.Take(ctx, Key{OldRoot: merkle.Hash{9}, NewRoot: merkle.Hash{10}})
	require.Equal(t, errors.DataLoss, errors.ErrorCode(err))
}
