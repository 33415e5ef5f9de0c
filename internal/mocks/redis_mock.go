package mocks

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MockRedisClient covers the key/value and sorted-set commands used by the
// invitation store. Expiry follows the wall clock like a real server.
type MockRedisClient struct {
	mu   sync.RWMutex
	data map[string]mockRedisValue
	sets map[string]map[string]float64

	SetError   error
	GetError   error
	DelError   error
	ZSetError  error
	PingError  error
	SetNXCalls int
}

type mockRedisValue struct {
	value     string
	expiresAt time.Time
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{
		data: make(map[string]mockRedisValue),
		sets: make(map[string]map[string]float64),
	}
}

func (m *MockRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SetNXCalls++
	cmd := redis.NewBoolCmd(ctx)
	if m.SetError != nil {
		cmd.SetErr(m.SetError)
		return cmd
	}
	if v, ok := m.data[key]; ok && !v.expired() {
		cmd.SetVal(false)
		return cmd
	}

	var expiresAt time.Time
	if expiration > 0 {
		expiresAt = time.Now().Add(expiration)
	}
	m.data[key] = mockRedisValue{value: toString(value), expiresAt: expiresAt}
	cmd.SetVal(true)
	return cmd
}

func (m *MockRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cmd := redis.NewStringCmd(ctx)
	if m.GetError != nil {
		cmd.SetErr(m.GetError)
		return cmd
	}
	v, ok := m.data[key]
	if !ok || v.expired() {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(v.value)
	return cmd
}

func (m *MockRedisClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := redis.NewIntCmd(ctx)
	if m.DelError != nil {
		cmd.SetErr(m.DelError)
		return cmd
	}
	var deleted int64
	for _, key := range keys {
		if _, ok := m.data[key]; ok {
			delete(m.data, key)
			deleted++
		}
	}
	cmd.SetVal(deleted)
	return cmd
}

func (m *MockRedisClient) ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := redis.NewIntCmd(ctx)
	if m.ZSetError != nil {
		cmd.SetErr(m.ZSetError)
		return cmd
	}
	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]float64)
		m.sets[key] = set
	}
	var added int64
	for _, z := range members {
		member := toString(z.Member)
		if _, exists := set[member]; !exists {
			added++
		}
		set[member] = z.Score
	}
	cmd.SetVal(added)
	return cmd
}

// ZRangeByScore supports numeric, exclusive "(" and infinite bounds.
func (m *MockRedisClient) ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cmd := redis.NewStringSliceCmd(ctx)
	if m.ZSetError != nil {
		cmd.SetErr(m.ZSetError)
		return cmd
	}
	lo, loExcl := parseBound(opt.Min)
	hi, hiExcl := parseBound(opt.Max)

	type scored struct {
		member string
		score  float64
	}
	var hits []scored
	for member, score := range m.sets[key] {
		if (score > lo || (!loExcl && score == lo)) && (score < hi || (!hiExcl && score == hi)) {
			hits = append(hits, scored{member, score})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].score < hits[j].score })

	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.member)
	}
	cmd.SetVal(out)
	return cmd
}

func (m *MockRedisClient) ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := redis.NewIntCmd(ctx)
	if m.ZSetError != nil {
		cmd.SetErr(m.ZSetError)
		return cmd
	}
	var removed int64
	for _, mem := range members {
		member := toString(mem)
		if _, ok := m.sets[key][member]; ok {
			delete(m.sets[key], member)
			removed++
		}
	}
	cmd.SetVal(removed)
	return cmd
}

func (m *MockRedisClient) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if m.PingError != nil {
		cmd.SetErr(m.PingError)
		return cmd
	}
	cmd.SetVal("PONG")
	return cmd
}

// HasKey reports whether key holds a live value.
func (m *MockRedisClient) HasKey(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return ok && !v.expired()
}

// SetMembers returns the members of a sorted set, unordered.
func (m *MockRedisClient) SetMembers(key string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.sets[key]))
	for member := range m.sets[key] {
		out = append(out, member)
	}
	return out
}

func (v mockRedisValue) expired() bool {
	return !v.expiresAt.IsZero() && time.Now().After(v.expiresAt)
}

func toString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return ""
}

func parseBound(s string) (float64, bool) {
	exclusive := strings.HasPrefix(s, "(")
	s = strings.TrimPrefix(s, "(")
	switch s {
	case "-inf", "":
		return math.Inf(-1), exclusive
	case "+inf", "inf":
		return math.Inf(1), exclusive
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, exclusive
	}
	return f, exclusive
}
