package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/jobflow-io/jobflow/pkg/api"
)

// RedisStore is an api.Store backed by Redis, using the same key-scheme
// idiom as the teacher's instance store:
//
//	<prefix>rec:<uuid>:<index>  => JSON-encoded redisRecordPayload
//	<prefix>idx:uuid:<uuid>     => SET of indexes stored for that uuid
//	<prefix>idx:all             => SET of "<uuid>:<index>" pairs
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ api.Store = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore. prefix is optional but recommended
// (e.g. "jobflow:").
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "jobflow:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

type redisRecordPayload struct {
	UUID       string
	Index      int
	Data       map[string]any
	Metadata   map[string]any
	Hosts      []string
	StoreNames map[string]string
}

func (s *RedisStore) keyRecord(uuid string, index int) string {
	return fmt.Sprintf("%srec:%s:%d", s.prefix, uuid, index)
}

func (s *RedisStore) keyUUIDIndex(uuid string) string {
	return s.prefix + "idx:uuid:" + uuid
}

func (s *RedisStore) keyAll() string {
	return s.prefix + "idx:all"
}

func (s *RedisStore) Connect(ctx context.Context) error { return s.client.Ping(ctx).Err() }
func (s *RedisStore) Close() error                        { return s.client.Close() }

func (s *RedisStore) Update(ctx context.Context, filter api.Filter, record *api.Record) error {
	payload := redisRecordPayload{
		UUID: record.UUID, Index: record.Index,
		Data: record.Data, Metadata: record.Metadata,
		Hosts: record.Hosts, StoreNames: record.StoreNames,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.keyRecord(record.UUID, record.Index), data, 0).Err(); err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, s.keyUUIDIndex(record.UUID), record.Index)
	pipe.SAdd(ctx, s.keyAll(), fmt.Sprintf("%s:%d", record.UUID, record.Index))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) get(ctx context.Context, uuid string, index int) (*api.Record, error) {
	data, err := s.client.Get(ctx, s.keyRecord(uuid, index)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var payload redisRecordPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &api.Record{
		UUID: payload.UUID, Index: payload.Index,
		Data: payload.Data, Metadata: payload.Metadata,
		Hosts: payload.Hosts, StoreNames: payload.StoreNames,
	}, nil
}

// latestIndex returns the highest index stored for uuid, or -1 if none.
func (s *RedisStore) latestIndex(ctx context.Context, uuid string) (int, error) {
	members, err := s.client.SMembers(ctx, s.keyUUIDIndex(uuid)).Result()
	if err != nil {
		return -1, err
	}
	best := -1
	for _, m := range members {
		var idx int
		if _, err := fmt.Sscanf(m, "%d", &idx); err == nil && idx > best {
			best = idx
		}
	}
	return best, nil
}

func (s *RedisStore) QueryOne(ctx context.Context, filter api.Filter, properties []string) (*api.Record, error) {
	uuid, index, _ := splitIdentityFilter(filter)
	if uuid == "" {
		return s.scanOne(ctx, filter)
	}
	if index < 0 {
		var err error
		index, err = s.latestIndex(ctx, uuid)
		if err != nil {
			return nil, err
		}
		if index < 0 {
			return nil, nil
		}
	}
	rec, err := s.get(ctx, uuid, index)
	if err != nil || rec == nil {
		return rec, err
	}
	if !matches(rec, filter) {
		return nil, nil
	}
	return rec, nil
}

func (s *RedisStore) scanOne(ctx context.Context, filter api.Filter) (*api.Record, error) {
	all, err := s.allRecords(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range all {
		if matches(r, filter) {
			return r, nil
		}
	}
	return nil, nil
}

func (s *RedisStore) allRecords(ctx context.Context) ([]*api.Record, error) {
	pairs, err := s.client.SMembers(ctx, s.keyAll()).Result()
	if err != nil {
		return nil, err
	}
	var out []*api.Record
	for _, pair := range pairs {
		sep := strings.LastIndex(pair, ":")
		if sep < 0 {
			continue
		}
		uuid := pair[:sep]
		var index int
		if _, err := fmt.Sscanf(pair[sep+1:], "%d", &index); err != nil {
			continue
		}
		rec, err := s.get(ctx, uuid, index)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *RedisStore) Query(ctx context.Context, filter api.Filter, properties []string) (api.RecordIter, error) {
	all, err := s.allRecords(ctx)
	if err != nil {
		return nil, err
	}
	var matched []*api.Record
	for _, r := range all {
		if matches(r, filter) {
			matched = append(matched, r)
		}
	}
	return &sliceIter{records: matched}, nil
}

func (s *RedisStore) Remove(ctx context.Context, filter api.Filter) error {
	all, err := s.allRecords(ctx)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	for _, r := range all {
		if !matches(r, filter) {
			continue
		}
		pipe.Del(ctx, s.keyRecord(r.UUID, r.Index))
		pipe.SRem(ctx, s.keyUUIDIndex(r.UUID), r.Index)
		pipe.SRem(ctx, s.keyAll(), fmt.Sprintf("%s:%d", r.UUID, r.Index))
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Count(ctx context.Context, filter api.Filter) (int64, error) {
	all, err := s.allRecords(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, r := range all {
		if matches(r, filter) {
			n++
		}
	}
	return n, nil
}

func (s *RedisStore) Distinct(ctx context.Context, field string, filter api.Filter) ([]any, error) {
	all, err := s.allRecords(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []any
	for _, r := range all {
		if !matches(r, filter) {
			continue
		}
		v, ok := fieldValue(r, field)
		if !ok {
			continue
		}
		key := stringify(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out, nil
}
