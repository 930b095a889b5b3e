package job

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/restackio/restack/internal/model"
)

// RedisStore keeps job records in Redis so multiple processes can share
// one registry. Each job is a JSON value; a per-project set indexes ids.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg model.JobStoreConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	prefix := cfg.RedisPrefix
	if prefix == "" {
		prefix = "restack"
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) jobKey(id string) string          { return s.prefix + ":job:" + id }
func (s *RedisStore) projectKey(project string) string { return s.prefix + ":project:" + project }

func (s *RedisStore) Put(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", job.ID, err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.jobKey(job.ID), data, 0)
	pipe.SAdd(ctx, s.projectKey(job.ProjectID), job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store job %s: %w", job.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*model.Job, error) {
	data, err := s.client.Get(ctx, s.jobKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}
	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return &job, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.jobKey(id))
	pipe.SRem(ctx, s.projectKey(job.ProjectID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete job %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) ListByProject(ctx context.Context, projectID string) ([]*model.Job, error) {
	ids, err := s.client.SMembers(ctx, s.projectKey(projectID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs for project %s: %w", projectID, err)
	}
	var out []*model.Job
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if err == ErrNotFound {
			// Index entry outlived the record; drop it.
			s.client.SRem(ctx, s.projectKey(projectID), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
