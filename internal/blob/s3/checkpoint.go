package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
)

// CheckpointStore keeps model checkpoints as JSON objects under a prefix.
// It satisfies scoring.CheckpointStore.
type CheckpointStore struct {
	w      *Writer
	r      *Reader
	prefix string
}

func NewCheckpointStore(c *Client, prefix string) *CheckpointStore {
	return &CheckpointStore{w: NewWriter(c), r: NewReader(c), prefix: prefix}
}

func (s *CheckpointStore) Save(ctx context.Context, key string, data []byte) error {
	return s.w.Put(ctx, s.objectKey(key), bytes.NewReader(data), "application/json")
}

func (s *CheckpointStore) Load(ctx context.Context, key string) ([]byte, error) {
	body, err := s.r.Get(ctx, s.objectKey(key))
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("s3blob: read checkpoint %s: %w", key, err)
	}
	return data, nil
}

func (s *CheckpointStore) objectKey(key string) string {
	return path.Join(s.prefix, key+".json")
}
