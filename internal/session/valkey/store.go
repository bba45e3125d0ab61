package sessionvalkey

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/truid-app/client-integration/internal/serviceerr"
)

type ObjectType string

// store is a thin typed layer over valkey: JSON values under
// "<prefix>:<type>:<id>" keys with a per-key TTL.
type store struct {
	valkey valkey.Client
	prefix string
}

func newStore(valkeyClient valkey.Client, prefix string) *store {
	return &store{
		valkey: valkeyClient,
		prefix: strings.TrimSuffix(prefix, ":"),
	}
}

func (s *store) key(objectType ObjectType, objectID string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, objectType, objectID)
}

func (s *store) Set(ctx context.Context, objectType ObjectType, objectID string, value any, ttl time.Duration) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding object: %w", err)
	}

	cmd := s.valkey.B().Set().Key(s.key(objectType, objectID)).Value(string(encoded)).Ex(ttl).Build()
	if err := s.valkey.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("setting object: %w", err)
	}

	return nil
}

func (s *store) Get(ctx context.Context, objectType ObjectType, objectID string, value any) error {
	cmd := s.valkey.B().Get().Key(s.key(objectType, objectID)).Build()

	raw, err := s.valkey.Do(ctx, cmd).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return serviceerr.ErrNotFound
		}

		return fmt.Errorf("getting object: %w", err)
	}

	if err := json.Unmarshal(raw, value); err != nil {
		return fmt.Errorf("decoding object: %w", err)
	}

	return nil
}

// GetDel reads and removes an object in one round trip. GETDEL is
// atomic on the server, so only one concurrent caller can win.
func (s *store) GetDel(ctx context.Context, objectType ObjectType, objectID string, value any) error {
	cmd := s.valkey.B().Getdel().Key(s.key(objectType, objectID)).Build()

	raw, err := s.valkey.Do(ctx, cmd).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return serviceerr.ErrNotFound
		}

		return fmt.Errorf("getting and deleting object: %w", err)
	}

	if err := json.Unmarshal(raw, value); err != nil {
		return fmt.Errorf("decoding object: %w", err)
	}

	return nil
}

func (s *store) Destroy(ctx context.Context, objectType ObjectType, objectID string) error {
	cmd := s.valkey.B().Del().Key(s.key(objectType, objectID)).Build()
	if err := s.valkey.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("deleting object: %w", err)
	}

	return nil
}
