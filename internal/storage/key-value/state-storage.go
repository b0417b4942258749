package key_value

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/iamvkosarev/ai-multichat/internal/model"
)

const stateKeyPrefix = "multiChats_v1"

// ClientStateStorage keeps one client's state blob under a namespaced redis key.
type ClientStateStorage struct {
	rdb       redis.Cmdable
	namespace string
}

func NewClientStateStorage(rdb redis.Cmdable, namespace string) *ClientStateStorage {
	return &ClientStateStorage{
		rdb:       rdb,
		namespace: namespace,
	}
}

func (c *ClientStateStorage) LoadState(ctx context.Context) (model.ClientState, error) {
	stateKey := getStateKey(c.namespace)
	stateRaw, err := c.rdb.Get(ctx, stateKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.ClientState{}, model.ErrStateDoesNotExist
		}
		return model.ClientState{}, fmt.Errorf("failed to get client state %s: %w", stateKey, err)
	}
	var state model.ClientState
	if err = json.Unmarshal([]byte(stateRaw), &state); err != nil {
		return model.ClientState{}, fmt.Errorf("%w: %s: %w", model.ErrStateCorrupted, stateKey, err)
	}
	return state, nil
}

func (c *ClientStateStorage) SaveState(ctx context.Context, state model.ClientState) error {
	stateKey := getStateKey(c.namespace)
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal client state: %w", err)
	}
	if err = c.rdb.Set(ctx, stateKey, stateJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to save client state %s: %w", stateKey, err)
	}
	return nil
}

func getStateKey(namespace string) string {
	return fmt.Sprintf("%s:%s", stateKeyPrefix, namespace)
}
