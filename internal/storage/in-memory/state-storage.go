package in_memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/iamvkosarev/ai-multichat/internal/model"
)

// ClientStateStorage keeps the serialized client state blob in memory.
type ClientStateStorage struct {
	mu  sync.Mutex
	raw []byte
}

func NewClientStateStorage() *ClientStateStorage {
	return &ClientStateStorage{}
}

// NewClientStateStorageFromRaw starts from an already serialized blob, which may be corrupt.
func NewClientStateStorageFromRaw(raw []byte) *ClientStateStorage {
	return &ClientStateStorage{raw: raw}
}

func (c *ClientStateStorage) LoadState(_ context.Context) (model.ClientState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.raw == nil {
		return model.ClientState{}, model.ErrStateDoesNotExist
	}
	var state model.ClientState
	if err := json.Unmarshal(c.raw, &state); err != nil {
		return model.ClientState{}, fmt.Errorf("%w: %w", model.ErrStateCorrupted, err)
	}
	return state, nil
}

func (c *ClientStateStorage) SaveState(_ context.Context, state model.ClientState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal client state: %w", err)
	}
	c.mu.Lock()
	c.raw = raw
	c.mu.Unlock()
	return nil
}

// Raw returns the last written blob.
func (c *ClientStateStorage) Raw() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.raw
}
