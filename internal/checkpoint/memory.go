package checkpoint

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kunalsaurav01/agentic-architect/pkg/api"
)

// MemoryStore is a goroutine-safe in-memory Store, intended for tests
// and non-durable deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	chains map[string][]*Checkpoint // per thread, oldest first
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chains: make(map[string][]*Checkpoint)}
}

func (s *MemoryStore) Put(ctx context.Context, threadID, parentID string, state *api.SessionState, meta Metadata) (string, error) {
	// Round-trip through the codec so stored snapshots are isolated
	// from later mutation, same as a durable backend.
	data, err := encodeState(state)
	if err != nil {
		return "", err
	}
	stored, err := decodeState(data)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.chains[threadID]
	head := ""
	if len(chain) > 0 {
		head = chain[len(chain)-1].ID
	}
	if parentID != head {
		return "", ErrParentConflict
	}

	ckpt := &Checkpoint{
		ThreadID:  threadID,
		ID:        uuid.NewString(),
		ParentID:  parentID,
		State:     stored,
		Meta:      meta,
		CreatedAt: time.Now().UTC(),
	}
	s.chains[threadID] = append(chain, ckpt)
	return ckpt.ID, nil
}

func (s *MemoryStore) GetLatest(ctx context.Context, threadID string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := s.chains[threadID]
	if len(chain) == 0 {
		return nil, ErrNotFound
	}
	return copyCheckpoint(chain[len(chain)-1])
}

func (s *MemoryStore) Get(ctx context.Context, threadID, id string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ckpt := range s.chains[threadID] {
		if ckpt.ID == id {
			return copyCheckpoint(ckpt)
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) List(ctx context.Context, threadID string, opts ListOptions) ([]*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := s.chains[threadID]
	end := len(chain)
	if opts.Before != "" {
		end = 0
		for i, ckpt := range chain {
			if ckpt.ID == opts.Before {
				end = i
				break
			}
		}
	}

	var out []*Checkpoint
	for i := end - 1; i >= 0; i-- {
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
		copied, err := copyCheckpoint(chain[i])
		if err != nil {
			return nil, err
		}
		out = append(out, copied)
	}
	return out, nil
}

func (s *MemoryStore) DeleteThread(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.chains, threadID)
	return nil
}

func (s *MemoryStore) Threads(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.chains))
	for id := range s.chains {
		out = append(out, id)
	}
	return out, nil
}

func copyCheckpoint(ckpt *Checkpoint) (*Checkpoint, error) {
	out := *ckpt
	out.State = ckpt.State.Clone()
	return &out, nil
}
