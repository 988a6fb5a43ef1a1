package checkpoint

import (
	"encoding/json"
	"fmt"

	"github.com/kunalsaurav01/agentic-architect/pkg/api"
)

// The snapshot is a fully typed record, so JSON is used rather than gob:
// rows stay inspectable with plain SQL tooling and survive field
// additions.

func encodeState(state *api.SessionState) ([]byte, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

func decodeState(data []byte) (*api.SessionState, error) {
	var state api.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &state, nil
}

func encodeMeta(meta Metadata) ([]byte, error) {
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode checkpoint metadata: %w", err)
	}
	return data, nil
}

func decodeMeta(data []byte) (Metadata, error) {
	var meta Metadata
	if len(data) == 0 {
		return meta, nil
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("decode checkpoint metadata: %w", err)
	}
	return meta, nil
}
