// internal/repository/codec.go
package repository

import (
	"encoding/json"
	"fmt"

	"p2p-lending/internal/domain"
)

// EncodeSnapshot renders the persisted document layout: indented JSON, collections in id order.
func EncodeSnapshot(snap *domain.Snapshot) ([]byte, error) {
	if snap == nil {
		return nil, fmt.Errorf("encode snapshot: nil snapshot")
	}
	out := snap.Clone()
	out.Normalize()
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeSnapshot parses a persisted document.
func DecodeSnapshot(data []byte) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	snap.Normalize()
	return &snap, nil
}
