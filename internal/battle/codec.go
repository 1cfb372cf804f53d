package battle

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
)

// SnapshotVersion is the version written by Encode.
const SnapshotVersion = 1

// snapshot is the persisted envelope around a battle.
type snapshot struct {
	Version  int             `json:"version"`
	Checksum string          `json:"checksum"`
	Battle   json.RawMessage `json:"battle"`
}

// Encode serializes a battle into a gzip-compressed, checksummed snapshot.
func Encode(b *Battle) ([]byte, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal battle: %w", err)
	}
	env, err := json.Marshal(snapshot{
		Version:  SnapshotVersion,
		Checksum: checksum(raw),
		Battle:   raw,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(env); err != nil {
		return nil, fmt.Errorf("failed to compress snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode restores a battle written by Encode. Uncompressed JSON envelopes are
// accepted as well.
func Decode(data []byte) (*Battle, error) {
	env := data
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer zr.Close()
		if env, err = io.ReadAll(zr); err != nil {
			return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
		}
	}

	var snap snapshot
	if err := json.Unmarshal(env, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	if got := checksum(snap.Battle); got != snap.Checksum {
		return nil, fmt.Errorf("snapshot checksum mismatch: expected %s, got %s", snap.Checksum, got)
	}

	var b Battle
	if err := json.Unmarshal(snap.Battle, &b); err != nil {
		return nil, fmt.Errorf("failed to unmarshal battle: %w", err)
	}
	if b.Player1 == nil || b.Player2 == nil {
		return nil, fmt.Errorf("snapshot is missing a player")
	}
	return &b, nil
}

func checksum(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
