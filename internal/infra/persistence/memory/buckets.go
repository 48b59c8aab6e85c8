package memory

import (
	"encoding/json"
	"fmt"
)

// Buckets lists the snapshot sections persisted by the durable backends, one
// row per bucket.
var Buckets = []string{"equipment", "partitions", "audit", "config", "outbox", "meta"}

type snapshotMeta struct {
	Seq uint64 `json:"seq"`
}

// EncodeBucket marshals one section of the snapshot.
func (s Snapshot) EncodeBucket(bucket string) ([]byte, error) {
	switch bucket {
	case "equipment":
		return json.Marshal(s.Equipment)
	case "partitions":
		return json.Marshal(s.Partitions)
	case "audit":
		return json.Marshal(s.Audit)
	case "config":
		return json.Marshal(s.Config)
	case "outbox":
		return json.Marshal(s.Outbox)
	case "meta":
		return json.Marshal(snapshotMeta{Seq: s.Seq})
	default:
		return nil, fmt.Errorf("unknown bucket %s", bucket)
	}
}

// DecodeBucket unmarshals one persisted section into the snapshot. Unknown
// buckets are ignored so older databases keep loading.
func (s *Snapshot) DecodeBucket(bucket string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	var err error
	switch bucket {
	case "equipment":
		err = json.Unmarshal(payload, &s.Equipment)
	case "partitions":
		err = json.Unmarshal(payload, &s.Partitions)
	case "audit":
		err = json.Unmarshal(payload, &s.Audit)
	case "config":
		err = json.Unmarshal(payload, &s.Config)
	case "outbox":
		err = json.Unmarshal(payload, &s.Outbox)
	case "meta":
		var meta snapshotMeta
		err = json.Unmarshal(payload, &meta)
		s.Seq = meta.Seq
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}
