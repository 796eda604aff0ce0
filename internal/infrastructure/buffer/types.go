package buffer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EntityProfile  = "profile"
	EntitySnapshot = "snapshot"

	OperationUpsert = "upsert"
	OperationPut    = "put"
)

// Item is a write that could not reach primary storage and waits for replay.
// Only one item per (Entity, Key) is kept; a newer write replaces the older one.
type Item struct {
	ID        string          `json:"id"`
	Entity    string          `json:"entity"`
	Key       string          `json:"key"`
	Operation string          `json:"operation"`
	Data      json.RawMessage `json:"data"`
	Priority  int             `json:"priority"`
	Retries   int             `json:"retries"`
	Timestamp time.Time       `json:"timestamp"`

	bucketKey []byte
}

func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Priority <= 0 || i.Priority > 5 {
		i.Priority = 3
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}

func (i Item) indexKey() []byte {
	return []byte(i.Entity + "/" + i.Key)
}
