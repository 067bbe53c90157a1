package cache

import (
	"time"
)

// Entry is a previously computed response body plus cache metadata.
type Entry struct {
	Content   []byte
	CreatedAt time.Time
}

func NewEntry(content []byte, createdAt time.Time) Entry {
	return Entry{
		Content:   content,
		CreatedAt: createdAt,
	}
}

func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}
