package session

import (
	"context"
	"sync"
)

// Mirror is the durable storage primitive behind the Session Store.
type Mirror interface {
	// Load returns the stored record, ErrNoRecord when none exists, or
	// ErrMalformedRecord when the stored bytes cannot be decoded.
	Load(ctx context.Context) (Record, error)
	Save(ctx context.Context, r Record) error
	// Clear removes the record. Clearing an absent record is not an error.
	Clear(ctx context.Context) error
}

// MemoryMirror keeps the encoded record in process memory.
type MemoryMirror struct {
	mu   sync.Mutex
	data []byte
}

func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{}
}

func (m *MemoryMirror) Load(_ context.Context) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return Record{}, ErrNoRecord
	}
	return DecodeRecord(m.data)
}

func (m *MemoryMirror) Save(_ context.Context, r Record) error {
	data, err := EncodeRecord(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryMirror) Clear(_ context.Context) error {
	m.mu.Lock()
	m.data = nil
	m.mu.Unlock()
	return nil
}

// SetRaw replaces the stored bytes verbatim, bypassing encoding.
func (m *MemoryMirror) SetRaw(data []byte) {
	m.mu.Lock()
	m.data = append([]byte(nil), data...)
	m.mu.Unlock()
}
