package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// StorageKey is the fixed key the session record lives under.
	StorageKey = "opway.session"
	// SchemaVersion is the version written by this client.
	SchemaVersion = 1
)

// Record is the durable mirror of an authenticated session.
type Record struct {
	SchemaVersion int       `json:"schema_version"`
	Principal     Principal `json:"principal"`
	Token         string    `json:"token"`
	SavedAt       time.Time `json:"saved_at"`
}

// NewRecord stamps a record for p with the current schema version.
func NewRecord(p Principal, token string, now time.Time) Record {
	return Record{
		SchemaVersion: SchemaVersion,
		Principal:     p,
		Token:         token,
		SavedAt:       now.UTC(),
	}
}

// Validate checks that r can restore a session.
func (r Record) Validate(v *validator.Validate) error {
	if r.SchemaVersion < 1 || r.SchemaVersion > SchemaVersion {
		return fmt.Errorf("%w: schema version %d", ErrMalformedRecord, r.SchemaVersion)
	}
	if r.Token == "" {
		return fmt.Errorf("%w: missing token", ErrMalformedRecord)
	}
	return r.Principal.Validate(v)
}

// EncodeRecord serialises r for a mirror.
func EncodeRecord(r Record) ([]byte, error) {
	return json.Marshal(r)
}

// DecodeRecord parses data written by EncodeRecord. Unknown fields are ignored.
func DecodeRecord(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return r, nil
}
