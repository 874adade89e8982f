package models

import (
	"time"

	"github.com/google/uuid"
)

// MidiFile is written by the conversion flow and read by the session
// correlator to resolve a checkout's file_uuid metadata to a concrete
// artifact. midi_url and score_url point into the external object store.
type MidiFile struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"` // supplied by the conversion flow, not generated
	UserID    *uuid.UUID `gorm:"column:user_id;type:uuid;index"`
	MidiURL   string     `gorm:"column:midi_url;not null"`
	FileName  string     `gorm:"column:file_name"`
	ScoreURL  string     `gorm:"column:score_url"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}
