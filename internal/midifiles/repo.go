package midifiles

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/spewite/score-to-midi-backend/pkg/db/models"
)

// Repository reads and writes converted artifact rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, file *models.MidiFile) (*models.MidiFile, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.MidiFile, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.MidiFile, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a midi files repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, file *models.MidiFile) (*models.MidiFile, error) {
	if err := r.db.WithContext(ctx).Create(file).Error; err != nil {
		return nil, err
	}
	return file, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.MidiFile, error) {
	var file models.MidiFile
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&file).Error
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.MidiFile, error) {
	var files []models.MidiFile
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}
