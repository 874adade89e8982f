package midifiles

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/spewite/score-to-midi-backend/pkg/db/models"
	pkgerrors "github.com/spewite/score-to-midi-backend/pkg/errors"
)

// InsertInput is the record the conversion flow registers after a successful
// score conversion. ID comes from the converter so the success page can
// reference the artifact before this row lands.
type InsertInput struct {
	ID       uuid.UUID
	UserID   *uuid.UUID
	MidiURL  string
	FileName string
	ScoreURL string
}

// Service exposes artifact registration and listing.
type Service interface {
	Insert(ctx context.Context, input InsertInput) (*models.MidiFile, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.MidiFile, error)
}

type ServiceParams struct {
	Repo Repository
}

type service struct {
	repo Repository
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "midi files repo required")
	}
	return &service{repo: params.Repo}, nil
}

func (s *service) Insert(ctx context.Context, input InsertInput) (*models.MidiFile, error) {
	if input.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file id is required")
	}
	if input.MidiURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "midi url is required")
	}

	file := &models.MidiFile{
		ID:       input.ID,
		UserID:   input.UserID,
		MidiURL:  input.MidiURL,
		FileName: input.FileName,
		ScoreURL: input.ScoreURL,
	}

	created, err := s.repo.Create(ctx, file)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "midi file already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert midi file")
	}
	return created, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.MidiFile, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	files, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list midi files")
	}
	return files, nil
}
