package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/spewite/score-to-midi-backend/api/middleware"
	"github.com/spewite/score-to-midi-backend/api/responses"
	"github.com/spewite/score-to-midi-backend/api/validators"
	"github.com/spewite/score-to-midi-backend/internal/midifiles"
	"github.com/spewite/score-to-midi-backend/pkg/db/models"
	pkgerrors "github.com/spewite/score-to-midi-backend/pkg/errors"
	"github.com/spewite/score-to-midi-backend/pkg/logger"
)

// RegisterMidiFile records a converted artifact so checkouts can reference
// it. The conversion flow supplies the id; anonymous conversions carry no
// user and are attached to the caller when one is signed in.
func RegisterMidiFile(svc midifiles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "midi files service unavailable"))
			return
		}

		var payload registerMidiFileRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var userID *uuid.UUID
		if raw := middleware.UserIDFromContext(r.Context()); raw != "" {
			parsed, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id"))
				return
			}
			userID = &parsed
		}

		file, err := svc.Insert(r.Context(), midifiles.InsertInput{
			ID:       payload.ID,
			UserID:   userID,
			MidiURL:  payload.MidiURL,
			FileName: payload.FileName,
			ScoreURL: payload.ScoreURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newMidiFileResponse(*file))
	}
}

// ListMidiFiles returns the signed-in user's converted artifacts.
func ListMidiFiles(svc midifiles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "midi files service unavailable"))
			return
		}

		userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
			return
		}

		files, err := svc.ListForUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]midiFileResponse, 0, len(files))
		for _, file := range files {
			items = append(items, newMidiFileResponse(file))
		}
		responses.WriteSuccess(w, items)
	}
}

type registerMidiFileRequest struct {
	ID       uuid.UUID `json:"id" validate:"required,uuid4"`
	MidiURL  string    `json:"midi_url" validate:"required,url"`
	FileName string    `json:"file_name,omitempty"`
	ScoreURL string    `json:"score_url,omitempty" validate:"omitempty,url"`
}

type midiFileResponse struct {
	ID        uuid.UUID  `json:"id"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	MidiURL   string     `json:"midi_url"`
	FileName  string     `json:"file_name,omitempty"`
	ScoreURL  string     `json:"score_url,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func newMidiFileResponse(file models.MidiFile) midiFileResponse {
	return midiFileResponse{
		ID:        file.ID,
		UserID:    file.UserID,
		MidiURL:   file.MidiURL,
		FileName:  file.FileName,
		ScoreURL:  file.ScoreURL,
		CreatedAt: file.CreatedAt,
	}
}
