package checkout

import (
	"github.com/google/uuid"

	"github.com/spewite/score-to-midi-backend/pkg/enums"
	pkgerrors "github.com/spewite/score-to-midi-backend/pkg/errors"
)

// Metadata keys stamped onto every checkout session at creation. Stripe
// echoes them back verbatim in webhook events and session lookups, which is
// the only way a payment is correlated back to a user and artifact.
const (
	MetadataKeyType     = "type"
	MetadataKeyUserID   = "user_id"
	MetadataKeyFileUUID = "file_uuid"
)

// SessionMetadata is the decoded correlation payload of a checkout session.
type SessionMetadata struct {
	Type   enums.CheckoutType
	UserID *uuid.UUID
	FileID *uuid.UUID
}

// ParseSessionMetadata decodes and validates the metadata map of a session
// or event. Subscriptions must carry a user id; one-time purchases must
// carry a file uuid (the buyer may be anonymous).
func ParseSessionMetadata(md map[string]string) (*SessionMetadata, error) {
	checkoutType, err := enums.ParseCheckoutType(md[MetadataKeyType])
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown checkout type in session metadata")
	}

	meta := &SessionMetadata{Type: checkoutType}

	if raw := md[MetadataKeyUserID]; raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user_id in session metadata")
		}
		meta.UserID = &userID
	}
	if raw := md[MetadataKeyFileUUID]; raw != "" {
		fileID, err := uuid.Parse(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid file_uuid in session metadata")
		}
		meta.FileID = &fileID
	}

	switch checkoutType {
	case enums.CheckoutTypeSubscription:
		if meta.UserID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription session missing user_id metadata")
		}
	case enums.CheckoutTypeOnetime:
		if meta.FileID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "onetime session missing file_uuid metadata")
		}
	}

	return meta, nil
}

// MetadataMap renders the payload back into the map form Stripe stores.
func (m *SessionMetadata) MetadataMap() map[string]string {
	out := map[string]string{MetadataKeyType: m.Type.String()}
	if m.UserID != nil {
		out[MetadataKeyUserID] = m.UserID.String()
	}
	if m.FileID != nil {
		out[MetadataKeyFileUUID] = m.FileID.String()
	}
	return out
}
