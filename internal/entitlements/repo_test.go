package entitlements

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/spewite/score-to-midi-backend/pkg/config"
	"github.com/spewite/score-to-midi-backend/pkg/db/models"
	"github.com/spewite/score-to-midi-backend/pkg/enums"
)

func setupEntitlementsTestDB(t *testing.T, conflictKey string) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	subscriptions := `
CREATE TABLE IF NOT EXISTS subscriptions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  stripe_customer_id TEXT NOT NULL,
  stripe_subscription_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'inactive',
  current_period_end DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	midiFiles := `
CREATE TABLE IF NOT EXISTS midi_files (
  id TEXT PRIMARY KEY,
  user_id TEXT,
  midi_url TEXT NOT NULL,
  file_name TEXT,
  score_url TEXT,
  created_at DATETIME
);`
	purchases := `
CREATE TABLE IF NOT EXISTS one_time_purchases (
  id TEXT PRIMARY KEY,
  user_id TEXT,
  midi_file_id TEXT NOT NULL,
  stripe_payment_id TEXT NOT NULL,
  amount NUMERIC,
  currency TEXT,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(subscriptions).Error)
	require.NoError(t, db.Exec(midiFiles).Error)
	require.NoError(t, db.Exec(purchases).Error)

	require.NoError(t, db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uq_one_time_purchases_stripe_payment_id ON one_time_purchases (stripe_payment_id);`).Error)
	switch conflictKey {
	case config.ConflictKeyUserSubscription:
		require.NoError(t, db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uq_subscriptions_user_subscription ON subscriptions (user_id, stripe_subscription_id);`).Error)
	default:
		require.NoError(t, db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uq_subscriptions_user_id ON subscriptions (user_id);`).Error)
	}
	return db
}

func newSubscription(userID uuid.UUID, stripeSubID string, status enums.SubscriptionStatus, periodEnd time.Time) *models.Subscription {
	return &models.Subscription{
		ID:                   uuid.New(),
		UserID:               userID,
		StripeCustomerID:     "cus_test",
		StripeSubscriptionID: stripeSubID,
		Status:               status,
		CurrentPeriodEnd:     periodEnd,
	}
}

func TestUpsertSubscriptionInsertsThenUpdates(t *testing.T) {
	db := setupEntitlementsTestDB(t, config.ConflictKeyUser)
	repo := NewRepository(db, config.ConflictKeyUser)
	ctx := context.Background()

	userID := uuid.New()
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.AddDate(0, 1, 0)

	require.NoError(t, repo.UpsertSubscription(ctx, newSubscription(userID, "sub_1", enums.SubscriptionStatusActive, t1)))
	require.NoError(t, repo.UpsertSubscription(ctx, newSubscription(userID, "sub_1", enums.SubscriptionStatusActive, t2)))

	var count int64
	require.NoError(t, db.Model(&models.Subscription{}).Where("user_id = ?", userID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	stored, err := repo.ActiveSubscriptionForUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, t2.Unix(), stored.CurrentPeriodEnd.Unix())
}

func TestUpsertSubscriptionKeepsNewestPeriodEnd(t *testing.T) {
	db := setupEntitlementsTestDB(t, config.ConflictKeyUser)
	repo := NewRepository(db, config.ConflictKeyUser)
	ctx := context.Background()

	userID := uuid.New()
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.AddDate(0, 1, 0)

	// Renewal events delivered newest first; the older one must not rewind.
	require.NoError(t, repo.UpsertSubscription(ctx, newSubscription(userID, "sub_1", enums.SubscriptionStatusActive, t2)))
	require.NoError(t, repo.UpsertSubscription(ctx, newSubscription(userID, "sub_1", enums.SubscriptionStatusActive, t1)))

	stored, err := repo.ActiveSubscriptionForUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, t2.Unix(), stored.CurrentPeriodEnd.Unix())
}

func TestUpsertSubscriptionReplaysConverge(t *testing.T) {
	db := setupEntitlementsTestDB(t, config.ConflictKeyUser)
	repo := NewRepository(db, config.ConflictKeyUser)
	ctx := context.Background()

	userID := uuid.New()
	periodEnd := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.UpsertSubscription(ctx, newSubscription(userID, "sub_1", enums.SubscriptionStatusActive, periodEnd)))
	}

	var count int64
	require.NoError(t, db.Model(&models.Subscription{}).Where("user_id = ?", userID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpsertSubscriptionCompositeConflictKey(t *testing.T) {
	db := setupEntitlementsTestDB(t, config.ConflictKeyUserSubscription)
	repo := NewRepository(db, config.ConflictKeyUserSubscription)
	ctx := context.Background()

	userID := uuid.New()
	periodEnd := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.UpsertSubscription(ctx, newSubscription(userID, "sub_1", enums.SubscriptionStatusInactive, periodEnd)))
	require.NoError(t, repo.UpsertSubscription(ctx, newSubscription(userID, "sub_2", enums.SubscriptionStatusActive, periodEnd)))
	require.NoError(t, repo.UpsertSubscription(ctx, newSubscription(userID, "sub_2", enums.SubscriptionStatusActive, periodEnd.AddDate(0, 1, 0))))

	var count int64
	require.NoError(t, db.Model(&models.Subscription{}).Where("user_id = ?", userID).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	stored, err := repo.SubscriptionByStripeID(ctx, "sub_2")
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusActive, stored.Status)
}

func TestRecordPurchaseReplaysKeepOneRow(t *testing.T) {
	db := setupEntitlementsTestDB(t, config.ConflictKeyUser)
	repo := NewRepository(db, config.ConflictKeyUser)
	ctx := context.Background()

	fileID := uuid.New()
	userID := uuid.New()
	amount := decimal.NewFromFloat(4.99)

	require.NoError(t, db.Create(&models.MidiFile{ID: fileID, UserID: &userID, MidiURL: "https://files.example/midi/a.mid"}).Error)

	for i := 0; i < 4; i++ {
		purchase := &models.OneTimePurchase{
			UserID:          &userID,
			MidiFileID:      fileID,
			StripePaymentID: "pi_123",
			Amount:          &amount,
			Currency:        "eur",
		}
		require.NoError(t, repo.RecordPurchase(ctx, purchase))
	}

	var count int64
	require.NoError(t, db.Model(&models.OneTimePurchase{}).Where("stripe_payment_id = ?", "pi_123").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	stored, err := repo.PurchaseByPaymentID(ctx, "pi_123")
	require.NoError(t, err)
	assert.Equal(t, fileID, stored.MidiFileID)
	require.NotNil(t, stored.Amount)
	assert.True(t, stored.Amount.Equal(amount))

	byFile, err := repo.PurchaseForFile(ctx, fileID)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, byFile.ID)
}

func TestExpireLapsedFlipsOnlyPastDue(t *testing.T) {
	db := setupEntitlementsTestDB(t, config.ConflictKeyUser)
	repo := NewRepository(db, config.ConflictKeyUser)
	ctx := context.Background()

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	lapsedUser := uuid.New()
	currentUser := uuid.New()
	inactiveUser := uuid.New()

	require.NoError(t, repo.UpsertSubscription(ctx, newSubscription(lapsedUser, "sub_lapsed", enums.SubscriptionStatusActive, now.Add(-time.Hour))))
	require.NoError(t, repo.UpsertSubscription(ctx, newSubscription(currentUser, "sub_current", enums.SubscriptionStatusActive, now.Add(time.Hour))))
	require.NoError(t, repo.UpsertSubscription(ctx, newSubscription(inactiveUser, "sub_inactive", enums.SubscriptionStatusInactive, now.Add(-time.Hour))))

	flipped, err := repo.ExpireLapsed(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), flipped)

	_, err = repo.ActiveSubscriptionForUser(ctx, lapsedUser)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	stillActive, err := repo.ActiveSubscriptionForUser(ctx, currentUser)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusActive, stillActive.Status)

	// Second sweep finds nothing left to flip.
	flipped, err = repo.ExpireLapsed(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), flipped)
}
