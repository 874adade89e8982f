package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spewite/score-to-midi-backend/pkg/migrate"
)

func TestSubscriptionsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_subscriptions.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS subscriptions",
		"CHECK (status IN ('active', 'inactive'))",
		"uq_subscriptions_user_id",
		"uq_subscriptions_user_subscription",
		"DROP TABLE IF EXISTS subscriptions",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOneTimePurchasesMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_one_time_purchases.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS one_time_purchases",
		"FOREIGN KEY (midi_file_id) REFERENCES midi_files(id) ON DELETE CASCADE",
		"uq_one_time_purchases_stripe_payment_id",
		"CHECK (amount >= 0)",
		"DROP TABLE IF EXISTS one_time_purchases",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %q found", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
