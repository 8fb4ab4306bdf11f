package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lokabekas/lokabekas-backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}

func TestLedgerMigrationEnforcesInvariants(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_seller_ledger.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("no seller ledger migration found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS seller_balances",
		"seller_id UUID NOT NULL UNIQUE",
		"CHECK (available_idr >= 0)",
		"CHECK (held_idr >= 0)",
		"CHECK (amount_idr > 0)",
		"DROP TABLE IF EXISTS seller_balances",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOrderCoreMigrationCoversStatusMachine(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_order_core.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("no order core migration found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	content := string(data)

	for _, status := range []string{
		"'draft'", "'awaiting_payment'", "'paid'", "'processing'",
		"'shipped'", "'received'", "'completed'", "'cancelled'",
	} {
		if !strings.Contains(content, status) {
			t.Errorf("purchase status %s missing from migration", status)
		}
	}
	if !strings.Contains(content, "purchase_id UUID NOT NULL UNIQUE") {
		t.Error("invoices must be one per purchase")
	}
}

func TestCreateSQLMigrationTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Something New!")
	if err != nil {
		t.Fatalf("CreateSQLMigration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_something_new.sql") {
		t.Fatalf("unexpected filename %q", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration fails validation: %v", err)
	}
}
