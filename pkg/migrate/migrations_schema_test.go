package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration file matching %q", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestInitSchemaMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_init_schema.sql")

	checks := []string{
		"CREATE TYPE order_status AS ENUM",
		"CREATE TYPE bid_status AS ENUM",
		"CREATE TYPE stop_kind AS ENUM",
		"CREATE TYPE address_t AS",
		"CREATE TABLE orders",
		"CREATE TABLE order_stops",
		"CREATE TABLE bids",
		"CREATE UNIQUE INDEX ux_orders_order_number ON orders (order_number)",
		"CREATE UNIQUE INDEX ux_bids_order_contractor ON bids (order_id, contractor_id)",
		"uuid NOT NULL REFERENCES orders (id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS bids",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCMRMigrationContainsSchemas(t *testing.T) {
	content := readMigration(t, "*_cmr_tables.sql")

	checks := []string{
		"CREATE SEQUENCE cmr_number_seq",
		"CREATE TABLE cmrs",
		"CREATE TABLE cmr_artifacts",
		"CREATE UNIQUE INDEX ux_cmrs_cmr_number ON cmrs (cmr_number)",
		"CREATE INDEX ix_cmrs_group_id ON cmrs (group_id)",
		"DROP TABLE IF EXISTS cmrs",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOutboxMigrationContainsSchemas(t *testing.T) {
	content := readMigration(t, "*_outbox.sql")

	checks := []string{
		"CREATE TYPE event_type_enum AS ENUM",
		"CREATE TYPE aggregate_type_enum AS ENUM",
		"CREATE TYPE outbox_dlq_error_reason_enum AS ENUM",
		"CREATE TABLE outbox_events",
		"CREATE TABLE outbox_dlq",
		"CREATE INDEX ix_outbox_events_unpublished",
		"DROP TABLE IF EXISTS outbox_dlq",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
