package pgstore_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/intake/internal/triage"
	"github.com/linnemanlabs/intake/internal/triage/pgstore"
)

// openStore connects to a scratch database and clears the document table.
// Tests in this package share one row, so they do not run in parallel.
func openStore(t *testing.T) (*pgstore.Store, *pgxpool.Pool) {
	t.Helper()
	dsn := os.Getenv("INTAKE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("INTAKE_TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	t.Cleanup(pool.Close)

	s, err := pgstore.New(ctx, pool)
	if err != nil {
		t.Fatalf("pgstore.New: %v", err)
	}
	if _, err := pool.Exec(ctx, `DELETE FROM triage_config`); err != nil {
		t.Fatalf("reset: %v", err)
	}
	return s, pool
}

func testConfig() *triage.Config {
	return &triage.Config{
		RequestTypes: []string{"Sales Contract"},
		ConditionFields: []triage.ConditionField{
			{Name: "location", Label: "Location", Type: triage.FieldSelect, Options: []string{"Australia", "Canada"}},
		},
		Rules: []triage.Rule{{
			ID:          "rule-1",
			RequestType: "Sales Contract",
			Conditions: []triage.Condition{
				{Field: "location", Value: triage.AnyOf("Australia", "Canada")},
			},
			Assignee: "john@acme.corp",
			Priority: 1,
		}},
	}
}

func TestLoadEmpty(t *testing.T) {
	s, _ := openStore(t)

	_, err := s.Load(context.Background())
	if !errors.Is(err, triage.ErrNoConfig) {
		t.Fatalf("Load err = %v, want ErrNoConfig", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, testConfig()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Rules) != 1 {
		t.Fatalf("rules = %d, want 1", len(got.Rules))
	}
	assertEqual(t, "ID", "rule-1", got.Rules[0].ID)
	assertEqual(t, "Assignee", "john@acme.corp", got.Rules[0].Assignee)
	assertEqual(t, "Priority", 1, got.Rules[0].Priority)

	v := got.Rules[0].Conditions[0].Value
	if !v.IsList() {
		t.Error("list condition value came back as a single value")
	}
	assertEqual(t, "Value", "Australia, Canada", v.Text())
	assertEqual(t, "Options", 2, len(got.ConditionFields[0].Options))
}

func TestSaveReplacesAndBumpsRevision(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, testConfig()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	next := testConfig()
	next.Rules = nil
	if err := s.Save(ctx, next); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertEqual(t, "rules", 0, len(got.Rules))

	rev, err := s.Revision(ctx)
	if err != nil {
		t.Fatalf("Revision: %v", err)
	}
	assertEqual(t, "revision", int64(2), rev)
}

func TestBacksConfigStore(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	cs := triage.NewConfigStore(s, testConfig())
	if _, err := cs.UpdateRule(ctx, "rule-1", triage.Rule{
		ID: "rule-1", RequestType: "Sales Contract", Assignee: "jane@acme.corp", Priority: 1,
	}); err != nil {
		t.Fatalf("UpdateRule: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertEqual(t, "Assignee", "jane@acme.corp", got.Rules[0].Assignee)
}

func assertEqual[T comparable](t *testing.T, field string, want, got T) {
	t.Helper()
	if want != got {
		t.Errorf("%s: want %v, got %v", field, want, got)
	}
}
