package postgres

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"

	"custodycore/internal/infra/persistence/postgres/testutil"
	"custodycore/pkg/domain"
)

func TestNewStoreCreatesStateTableAndPersists(t *testing.T) {
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	ctx := context.Background()
	store, err := NewStore(ctx, "", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if len(conn.Execs) == 0 || !strings.Contains(conn.Execs[0], "CREATE TABLE IF NOT EXISTS state") {
		t.Fatalf("expected state table ddl, got %v", conn.Execs)
	}
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.Insert("", domain.Equipment{Serial: "PG-1", State: domain.StateStock})
		return err
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if _, ok := conn.State["equipment"]; !ok {
		t.Fatalf("expected equipment bucket persisted, have %v", conn.State)
	}

	reloaded, err := NewStore(ctx, "", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	_ = reloaded.View(ctx, func(v domain.TransactionView) error {
		pool := v.ListPartition(domain.DefaultPoolName)
		if len(pool) != 1 || pool[0].Serial != "PG-1" {
			t.Fatalf("expected hydrated pool, got %+v", pool)
		}
		return nil
	})
}

func TestNewStorePingFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), "", nil); err == nil {
		t.Fatalf("expected ping error")
	}
}

func TestPersistCommitFailureSurfaces(t *testing.T) {
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	store, err := NewStore(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	conn.FailCommit = true
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.CreatePartition("Annex")
	})
	if err == nil || !strings.Contains(err.Error(), "commit") {
		t.Fatalf("expected commit error, got %v", err)
	}
	_ = store.View(context.Background(), func(v domain.TransactionView) error {
		if v.HasPartition("Annex") {
			t.Fatalf("partition visible after failed commit")
		}
		return nil
	})
}

func TestLivePostgres(t *testing.T) {
	dsn := os.Getenv("CUSTODY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CUSTODY_TEST_POSTGRES_DSN not set")
	}
	store, err := NewStore(context.Background(), dsn, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer func() { _ = store.Close() }()
	if err := store.View(context.Background(), func(domain.TransactionView) error { return nil }); err != nil {
		t.Fatalf("view: %v", err)
	}
}
