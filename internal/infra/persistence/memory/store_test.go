package memory

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"custodycore/pkg/domain"
)

func fixedClock() func() time.Time {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func serials(records []domain.Equipment) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Serial)
	}
	return out
}

func TestStoreSeedsDefaults(t *testing.T) {
	store := NewStore(nil)
	err := store.View(context.Background(), func(v TransactionView) error {
		if v.PoolName() != domain.DefaultPoolName {
			t.Fatalf("unexpected pool %q", v.PoolName())
		}
		if got := v.Partitions(); !reflect.DeepEqual(got, []string{"7", "10", "12", "16"}) {
			t.Fatalf("unexpected seeded sites %v", got)
		}
		if len(v.ConfigValues(domain.ListBrands)) != 4 {
			t.Fatalf("expected seeded brands")
		}
		if len(v.ListAudit()) != 0 {
			t.Fatalf("audit log must start empty")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestInsertMoveAndListOrder(t *testing.T) {
	store := NewStore(nil, WithClock(fixedClock()))
	ctx := context.Background()
	var moved domain.Equipment
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		for _, serial := range []string{"A", "B", "C"} {
			if _, err := tx.Insert("", domain.Equipment{Serial: serial, State: domain.StateStock}); err != nil {
				return err
			}
		}
		pool := tx.ListPartition(tx.PoolName())
		var err error
		moved, err = tx.Move(tx.PoolName(), pool[1].ID, "21", func(e *domain.Equipment) error {
			e.State = domain.StateAssigned
			e.Location = "21"
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if moved.Partition != "21" || moved.Serial != "B" {
		t.Fatalf("unexpected moved record %+v", moved)
	}
	_ = store.View(ctx, func(v TransactionView) error {
		if got := serials(v.ListPartition(domain.DefaultPoolName)); !reflect.DeepEqual(got, []string{"A", "C"}) {
			t.Fatalf("unexpected pool order %v", got)
		}
		if !v.HasPartition("21") {
			t.Fatalf("expected destination partition to be created")
		}
		if got := serials(v.ListAll()); !reflect.DeepEqual(got, []string{"A", "C", "B"}) {
			t.Fatalf("unexpected listAll order %v", got)
		}
		found, ok := v.FindEquipment(moved.ID)
		if !ok || found.State != domain.StateAssigned {
			t.Fatalf("expected stable id lookup after move, got %+v", found)
		}
		return nil
	})
}

func TestFailedTransactionRollsBack(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, err := tx.Insert("", domain.Equipment{Serial: "X"}); err != nil {
			return err
		}
		tx.AppendAudit(domain.ActionCreation, "X", "created")
		return errors.New("abort")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	_ = store.View(ctx, func(v TransactionView) error {
		if len(v.ListAll()) != 0 || len(v.ListAudit()) != 0 {
			t.Fatalf("expected rollback of inserts and audit entries")
		}
		return nil
	})
}

func TestCommitHookSeesCandidateAndCanAbort(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	insert := func(tx Transaction) error {
		_, err := tx.Insert("", domain.Equipment{Serial: "X"})
		return err
	}
	var seen int
	_, err := store.RunInTransactionWithCommit(ctx, insert, func(s Snapshot) error {
		seen = len(s.Equipment)
		return errors.New("disk full")
	})
	if err == nil || err.Error() != "disk full" {
		t.Fatalf("expected commit error, got %v", err)
	}
	if seen != 1 {
		t.Fatalf("commit hook saw %d records, want 1", seen)
	}
	_ = store.View(ctx, func(v TransactionView) error {
		if len(v.ListAll()) != 0 {
			t.Fatalf("aborted commit must not become visible")
		}
		return nil
	})
	if _, err := store.RunInTransactionWithCommit(ctx, insert, func(Snapshot) error { return nil }); err != nil {
		t.Fatalf("commit: %v", err)
	}
	_ = store.View(ctx, func(v TransactionView) error {
		if len(v.ListAll()) != 1 {
			t.Fatalf("expected committed record")
		}
		return nil
	})
}

type blockAllRule struct{}

func (blockAllRule) Name() string { return "block_all" }

func (blockAllRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	for _, c := range changes {
		if c.Entity == domain.EntityEquipment {
			res.Violations = append(res.Violations, domain.Violation{Rule: "block_all", Severity: domain.SeverityBlock, Message: "blocked"})
		}
	}
	return res, nil
}

func TestRuleViolationBlocksCommit(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	store.RulesEngine().Register(blockAllRule{})
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, e := tx.Insert("", domain.Equipment{Serial: "Z"})
		return e
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	_ = store.View(context.Background(), func(v TransactionView) error {
		if len(v.ListAll()) != 0 {
			t.Fatalf("blocked transaction must not commit")
		}
		return nil
	})
}

func TestRemoveAtRequiresMatchingPartition(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	var id string
	_, _ = store.RunInTransaction(ctx, func(tx Transaction) error {
		e, err := tx.Insert("", domain.Equipment{Serial: "R1"})
		id = e.ID
		return err
	})
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.RemoveAt("7", id)
		return err
	})
	var nf domain.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found for wrong partition, got %v", err)
	}
	_, err = store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.RemoveAt(domain.DefaultPoolName, id)
		return err
	})
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
}

func TestPartitionRegistry(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, err := tx.Insert("7", domain.Equipment{Serial: "S7", State: domain.StateAssigned, Location: "7"}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	cases := []struct {
		name string
		fn   func(Transaction) error
		want any
	}{
		{"create existing", func(tx Transaction) error { return tx.CreatePartition("10") }, domain.ConflictError{}},
		{"create pool", func(tx Transaction) error { return tx.CreatePartition(domain.DefaultPoolName) }, domain.ConflictError{}},
		{"delete non empty", func(tx Transaction) error { return tx.DeletePartition("7") }, domain.ConflictError{}},
		{"delete missing", func(tx Transaction) error { return tx.DeletePartition("99") }, domain.NotFoundError{}},
		{"rename to existing", func(tx Transaction) error { return tx.RenamePartition("7", "10") }, domain.ConflictError{}},
		{"rename missing", func(tx Transaction) error { return tx.RenamePartition("99", "100") }, domain.NotFoundError{}},
		{"rename pool", func(tx Transaction) error { return tx.RenamePartition(domain.DefaultPoolName, "Bench") }, domain.ConflictError{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.RunInTransaction(ctx, tc.fn)
			switch tc.want.(type) {
			case domain.ConflictError:
				var target domain.ConflictError
				if !errors.As(err, &target) {
					t.Fatalf("expected conflict, got %v", err)
				}
			case domain.NotFoundError:
				var target domain.NotFoundError
				if !errors.As(err, &target) {
					t.Fatalf("expected not found, got %v", err)
				}
			}
		})
	}

	_, err = store.RunInTransaction(ctx, func(tx Transaction) error { return tx.RenamePartition("7", "7A") })
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	_ = store.View(ctx, func(v TransactionView) error {
		if v.HasPartition("7") {
			t.Fatalf("old partition should be gone")
		}
		records := v.ListPartition("7A")
		if len(records) != 1 || records[0].Location != "7A" || records[0].Partition != "7A" {
			t.Fatalf("expected relabelled record, got %+v", records)
		}
		return nil
	})
}

func TestAuditNewestFirst(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	for _, detail := range []string{"first", "second", "third"} {
		d := detail
		_, _ = store.RunInTransaction(ctx, func(tx Transaction) error {
			tx.AppendAudit(domain.ActionModification, "", d)
			return nil
		})
	}
	_ = store.View(ctx, func(v TransactionView) error {
		log := v.ListAudit()
		if len(log) != 3 || log[0].Detail != "third" || log[2].Detail != "first" {
			t.Fatalf("unexpected log order %+v", log)
		}
		if log[0].Serial != domain.NotAvailable {
			t.Fatalf("expected N/A serial placeholder, got %q", log[0].Serial)
		}
		return nil
	})
}

func TestConfigValues(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.AddConfigValue(domain.ListBrands, "dell")
	})
	var conflict domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected case-insensitive duplicate conflict, got %v", err)
	}
	_, err = store.RunInTransaction(ctx, func(tx Transaction) error {
		if err := tx.AddConfigValue(domain.ListBrands, "Asus"); err != nil {
			return err
		}
		return tx.RemoveConfigValue(domain.ListBrands, "HP")
	})
	if err != nil {
		t.Fatalf("config update: %v", err)
	}
	_ = store.View(ctx, func(v TransactionView) error {
		if got := v.ConfigValues(domain.ListBrands); !reflect.DeepEqual(got, []string{"Dell", "Lenovo", "Apple", "Asus"}) {
			t.Fatalf("unexpected brands %v", got)
		}
		return nil
	})
	_, err = store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.AddConfigValue(domain.ListLocations, "Annex")
	})
	if err != nil {
		t.Fatalf("add location: %v", err)
	}
	_ = store.View(ctx, func(v TransactionView) error {
		if !v.HasPartition("Annex") {
			t.Fatalf("location values must register partitions")
		}
		return nil
	})
}

func TestOutboxLifecycle(t *testing.T) {
	store := NewStore(nil, WithClock(fixedClock()))
	ctx := context.Background()
	var id string
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		event, err := tx.EnqueueDocument(domain.DocumentRequest{Kind: domain.DocumentCustody, AgentEmail: "a@x.com"})
		id = event.ID
		return err
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	_, err = store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateOutbox(id, func(e *domain.OutboxEvent) error {
			e.Status = domain.OutboxDelivered
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("update outbox: %v", err)
	}
	_ = store.View(ctx, func(v TransactionView) error {
		events := v.ListOutbox()
		if len(events) != 1 || events[0].Status != domain.OutboxDelivered {
			t.Fatalf("unexpected outbox %+v", events)
		}
		return nil
	})
}

func TestExportImportRoundTripPreservesOrder(t *testing.T) {
	store := NewStore(nil, WithPoolName("Bodega"))
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		for _, serial := range []string{"one", "two", "three"} {
			if _, err := tx.Insert("", domain.Equipment{Serial: serial}); err != nil {
				return err
			}
		}
		tx.AppendAudit(domain.ActionCreation, "one", "x")
		return tx.CreatePartition("Lab")
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	snapshot := store.ExportState()

	restored := NewStore(nil, WithPoolName("Bodega"))
	restored.ImportState(snapshot)
	_ = restored.View(ctx, func(v TransactionView) error {
		if got := serials(v.ListPartition("Bodega")); !reflect.DeepEqual(got, []string{"one", "two", "three"}) {
			t.Fatalf("unexpected restored order %v", got)
		}
		if !v.HasPartition("Lab") || len(v.ListAudit()) != 1 {
			t.Fatalf("expected empty partition and audit to survive import")
		}
		return nil
	})
	_, err = restored.RunInTransaction(ctx, func(tx Transaction) error {
		e, err := tx.Insert("", domain.Equipment{Serial: "four"})
		if err != nil {
			return err
		}
		if e.Seq <= snapshot.Seq {
			t.Fatalf("sequence must continue after import: got %d, snapshot %d", e.Seq, snapshot.Seq)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("insert after import: %v", err)
	}
}
