package core

import (
	"context"
	"testing"

	"custodycore/pkg/domain"
)

func strPtr(s string) *string { return &s }

func newTestService(t *testing.T, opts ...ServiceOption) *Service {
	t.Helper()
	return NewInMemoryService(nil, opts...)
}

func mustCreate(t *testing.T, svc *Service, serial, name string) domain.Equipment {
	t.Helper()
	out, err := svc.Create(context.Background(), NewEquipment{Serial: serial, Name: name, Brand: "Dell", OwnershipType: "Owned"})
	if err != nil {
		t.Fatalf("create %s: %v", serial, err)
	}
	return *out.Record
}

func mustAssign(t *testing.T, svc *Service, serial, agent, agentID, email, floor string) domain.Equipment {
	t.Helper()
	out, err := svc.AssignFromStock(context.Background(), Assignment{Serial: serial, AgentName: agent, AgentID: agentID, AgentEmail: email, Floor: floor})
	if err != nil {
		t.Fatalf("assign %s: %v", serial, err)
	}
	return *out.Record
}

func findSerial(t *testing.T, svc *Service, serial string) domain.Equipment {
	t.Helper()
	var found domain.Equipment
	var ok bool
	_ = svc.Store().View(context.Background(), func(v domain.TransactionView) error {
		for _, rec := range v.ListAll() {
			if rec.Serial == serial {
				found, ok = rec, true
			}
		}
		return nil
	})
	if !ok {
		t.Fatalf("serial %s not found", serial)
	}
	return found
}

func auditLog(t *testing.T, svc *Service) []domain.AuditEntry {
	t.Helper()
	var log []domain.AuditEntry
	_ = svc.Store().View(context.Background(), func(v domain.TransactionView) error {
		log = v.ListAudit()
		return nil
	})
	return log
}

func outbox(t *testing.T, svc *Service) []domain.OutboxEvent {
	t.Helper()
	events, err := svc.Outbox(context.Background(), "")
	if err != nil {
		t.Fatalf("outbox: %v", err)
	}
	return events
}

func countAction(entries []domain.AuditEntry, serial string, action domain.ActionKind) int {
	n := 0
	for _, e := range entries {
		if e.Serial == serial && e.Action == action {
			n++
		}
	}
	return n
}
