package domain

import (
	"context"
	"time"
)

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	RuleView
	Partitions() []string
	HasPartition(name string) bool
	ListAudit() []AuditEntry
	ConfigValues(list ConfigList) []string
	ListOutbox() []OutboxEvent
}

// Transaction exposes the operations a persistence implementation must
// support within an atomic scope.
type Transaction interface {
	TransactionView
	Now() time.Time

	Insert(partition string, record Equipment) (Equipment, error)
	Update(id string, mutator func(*Equipment) error) (Equipment, error)
	Move(from, id, to string, mutator func(*Equipment) error) (Equipment, error)
	RemoveAt(partition, id string) (Equipment, error)

	CreatePartition(name string) error
	DeletePartition(name string) error
	RenamePartition(oldName, newName string) error

	AppendAudit(action ActionKind, serial, detail string) AuditEntry

	AddConfigValue(list ConfigList, value string) error
	RemoveConfigValue(list ConfigList, value string) error

	EnqueueDocument(req DocumentRequest) (OutboxEvent, error)
	UpdateOutbox(id string, mutator func(*OutboxEvent) error) (OutboxEvent, error)
}

// PersistentStore is a minimal abstraction over durable backends.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
}
