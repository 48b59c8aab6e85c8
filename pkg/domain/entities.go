// Package domain defines the persistent equipment records, audit entries,
// outbox events and rule evaluation primitives used by custodycore.
package domain

import (
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityEquipment identifies an equipment record.
	EntityEquipment EntityType = "equipment"
	// EntityPartition identifies a site partition in the partition registry.
	EntityPartition EntityType = "partition"
	// EntityConfig identifies a configuration list value.
	EntityConfig EntityType = "config"
	// EntityOutbox identifies a pending document delivery.
	EntityOutbox EntityType = "outbox"
)

// DefaultPoolName names the unassigned pool partition.
const DefaultPoolName = "Stock"

// NotAvailable stands in for a missing serial in audit entries.
const NotAvailable = "N/A"

// State is the lifecycle state of an equipment record.
type State string

// Canonical equipment states.
const (
	StateStock          State = "Stock"
	StateAssigned       State = "Assigned"
	StateAvailable      State = "Available"
	StateInRepair       State = "In Repair"
	StateDecommissioned State = "Decommissioned"
)

// States lists the canonical states in display order.
func States() []State {
	return []State{StateStock, StateAssigned, StateAvailable, StateInRepair, StateDecommissioned}
}

// ParseState resolves a state case-insensitively, accepting the compact
// "InRepair" spelling as well.
func ParseState(value string) (State, bool) {
	v := strings.TrimSpace(value)
	if strings.EqualFold(v, "InRepair") {
		return StateInRepair, true
	}
	for _, s := range States() {
		if strings.EqualFold(v, string(s)) {
			return s, true
		}
	}
	return "", false
}

// Valid reports whether s is a canonical state.
func (s State) Valid() bool {
	switch s {
	case StateStock, StateAssigned, StateAvailable, StateInRepair, StateDecommissioned:
		return true
	}
	return false
}

// PoolResident reports whether records in this state belong in the
// unassigned pool.
func (s State) PoolResident() bool {
	switch s {
	case StateStock, StateAvailable, StateInRepair, StateDecommissioned:
		return true
	}
	return false
}

// Equipment is a single tracked asset. ID is stable across moves; Partition
// and Seq describe where the record currently lives.
type Equipment struct {
	ID                    string    `json:"id"`
	Serial                string    `json:"serial"`
	Name                  string    `json:"name"`
	Brand                 string    `json:"brand"`
	OwnershipType         string    `json:"ownershipType"`
	State                 State     `json:"state"`
	Partition             string    `json:"partition"`
	Location              string    `json:"location"`
	AgentName             string    `json:"agentName"`
	AgentID               string    `json:"agentId"`
	AgentEmail            string    `json:"agentEmail"`
	EntryDate             time.Time `json:"entryDate"`
	MACLan                string    `json:"macLan"`
	MACWifi               string    `json:"macWifi"`
	SignedCertificateLink string    `json:"signedCertificateLink,omitempty"`
	Seq                   uint64    `json:"seq"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// ClearCustody empties the location and agent fields.
func (e *Equipment) ClearCustody() {
	e.Location = ""
	e.AgentName = ""
	e.AgentID = ""
	e.AgentEmail = ""
}

// FoldSerial normalizes a serial for case-insensitive comparison.
func FoldSerial(serial string) string {
	return strings.ToLower(strings.TrimSpace(serial))
}

// ActionKind labels an audit entry.
type ActionKind string

// Audit action kinds.
const (
	ActionCreation             ActionKind = "Creation"
	ActionAssignment           ActionKind = "Assignment"
	ActionReassignment         ActionKind = "Re-Assignment"
	ActionReturn               ActionKind = "Return"
	ActionModification         ActionKind = "Modification"
	ActionMovement             ActionKind = "Movement"
	ActionModificationMovement ActionKind = "Modification & Movement"
	ActionDeletion             ActionKind = "Deletion"
	ActionConfiguration        ActionKind = "Configuration"
	ActionCertificateUploaded  ActionKind = "Acta Uploaded"
	ActionCertificateResent    ActionKind = "Resend"
)

// AuditEntry is an immutable history record. Logs are kept newest first.
type AuditEntry struct {
	ID        string     `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	Serial    string     `json:"serial"`
	Action    ActionKind `json:"action"`
	Detail    string     `json:"detail"`
}

// ConfigList names a stored configuration list.
type ConfigList string

// Configuration lists. Locations are backed by the partition registry rather
// than a stored list.
const (
	ListStates    ConfigList = "states"
	ListBrands    ConfigList = "brands"
	ListLocations ConfigList = "locations"
)

// DefaultConfigValues returns the seed values for stored lists.
func DefaultConfigValues() map[ConfigList][]string {
	states := make([]string, 0, len(States()))
	for _, s := range States() {
		states = append(states, string(s))
	}
	return map[ConfigList][]string{
		ListStates: states,
		ListBrands: {"Dell", "HP", "Lenovo", "Apple"},
	}
}

// DefaultSites returns the seed site partitions.
func DefaultSites() []string {
	return []string{"7", "10", "12", "16"}
}

// DocumentKind distinguishes custody deliveries from return requests.
type DocumentKind string

// Document kinds.
const (
	DocumentCustody DocumentKind = "custody"
	DocumentReturn  DocumentKind = "return"
)

// DocumentRequest carries everything the issuance collaborator needs.
type DocumentRequest struct {
	Kind        DocumentKind `json:"kind"`
	AgentName   string       `json:"agentName"`
	AgentID     string       `json:"agentId"`
	AgentEmail  string       `json:"agentEmail"`
	Location    string       `json:"location"`
	ReturnEmail string       `json:"returnEmail,omitempty"`
	Equipment   Equipment    `json:"equipment"`
}

// Recipient returns the address the document is delivered to.
func (r DocumentRequest) Recipient() string {
	if r.Kind == DocumentReturn {
		return r.ReturnEmail
	}
	return r.AgentEmail
}

// OutboxStatus tracks delivery progress.
type OutboxStatus string

// Outbox statuses.
const (
	OutboxPending   OutboxStatus = "pending"
	OutboxDelivered OutboxStatus = "delivered"
	OutboxFailed    OutboxStatus = "failed"
)

// OutboxEvent is a durable document delivery request.
type OutboxEvent struct {
	ID            string          `json:"id"`
	Request       DocumentRequest `json:"request"`
	Status        OutboxStatus    `json:"status"`
	Attempts      int             `json:"attempts"`
	NextAttemptAt time.Time       `json:"nextAttemptAt"`
	LastError     string          `json:"lastError,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	DeliveredAt   *time.Time      `json:"deliveredAt,omitempty"`
	Seq           uint64          `json:"seq"`
}

// Due reports whether the event should be attempted at now.
func (e OutboxEvent) Due(now time.Time) bool {
	return e.Status == OutboxPending && !e.NextAttemptAt.After(now)
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
)

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock && v.Message != "" {
			return v.Message
		}
	}
	return "transaction blocked by rules"
}
