// Package memory provides an in-memory implementation of the partition store
// used for tests and ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"custodycore/pkg/domain"

	"github.com/google/uuid"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Equipment aliases domain.Equipment.
	Equipment = domain.Equipment
	// AuditEntry aliases domain.AuditEntry.
	AuditEntry = domain.AuditEntry
	// OutboxEvent aliases domain.OutboxEvent.
	OutboxEvent = domain.OutboxEvent
	// ConfigList aliases domain.ConfigList.
	ConfigList = domain.ConfigList
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// memoryState holds every record in a single collection keyed by stable ID.
// byPartition is the location index: partition name to IDs in storage order.
// Audit entries are immutable and the slice is replaced on append, so clones
// may share it.
type memoryState struct {
	pool        string
	equipment   map[string]Equipment
	byPartition map[string][]string
	audit       []AuditEntry
	config      map[ConfigList][]string
	outbox      map[string]OutboxEvent
	seq         uint64
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Equipment  map[string]Equipment    `json:"equipment"`
	Partitions []string                `json:"partitions"`
	Audit      []AuditEntry            `json:"audit"`
	Config     map[ConfigList][]string `json:"config"`
	Outbox     map[string]OutboxEvent  `json:"outbox"`
	Seq        uint64                  `json:"seq"`
}

func newMemoryState(pool string) memoryState {
	s := memoryState{
		pool:        pool,
		equipment:   make(map[string]Equipment),
		byPartition: map[string][]string{pool: nil},
		config:      make(map[ConfigList][]string),
		outbox:      make(map[string]OutboxEvent),
	}
	for list, values := range domain.DefaultConfigValues() {
		s.config[list] = append([]string(nil), values...)
	}
	for _, site := range domain.DefaultSites() {
		s.byPartition[site] = nil
	}
	return s
}

func (s memoryState) clone() memoryState {
	cp := memoryState{
		pool:        s.pool,
		equipment:   make(map[string]Equipment, len(s.equipment)),
		byPartition: make(map[string][]string, len(s.byPartition)),
		audit:       s.audit,
		config:      make(map[ConfigList][]string, len(s.config)),
		outbox:      make(map[string]OutboxEvent, len(s.outbox)),
		seq:         s.seq,
	}
	for k, v := range s.equipment {
		cp.equipment[k] = v
	}
	for k, ids := range s.byPartition {
		cp.byPartition[k] = append([]string(nil), ids...)
	}
	for k, v := range s.config {
		cp.config[k] = append([]string(nil), v...)
	}
	for k, v := range s.outbox {
		cp.outbox[k] = cloneOutbox(v)
	}
	return cp
}

func cloneOutbox(e OutboxEvent) OutboxEvent {
	if e.DeliveredAt != nil {
		at := *e.DeliveredAt
		e.DeliveredAt = &at
	}
	return e
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	cp := state.clone()
	s := Snapshot{
		Equipment:  cp.equipment,
		Partitions: make([]string, 0, len(cp.byPartition)),
		Audit:      append([]AuditEntry(nil), cp.audit...),
		Config:     cp.config,
		Outbox:     cp.outbox,
		Seq:        cp.seq,
	}
	for name := range cp.byPartition {
		if name != cp.pool {
			s.Partitions = append(s.Partitions, name)
		}
	}
	domain.SortNatural(s.Partitions)
	return s
}

// memoryStateFromSnapshot rebuilds the location index from record partitions,
// ordering each partition by Seq.
func memoryStateFromSnapshot(pool string, s Snapshot) memoryState {
	state := memoryState{
		pool:        pool,
		equipment:   make(map[string]Equipment, len(s.Equipment)),
		byPartition: map[string][]string{pool: nil},
		audit:       append([]AuditEntry(nil), s.Audit...),
		config:      make(map[ConfigList][]string),
		outbox:      make(map[string]OutboxEvent, len(s.Outbox)),
		seq:         s.Seq,
	}
	for _, name := range s.Partitions {
		if _, ok := state.byPartition[name]; !ok {
			state.byPartition[name] = nil
		}
	}
	records := make([]Equipment, 0, len(s.Equipment))
	for id, e := range s.Equipment {
		e.ID = id
		if e.Partition == "" {
			e.Partition = pool
		}
		if e.Seq > state.seq {
			state.seq = e.Seq
		}
		records = append(records, e)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Seq != records[j].Seq {
			return records[i].Seq < records[j].Seq
		}
		return records[i].ID < records[j].ID
	})
	for _, e := range records {
		state.equipment[e.ID] = e
		state.byPartition[e.Partition] = append(state.byPartition[e.Partition], e.ID)
	}
	if s.Config == nil {
		for list, values := range domain.DefaultConfigValues() {
			state.config[list] = append([]string(nil), values...)
		}
	} else {
		for list, values := range s.Config {
			state.config[list] = append([]string(nil), values...)
		}
	}
	for id, e := range s.Outbox {
		e.ID = id
		state.outbox[id] = cloneOutbox(e)
	}
	return state
}

// Option configures a Store.
type Option func(*Store)

// WithPoolName overrides the unassigned pool partition name.
func WithPoolName(name string) Option {
	return func(s *Store) {
		if strings.TrimSpace(name) != "" {
			s.pool = strings.TrimSpace(name)
		}
	}
}

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// Store provides an in-memory transactional store for equipment records.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
	pool   string
}

// NewStore constructs an in-memory store backed by the provided rules engine.
// An empty store is seeded with the default configuration lists and sites.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
		pool:   domain.DefaultPoolName,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = newMemoryState(s.pool)
	return s
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(s.pool, snapshot)
}

// RulesEngine exposes the configured engine so callers can register rules.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// PoolName returns the unassigned pool partition name.
func (s *Store) PoolName() string { return s.pool }

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces the live state only when fn succeeds and no blocking rule
// violation is reported.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	return s.RunInTransactionWithCommit(ctx, fn, nil)
}

// RunInTransactionWithCommit is RunInTransaction with a durability hook.
// commit receives the candidate state after rules pass and before it becomes
// live; an error from commit discards the candidate and is returned as is.
func (s *Store) RunInTransactionWithCommit(ctx context.Context, fn func(tx Transaction) error, commit func(Snapshot) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		transactionView: transactionView{state: s.state.clone()},
		now:             s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, tx.transactionView, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if commit != nil {
		if err := commit(snapshotFromMemoryState(tx.state)); err != nil {
			return result, err
		}
	}
	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(transactionView{state: snapshot})
}

type transactionView struct {
	state memoryState
}

func (v transactionView) PoolName() string { return v.state.pool }

func (v transactionView) ListPartition(name string) []Equipment {
	ids := v.state.byPartition[name]
	out := make([]Equipment, 0, len(ids))
	for _, id := range ids {
		out = append(out, v.state.equipment[id])
	}
	return out
}

// ListAll returns the pool first, then each site in natural order.
func (v transactionView) ListAll() []Equipment {
	out := make([]Equipment, 0, len(v.state.equipment))
	out = append(out, v.ListPartition(v.state.pool)...)
	for _, name := range v.Partitions() {
		out = append(out, v.ListPartition(name)...)
	}
	return out
}

func (v transactionView) FindEquipment(id string) (Equipment, bool) {
	e, ok := v.state.equipment[id]
	return e, ok
}

// Partitions returns site partition names in natural order, excluding the pool.
func (v transactionView) Partitions() []string {
	names := make([]string, 0, len(v.state.byPartition))
	for name := range v.state.byPartition {
		if name != v.state.pool {
			names = append(names, name)
		}
	}
	domain.SortNatural(names)
	return names
}

func (v transactionView) HasPartition(name string) bool {
	_, ok := v.state.byPartition[name]
	return ok
}

func (v transactionView) ListAudit() []AuditEntry {
	return append([]AuditEntry(nil), v.state.audit...)
}

func (v transactionView) ConfigValues(list ConfigList) []string {
	return append([]string(nil), v.state.config[list]...)
}

// ListOutbox returns outbox events in enqueue order.
func (v transactionView) ListOutbox() []OutboxEvent {
	out := make([]OutboxEvent, 0, len(v.state.outbox))
	for _, e := range v.state.outbox {
		out = append(out, cloneOutbox(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

type transaction struct {
	transactionView
	changes []Change
	now     time.Time
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

func (tx *transaction) Now() time.Time { return tx.now }

func (tx *transaction) nextSeq() uint64 {
	tx.state.seq++
	return tx.state.seq
}

func (tx *transaction) ensurePartition(name string) {
	if _, ok := tx.state.byPartition[name]; ok {
		return
	}
	tx.state.byPartition[name] = nil
	tx.recordChange(Change{Entity: domain.EntityPartition, Action: domain.ActionCreate, After: name})
}

func (tx *transaction) unindex(partition, id string) {
	ids := tx.state.byPartition[partition]
	for i, candidate := range ids {
		if candidate == id {
			tx.state.byPartition[partition] = append(ids[:i:i], ids[i+1:]...)
			return
		}
	}
}

func (tx *transaction) findIn(partition, id string) (Equipment, error) {
	e, ok := tx.state.equipment[id]
	if !ok || e.Partition != partition {
		return Equipment{}, domain.NotFoundError{Entity: domain.EntityEquipment, ID: id}
	}
	return e, nil
}

// Insert appends a new record to partition, creating the partition if needed.
func (tx *transaction) Insert(partition string, record Equipment) (Equipment, error) {
	if partition == "" {
		partition = tx.state.pool
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if _, exists := tx.state.equipment[record.ID]; exists {
		return Equipment{}, fmt.Errorf("equipment %q already exists", record.ID)
	}
	tx.ensurePartition(partition)
	record.Partition = partition
	record.Seq = tx.nextSeq()
	record.UpdatedAt = tx.now
	tx.state.equipment[record.ID] = record
	tx.state.byPartition[partition] = append(tx.state.byPartition[partition], record.ID)
	tx.recordChange(Change{Entity: domain.EntityEquipment, Action: domain.ActionCreate, After: record})
	return record, nil
}

// Update mutates a record in place. Identity, partition and storage order are
// preserved; relocation goes through Move.
func (tx *transaction) Update(id string, mutator func(*Equipment) error) (Equipment, error) {
	current, ok := tx.state.equipment[id]
	if !ok {
		return Equipment{}, domain.NotFoundError{Entity: domain.EntityEquipment, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return Equipment{}, err
	}
	current.ID = before.ID
	current.Partition = before.Partition
	current.Seq = before.Seq
	current.UpdatedAt = tx.now
	tx.state.equipment[id] = current
	tx.recordChange(Change{Entity: domain.EntityEquipment, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// Move relocates a record from one partition to the end of another after
// applying mutator.
func (tx *transaction) Move(from, id, to string, mutator func(*Equipment) error) (Equipment, error) {
	current, err := tx.findIn(from, id)
	if err != nil {
		return Equipment{}, err
	}
	if to == "" {
		to = tx.state.pool
	}
	before := current
	if mutator != nil {
		if err := mutator(&current); err != nil {
			return Equipment{}, err
		}
	}
	tx.ensurePartition(to)
	tx.unindex(from, id)
	current.ID = before.ID
	current.Partition = to
	current.Seq = tx.nextSeq()
	current.UpdatedAt = tx.now
	tx.state.equipment[id] = current
	tx.state.byPartition[to] = append(tx.state.byPartition[to], id)
	tx.recordChange(Change{Entity: domain.EntityEquipment, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// RemoveAt deletes a record that must currently live in partition.
func (tx *transaction) RemoveAt(partition, id string) (Equipment, error) {
	current, err := tx.findIn(partition, id)
	if err != nil {
		return Equipment{}, err
	}
	delete(tx.state.equipment, id)
	tx.unindex(partition, id)
	tx.recordChange(Change{Entity: domain.EntityEquipment, Action: domain.ActionDelete, Before: current})
	return current, nil
}

// CreatePartition registers an empty site partition.
func (tx *transaction) CreatePartition(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ValidationError{Field: "partition", Message: "partition name is required"}
	}
	if tx.HasPartition(name) {
		return domain.ConflictError{Entity: domain.EntityPartition, Name: name}
	}
	tx.ensurePartition(name)
	return nil
}

// DeletePartition removes an empty site partition.
func (tx *transaction) DeletePartition(name string) error {
	if name == tx.state.pool {
		return domain.ConflictError{Entity: domain.EntityPartition, Name: name, Reason: "cannot be removed"}
	}
	ids, ok := tx.state.byPartition[name]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityPartition, ID: name}
	}
	if len(ids) > 0 {
		return domain.ConflictError{Entity: domain.EntityPartition, Name: name, Reason: fmt.Sprintf("still holds %d item(s)", len(ids))}
	}
	delete(tx.state.byPartition, name)
	tx.recordChange(Change{Entity: domain.EntityPartition, Action: domain.ActionDelete, Before: name})
	return nil
}

// RenamePartition renames a site partition and relabels its records.
func (tx *transaction) RenamePartition(oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return domain.ValidationError{Field: "partition", Message: "new partition name is required"}
	}
	if oldName == tx.state.pool {
		return domain.ConflictError{Entity: domain.EntityPartition, Name: oldName, Reason: "cannot be renamed"}
	}
	ids, ok := tx.state.byPartition[oldName]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityPartition, ID: oldName}
	}
	if tx.HasPartition(newName) {
		return domain.ConflictError{Entity: domain.EntityPartition, Name: newName}
	}
	for _, id := range ids {
		before := tx.state.equipment[id]
		after := before
		after.Partition = newName
		if after.Location == oldName {
			after.Location = newName
		}
		after.UpdatedAt = tx.now
		tx.state.equipment[id] = after
		tx.recordChange(Change{Entity: domain.EntityEquipment, Action: domain.ActionUpdate, Before: before, After: after})
	}
	tx.state.byPartition[newName] = ids
	delete(tx.state.byPartition, oldName)
	tx.recordChange(Change{Entity: domain.EntityPartition, Action: domain.ActionUpdate, Before: oldName, After: newName})
	return nil
}

// AppendAudit inserts an entry at the head of the log.
func (tx *transaction) AppendAudit(action domain.ActionKind, serial, detail string) AuditEntry {
	if strings.TrimSpace(serial) == "" {
		serial = domain.NotAvailable
	}
	entry := AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: tx.now,
		Serial:    serial,
		Action:    action,
		Detail:    detail,
	}
	log := make([]AuditEntry, 0, len(tx.state.audit)+1)
	log = append(log, entry)
	tx.state.audit = append(log, tx.state.audit...)
	return entry
}

// AddConfigValue appends a value to a stored list. Location values register
// a site partition instead.
func (tx *transaction) AddConfigValue(list ConfigList, value string) error {
	value = strings.TrimSpace(value)
	if list == domain.ListLocations {
		return tx.CreatePartition(value)
	}
	if value == "" {
		return domain.ValidationError{Field: string(list), Message: "value is required"}
	}
	for _, existing := range tx.state.config[list] {
		if strings.EqualFold(existing, value) {
			return domain.ConflictError{Entity: domain.EntityConfig, Name: value}
		}
	}
	tx.state.config[list] = append(tx.state.config[list], value)
	tx.recordChange(Change{Entity: domain.EntityConfig, Action: domain.ActionCreate, After: value})
	return nil
}

// RemoveConfigValue removes a value from a stored list. Location values
// remove the site partition.
func (tx *transaction) RemoveConfigValue(list ConfigList, value string) error {
	if list == domain.ListLocations {
		return tx.DeletePartition(value)
	}
	values := tx.state.config[list]
	for i, existing := range values {
		if strings.EqualFold(existing, strings.TrimSpace(value)) {
			tx.state.config[list] = append(values[:i:i], values[i+1:]...)
			tx.recordChange(Change{Entity: domain.EntityConfig, Action: domain.ActionDelete, Before: existing})
			return nil
		}
	}
	return domain.NotFoundError{Entity: domain.EntityConfig, ID: value}
}

// EnqueueDocument stores a pending delivery that is due immediately.
func (tx *transaction) EnqueueDocument(req domain.DocumentRequest) (OutboxEvent, error) {
	event := OutboxEvent{
		ID:            uuid.NewString(),
		Request:       req,
		Status:        domain.OutboxPending,
		NextAttemptAt: tx.now,
		CreatedAt:     tx.now,
		Seq:           tx.nextSeq(),
	}
	tx.state.outbox[event.ID] = event
	tx.recordChange(Change{Entity: domain.EntityOutbox, Action: domain.ActionCreate, After: event})
	return event, nil
}

// UpdateOutbox mutates a stored outbox event.
func (tx *transaction) UpdateOutbox(id string, mutator func(*OutboxEvent) error) (OutboxEvent, error) {
	current, ok := tx.state.outbox[id]
	if !ok {
		return OutboxEvent{}, domain.NotFoundError{Entity: domain.EntityOutbox, ID: id}
	}
	before := cloneOutbox(current)
	if err := mutator(&current); err != nil {
		return OutboxEvent{}, err
	}
	current.ID = id
	tx.state.outbox[id] = cloneOutbox(current)
	tx.recordChange(Change{Entity: domain.EntityOutbox, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}
