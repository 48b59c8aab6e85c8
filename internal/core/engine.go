package core

import (
	"context"
	"fmt"
	"strings"

	"custodycore/pkg/domain"
)

// Outcome is the result of a successful mutation.
type Outcome struct {
	Message string            `json:"message"`
	Record  *domain.Equipment `json:"record,omitempty"`
}

// NewEquipment carries the caller-supplied fields for Create.
type NewEquipment struct {
	Serial        string `json:"serial"`
	Name          string `json:"name"`
	Brand         string `json:"brand"`
	OwnershipType string `json:"ownershipType"`
	MACLan        string `json:"macLan"`
	MACWifi       string `json:"macWifi"`
}

// Assignment carries AssignFromStock input.
type Assignment struct {
	Serial     string `json:"serial"`
	AgentName  string `json:"agentName"`
	AgentID    string `json:"agentId"`
	AgentEmail string `json:"agentEmail"`
	Floor      string `json:"floor"`
}

// EquipmentPatch lists the fields to change. Nil fields are left untouched
// and excluded from the change summary.
type EquipmentPatch struct {
	Serial        *string `json:"serial,omitempty"`
	Name          *string `json:"name,omitempty"`
	Brand         *string `json:"brand,omitempty"`
	OwnershipType *string `json:"ownershipType,omitempty"`
	State         *string `json:"state,omitempty"`
	Location      *string `json:"location,omitempty"`
	AgentName     *string `json:"agentName,omitempty"`
	AgentID       *string `json:"agentId,omitempty"`
	AgentEmail    *string `json:"agentEmail,omitempty"`
	MACLan        *string `json:"macLan,omitempty"`
	MACWifi       *string `json:"macWifi,omitempty"`
}

// ReassignmentInfo requests a fresh custody document for a new agent.
type ReassignmentInfo struct {
	AgentName  string `json:"agentName"`
	AgentID    string `json:"agentId"`
	AgentEmail string `json:"agentEmail"`
	Floor      string `json:"floor"`
}

// ReturnInfo requests the signed certificate be sent for a return signature.
type ReturnInfo struct {
	ReturnEmail string `json:"returnEmail"`
}

// SwapInfo returns the record to the pool and optionally hands out a
// replacement from the pool.
type SwapInfo struct {
	Reason            string `json:"reason"`
	ReplacementSerial string `json:"replacementSerial"`
	AgentID           string `json:"agentId"`
	AgentEmail        string `json:"agentEmail"`
}

// SaveRequest groups the optional parts of SaveChanges.
type SaveRequest struct {
	Patch        EquipmentPatch    `json:"patch"`
	Reassignment *ReassignmentInfo `json:"reassignment,omitempty"`
	Return       *ReturnInfo       `json:"return,omitempty"`
	Swap         *SwapInfo         `json:"swap,omitempty"`
}

// Create adds a record to the pool in state Stock.
func (s *Service) Create(ctx context.Context, in NewEquipment) (Outcome, error) {
	in.Serial = strings.TrimSpace(in.Serial)
	in.Name = strings.TrimSpace(in.Name)
	if in.Serial == "" && in.Name == "" {
		return Outcome{}, domain.ValidationError{Field: "name", Message: "Item name or serial is required."}
	}
	var created domain.Equipment
	err := s.mutate(ctx, "create_equipment", func(tx domain.Transaction) error {
		if IsDuplicateSerial(tx, in.Serial, "") {
			return domain.DuplicateSerialError{Serial: in.Serial}
		}
		rec, err := tx.Insert(tx.PoolName(), domain.Equipment{
			Serial:        in.Serial,
			Name:          in.Name,
			Brand:         strings.TrimSpace(in.Brand),
			OwnershipType: strings.TrimSpace(in.OwnershipType),
			State:         domain.StateStock,
			EntryDate:     tx.Now(),
			MACLan:        strings.TrimSpace(in.MACLan),
			MACWifi:       strings.TrimSpace(in.MACWifi),
		})
		if err != nil {
			return err
		}
		created = rec
		tx.AppendAudit(domain.ActionCreation, rec.Serial, fmt.Sprintf("Item %q added to %s.", rec.Name, tx.PoolName()))
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Message: fmt.Sprintf("Item added to %s successfully.", created.Partition), Record: &created}, nil
}

// AssignFromStock hands the pool record with exactly this serial to an
// agent on a floor and queues a custody document.
func (s *Service) AssignFromStock(ctx context.Context, in Assignment) (Outcome, error) {
	in.Serial = strings.TrimSpace(in.Serial)
	in.AgentName = strings.TrimSpace(in.AgentName)
	in.AgentID = strings.TrimSpace(in.AgentID)
	in.AgentEmail = strings.TrimSpace(in.AgentEmail)
	in.Floor = strings.TrimSpace(in.Floor)
	if in.Serial == "" || in.AgentName == "" || in.AgentID == "" || in.AgentEmail == "" || in.Floor == "" {
		return Outcome{}, domain.ValidationError{Field: "assignment", Message: "Missing required fields for assignment."}
	}
	var assigned domain.Equipment
	err := s.mutate(ctx, "assign_from_stock", func(tx domain.Transaction) error {
		pool := tx.PoolName()
		if in.Floor == pool {
			return domain.ValidationError{Field: "floor", Message: fmt.Sprintf("Cannot assign an item to %s.", pool)}
		}
		rec, ok := findSerialIn(tx, pool, in.Serial)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityEquipment, ID: in.Serial}
		}
		moved, err := tx.Move(pool, rec.ID, in.Floor, func(e *domain.Equipment) error {
			e.State = domain.StateAssigned
			e.Location = in.Floor
			e.AgentName = in.AgentName
			e.AgentID = in.AgentID
			e.AgentEmail = in.AgentEmail
			return nil
		})
		if err != nil {
			return err
		}
		assigned = moved
		tx.AppendAudit(domain.ActionAssignment, moved.Serial, fmt.Sprintf("Assigned to %s on Floor %s.", in.AgentName, in.Floor))
		_, err = tx.EnqueueDocument(custodyRequest(moved, in.AgentName, in.AgentID, in.AgentEmail, in.Floor))
		return err
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Message: fmt.Sprintf("Item %s assigned. Delivery certificate queued for %s.", assigned.Serial, in.AgentEmail),
		Record:  &assigned,
	}, nil
}

// SaveChanges edits, relocates, returns or swaps the record at
// (partition, id). Everything happens in one transaction and is all-or-none:
// a swap whose replacement is missing or unusable returns an error and leaves
// the original record with its agent at the site, with no audit entry and no
// queued document.
func (s *Service) SaveChanges(ctx context.Context, partition, id string, req SaveRequest) (Outcome, error) {
	patch, err := normalizePatch(req.Patch)
	if err != nil {
		return Outcome{}, err
	}
	swapping := req.Swap != nil && strings.TrimSpace(req.Swap.Reason) != ""
	if swapping {
		if patch.State == nil {
			return Outcome{}, domain.ValidationError{Field: "state", Message: "A new state is required to return an item."}
		}
		if st := domain.State(*patch.State); !st.PoolResident() {
			return Outcome{}, domain.ValidationError{Field: "state", Message: fmt.Sprintf("Returned items cannot be left in state %s.", st)}
		}
	}
	var out Outcome
	err = s.mutate(ctx, "save_changes", func(tx domain.Transaction) error {
		original, err := locate(tx, partition, id)
		if err != nil {
			return err
		}
		if ra := req.Reassignment; ra != nil && strings.TrimSpace(ra.AgentEmail) != "" {
			merged := applyPatch(original, patch)
			floor := strings.TrimSpace(ra.Floor)
			if floor == "" {
				floor = merged.Location
			}
			if _, err := tx.EnqueueDocument(custodyRequest(merged, ra.AgentName, ra.AgentID, ra.AgentEmail, floor)); err != nil {
				return err
			}
			tx.AppendAudit(domain.ActionReassignment, original.Serial,
				fmt.Sprintf("Re-assigned to %s. New certificate sent to %s.", ra.AgentName, strings.TrimSpace(ra.AgentEmail)))
		}
		if rt := req.Return; rt != nil && strings.TrimSpace(rt.ReturnEmail) != "" {
			doc := custodyRequest(original, original.AgentName, original.AgentID, original.AgentEmail, original.Location)
			doc.Kind = domain.DocumentReturn
			doc.ReturnEmail = strings.TrimSpace(rt.ReturnEmail)
			if _, err := tx.EnqueueDocument(doc); err != nil {
				return err
			}
		}
		if swapping {
			rec, err := swap(tx, original, domain.State(*patch.State), *req.Swap)
			if err != nil {
				return err
			}
			out = Outcome{Message: "Item replacement completed successfully. A new certificate has been sent if applicable.", Record: &rec}
			return nil
		}
		out, err = edit(tx, original, patch)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

func swap(tx domain.Transaction, original domain.Equipment, state domain.State, info SwapInfo) (domain.Equipment, error) {
	pool := tx.PoolName()
	origin := original.Partition
	returned, err := tx.Move(origin, original.ID, pool, func(e *domain.Equipment) error {
		e.State = state
		e.ClearCustody()
		return nil
	})
	if err != nil {
		return domain.Equipment{}, err
	}
	tx.AppendAudit(domain.ActionReturn, original.Serial,
		fmt.Sprintf("Item returned by %s. Reason: %s. New status: %s", original.AgentName, strings.TrimSpace(info.Reason), state))

	replacementSerial := strings.TrimSpace(info.ReplacementSerial)
	if replacementSerial == "" {
		return returned, nil
	}
	if origin == pool {
		return domain.Equipment{}, domain.ValidationError{Field: "replacementSerial", Message: "A replacement requires an item assigned on a floor."}
	}
	candidate, ok := findSerialIn(tx, pool, replacementSerial)
	if !ok {
		return domain.Equipment{}, domain.NotFoundError{Entity: domain.EntityEquipment, ID: replacementSerial}
	}
	if candidate.ID == original.ID {
		return domain.Equipment{}, domain.ValidationError{Field: "replacementSerial", Message: "An item cannot replace itself."}
	}
	agentID := firstNonEmpty(info.AgentID, original.AgentID)
	agentEmail := firstNonEmpty(info.AgentEmail, original.AgentEmail)
	replacement, err := tx.Move(pool, candidate.ID, origin, func(e *domain.Equipment) error {
		e.State = domain.StateAssigned
		e.Location = origin
		e.AgentName = original.AgentName
		e.AgentID = agentID
		e.AgentEmail = agentEmail
		return nil
	})
	if err != nil {
		return domain.Equipment{}, err
	}
	tx.AppendAudit(domain.ActionAssignment, replacement.Serial,
		fmt.Sprintf("Assigned to %s as a replacement for %s.", original.AgentName, original.Serial))
	if _, err := tx.EnqueueDocument(custodyRequest(replacement, original.AgentName, agentID, agentEmail, origin)); err != nil {
		return domain.Equipment{}, err
	}
	return returned, nil
}

func edit(tx domain.Transaction, original domain.Equipment, patch EquipmentPatch) (Outcome, error) {
	if patch.Serial != nil && *patch.Serial != original.Serial && IsDuplicateSerial(tx, *patch.Serial, original.Serial) {
		return Outcome{}, domain.DuplicateSerialError{Serial: *patch.Serial, Edit: true}
	}
	merged := applyPatch(original, patch)
	changes := describeChanges(original, patch)
	pool := tx.PoolName()
	origin := original.Partition

	dest := ""
	switch {
	case merged.State.PoolResident() && origin != pool:
		dest = pool
	case patch.Location != nil && *patch.Location != "" && *patch.Location != origin:
		dest = *patch.Location
	}

	if dest == "" {
		updated, err := tx.Update(original.ID, func(e *domain.Equipment) error {
			*e = merged
			return nil
		})
		if err != nil {
			return Outcome{}, err
		}
		if len(changes) > 0 {
			tx.AppendAudit(domain.ActionModification, updated.Serial, joinChanges(changes))
		}
		return Outcome{Message: "Item updated.", Record: &updated}, nil
	}

	moved, err := tx.Move(origin, original.ID, dest, func(e *domain.Equipment) error {
		*e = merged
		if dest == pool {
			e.ClearCustody()
		} else {
			e.Location = dest
		}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	action := domain.ActionMovement
	for _, c := range changes {
		if c.field != fieldLocation {
			action = domain.ActionModificationMovement
			break
		}
	}
	detail := fmt.Sprintf("Moved to %s.", dest)
	if len(changes) > 0 {
		detail += " " + joinChanges(changes)
	}
	tx.AppendAudit(action, moved.Serial, detail)
	return Outcome{Message: "Item updated and moved.", Record: &moved}, nil
}

// Delete removes the record at (partition, id).
func (s *Service) Delete(ctx context.Context, partition, id string) (Outcome, error) {
	err := s.mutate(ctx, "delete_equipment", func(tx domain.Transaction) error {
		removed, err := tx.RemoveAt(partition, id)
		if err != nil {
			return err
		}
		tx.AppendAudit(domain.ActionDeletion, removed.Serial, fmt.Sprintf("Deleted item %q", removed.Name))
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Message: "Item deleted."}, nil
}

// ResendCertificate queues a new custody document for the record's current
// custody details, addressed to agentEmail.
func (s *Service) ResendCertificate(ctx context.Context, partition, id, agentID, agentEmail string) (Outcome, error) {
	agentID, agentEmail = strings.TrimSpace(agentID), strings.TrimSpace(agentEmail)
	if agentID == "" || agentEmail == "" {
		return Outcome{}, domain.ValidationError{Field: "agentEmail", Message: "Missing data to resend the certificate."}
	}
	var rec domain.Equipment
	err := s.mutate(ctx, "resend_certificate", func(tx domain.Transaction) error {
		var err error
		rec, err = locate(tx, partition, id)
		if err != nil {
			return err
		}
		location := firstNonEmpty(rec.Location, rec.Partition)
		if _, err := tx.EnqueueDocument(custodyRequest(rec, rec.AgentName, agentID, agentEmail, location)); err != nil {
			return err
		}
		tx.AppendAudit(domain.ActionCertificateResent, rec.Serial, fmt.Sprintf("Certificate resent to %s.", agentEmail))
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Message: fmt.Sprintf("Certificate for %s resent to %s.", rec.Serial, agentEmail), Record: &rec}, nil
}

func locate(view domain.RuleView, partition, id string) (domain.Equipment, error) {
	rec, ok := view.FindEquipment(id)
	if !ok || rec.Partition != partition {
		return domain.Equipment{}, domain.NotFoundError{Entity: domain.EntityEquipment, ID: id}
	}
	return rec, nil
}

// findSerialIn matches the stored serial verbatim.
func findSerialIn(view domain.RuleView, partition, serial string) (domain.Equipment, bool) {
	for _, rec := range view.ListPartition(partition) {
		if rec.Serial == serial {
			return rec, true
		}
	}
	return domain.Equipment{}, false
}

func custodyRequest(rec domain.Equipment, name, id, email, location string) domain.DocumentRequest {
	return domain.DocumentRequest{
		Kind:       domain.DocumentCustody,
		AgentName:  strings.TrimSpace(name),
		AgentID:    strings.TrimSpace(id),
		AgentEmail: strings.TrimSpace(email),
		Location:   strings.TrimSpace(location),
		Equipment:  rec,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
