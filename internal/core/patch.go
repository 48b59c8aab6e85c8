package core

import (
	"fmt"
	"strings"

	"custodycore/pkg/domain"
)

type patchField int

const (
	fieldSerial patchField = iota
	fieldName
	fieldBrand
	fieldOwnership
	fieldState
	fieldLocation
	fieldAgentName
	fieldAgentID
	fieldAgentEmail
	fieldMACLan
	fieldMACWifi
)

var fieldLabels = map[patchField]string{
	fieldSerial:     "Serial",
	fieldName:       "Name",
	fieldBrand:      "Brand",
	fieldOwnership:  "Ownership",
	fieldState:      "State",
	fieldLocation:   "Location",
	fieldAgentName:  "Agent",
	fieldAgentID:    "Agent ID",
	fieldAgentEmail: "Agent Email",
	fieldMACLan:     "MAC LAN",
	fieldMACWifi:    "MAC WiFi",
}

type fieldChange struct {
	field    patchField
	old, new string
}

func (c fieldChange) String() string {
	if c.field == fieldAgentName {
		switch {
		case c.old == "":
			return "Assigned to: " + c.new
		case c.new == "":
			return "Returned by: " + c.old
		default:
			return fmt.Sprintf("Re-assigned from: %s to: %s", c.old, c.new)
		}
	}
	return fmt.Sprintf("%s: '%s' -> '%s'", fieldLabels[c.field], orEmpty(c.old), orEmpty(c.new))
}

func orEmpty(v string) string {
	if v == "" {
		return "empty"
	}
	return v
}

func joinChanges(changes []fieldChange) string {
	parts := make([]string, len(changes))
	for i, c := range changes {
		parts[i] = c.String()
	}
	return strings.Join(parts, ". ")
}

type patchSlot struct {
	id  patchField
	val **string
}

// fields pairs each patch pointer with the record field it targets.
func (p *EquipmentPatch) fields() []patchSlot {
	return []patchSlot{
		{fieldSerial, &p.Serial},
		{fieldName, &p.Name},
		{fieldBrand, &p.Brand},
		{fieldOwnership, &p.OwnershipType},
		{fieldState, &p.State},
		{fieldLocation, &p.Location},
		{fieldAgentName, &p.AgentName},
		{fieldAgentID, &p.AgentID},
		{fieldAgentEmail, &p.AgentEmail},
		{fieldMACLan, &p.MACLan},
		{fieldMACWifi, &p.MACWifi},
	}
}

func recordField(e *domain.Equipment, f patchField) *string {
	switch f {
	case fieldSerial:
		return &e.Serial
	case fieldName:
		return &e.Name
	case fieldBrand:
		return &e.Brand
	case fieldOwnership:
		return &e.OwnershipType
	case fieldLocation:
		return &e.Location
	case fieldAgentName:
		return &e.AgentName
	case fieldAgentID:
		return &e.AgentID
	case fieldAgentEmail:
		return &e.AgentEmail
	case fieldMACLan:
		return &e.MACLan
	case fieldMACWifi:
		return &e.MACWifi
	}
	return nil
}

// normalizePatch trims every present value and canonicalises the state.
func normalizePatch(p EquipmentPatch) (EquipmentPatch, error) {
	out := p
	for _, f := range out.fields() {
		if *f.val == nil {
			continue
		}
		v := strings.TrimSpace(**f.val)
		*f.val = &v
	}
	if out.State != nil {
		st, ok := domain.ParseState(*out.State)
		if !ok {
			return EquipmentPatch{}, domain.ValidationError{Field: "state", Message: fmt.Sprintf("Unknown state %q.", *out.State)}
		}
		v := string(st)
		out.State = &v
	}
	return out, nil
}

func applyPatch(rec domain.Equipment, p EquipmentPatch) domain.Equipment {
	out := rec
	for _, f := range p.fields() {
		if *f.val == nil {
			continue
		}
		if f.id == fieldState {
			out.State = domain.State(**f.val)
			continue
		}
		*recordField(&out, f.id) = **f.val
	}
	return out
}

// describeChanges lists patched fields whose value differs. The entry date
// is never patched and so never reported.
func describeChanges(rec domain.Equipment, p EquipmentPatch) []fieldChange {
	var changes []fieldChange
	for _, f := range p.fields() {
		if *f.val == nil {
			continue
		}
		old := string(rec.State)
		if f.id != fieldState {
			old = *recordField(&rec, f.id)
		}
		if old != **f.val {
			changes = append(changes, fieldChange{field: f.id, old: old, new: **f.val})
		}
	}
	return changes
}
