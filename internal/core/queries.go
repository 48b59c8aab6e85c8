package core

import (
	"context"
	"strings"

	"custodycore/pkg/domain"
)

// AllLocations selects every partition in FilteredEquipment.
const AllLocations = "All Locations"

// DefaultPageSize is used when a query does not specify one.
const DefaultPageSize = 30

// DefaultRecentActivity bounds RecentActivity when no limit is given.
const DefaultRecentActivity = 5

// EquipmentFilters narrows FilteredEquipment. Empty fields match everything.
type EquipmentFilters struct {
	General   string `json:"general" form:"general"`
	State     string `json:"state" form:"state"`
	Brand     string `json:"brand" form:"brand"`
	Ownership string `json:"ownership" form:"ownership"`
}

// EquipmentPage is one page of a filtered listing.
type EquipmentPage struct {
	Items      []domain.Equipment `json:"items"`
	Page       int                `json:"page"`
	TotalPages int                `json:"totalPages"`
	PageSize   int                `json:"pageSize"`
	Total      int                `json:"total"`
}

// StockItem is the short form of a pool record.
type StockItem struct {
	ID     string `json:"id"`
	Serial string `json:"serial"`
	Name   string `json:"name"`
}

// FilteredEquipment pages through one partition, or all of them for
// AllLocations, after applying filters.
func (s *Service) FilteredEquipment(ctx context.Context, location string, page, pageSize int, filters EquipmentFilters) (EquipmentPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	location = strings.TrimSpace(location)
	var matched []domain.Equipment
	err := s.view(ctx, "filtered_equipment", func(v domain.TransactionView) error {
		var source []domain.Equipment
		switch {
		case location == "" || strings.EqualFold(location, AllLocations):
			source = v.ListAll()
		case location == v.PoolName() || v.HasPartition(location):
			source = v.ListPartition(location)
		default:
			return domain.NotFoundError{Entity: domain.EntityPartition, ID: location}
		}
		for _, rec := range source {
			if filters.match(rec) {
				matched = append(matched, rec)
			}
		}
		return nil
	})
	if err != nil {
		return EquipmentPage{}, err
	}
	totalPages := (len(matched) + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	items := make([]domain.Equipment, 0, pageSize)
	if start := (page - 1) * pageSize; start < len(matched) {
		end := min(start+pageSize, len(matched))
		items = append(items, matched[start:end]...)
	}
	return EquipmentPage{Items: items, Page: page, TotalPages: totalPages, PageSize: pageSize, Total: len(matched)}, nil
}

func (f EquipmentFilters) match(rec domain.Equipment) bool {
	if !equalFoldOrEmpty(f.State, string(rec.State)) || !equalFoldOrEmpty(f.Brand, rec.Brand) || !equalFoldOrEmpty(f.Ownership, rec.OwnershipType) {
		return false
	}
	needle := strings.ToLower(strings.TrimSpace(f.General))
	if needle == "" {
		return true
	}
	for _, v := range searchableValues(rec) {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

func equalFoldOrEmpty(filter, value string) bool {
	filter = strings.TrimSpace(filter)
	return filter == "" || strings.EqualFold(filter, strings.TrimSpace(value))
}

func searchableValues(rec domain.Equipment) []string {
	values := []string{
		rec.Serial, rec.Name, rec.Brand, rec.OwnershipType, string(rec.State),
		rec.Partition, rec.Location, rec.AgentName, rec.AgentID, rec.AgentEmail,
		rec.MACLan, rec.MACWifi, rec.SignedCertificateLink,
	}
	if !rec.EntryDate.IsZero() {
		values = append(values, rec.EntryDate.Format("2006-01-02"))
	}
	return values
}

// StockEquipment lists the pool in storage order.
func (s *Service) StockEquipment(ctx context.Context) ([]StockItem, error) {
	var out []StockItem
	err := s.view(ctx, "stock_equipment", func(v domain.TransactionView) error {
		recs := v.ListPartition(v.PoolName())
		out = make([]StockItem, 0, len(recs))
		for _, rec := range recs {
			out = append(out, StockItem{ID: rec.ID, Serial: rec.Serial, Name: rec.Name})
		}
		return nil
	})
	return out, err
}

// IndividualHistory returns the audit entries of one serial, newest first.
func (s *Service) IndividualHistory(ctx context.Context, serial string) ([]domain.AuditEntry, error) {
	want := domain.FoldSerial(serial)
	out := make([]domain.AuditEntry, 0)
	if want == "" {
		return out, nil
	}
	err := s.view(ctx, "individual_history", func(v domain.TransactionView) error {
		for _, entry := range v.ListAudit() {
			if domain.FoldSerial(entry.Serial) == want {
				out = append(out, entry)
			}
		}
		return nil
	})
	return out, err
}

// RecentActivity returns the newest limit audit entries.
func (s *Service) RecentActivity(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = DefaultRecentActivity
	}
	var out []domain.AuditEntry
	err := s.view(ctx, "recent_activity", func(v domain.TransactionView) error {
		log := v.ListAudit()
		out = log[:min(limit, len(log))]
		return nil
	})
	return out, err
}
