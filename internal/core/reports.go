package core

import (
	"context"
	"fmt"
	"strings"

	"custodycore/pkg/domain"
)

// ReportStats counts report results by state.
type ReportStats struct {
	Total          int `json:"total"`
	Assigned       int `json:"assigned"`
	Stock          int `json:"stock"`
	Available      int `json:"available"`
	InRepair       int `json:"inRepair"`
	Decommissioned int `json:"decommissioned"`
}

func (r *ReportStats) add(rec domain.Equipment) {
	r.Total++
	switch rec.State {
	case domain.StateAssigned:
		r.Assigned++
	case domain.StateStock:
		r.Stock++
	case domain.StateAvailable:
		r.Available++
	case domain.StateInRepair:
		r.InRepair++
	case domain.StateDecommissioned:
		r.Decommissioned++
	}
}

// Report is the result of AdvancedReport.
type Report struct {
	Results []domain.Equipment `json:"results"`
	Stats   ReportStats        `json:"stats"`
}

var reportFields = map[string]func(domain.Equipment) string{
	"serial":        func(e domain.Equipment) string { return e.Serial },
	"name":          func(e domain.Equipment) string { return e.Name },
	"brand":         func(e domain.Equipment) string { return e.Brand },
	"ownership":     func(e domain.Equipment) string { return e.OwnershipType },
	"ownershiptype": func(e domain.Equipment) string { return e.OwnershipType },
	"state":         func(e domain.Equipment) string { return string(e.State) },
	"location":      func(e domain.Equipment) string { return e.Partition },
	"piso":          func(e domain.Equipment) string { return e.Partition },
	"floor":         func(e domain.Equipment) string { return e.Partition },
	"agent":         func(e domain.Equipment) string { return e.AgentName },
	"agentname":     func(e domain.Equipment) string { return e.AgentName },
	"agentid":       func(e domain.Equipment) string { return e.AgentID },
	"agentemail":    func(e domain.Equipment) string { return e.AgentEmail },
	"maclan":        func(e domain.Equipment) string { return e.MACLan },
	"macwifi":       func(e domain.Equipment) string { return e.MACWifi },
}

// AdvancedReport selects records whose filterType field matches any of
// values, case-insensitively.
func (s *Service) AdvancedReport(ctx context.Context, filterType string, values []string) (Report, error) {
	field, ok := reportFields[strings.ToLower(strings.TrimSpace(filterType))]
	if !ok {
		return Report{}, domain.ValidationError{Field: "filterType", Message: fmt.Sprintf("Unknown report filter %q.", filterType)}
	}
	wanted := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			wanted[v] = struct{}{}
		}
	}
	if len(wanted) == 0 {
		return Report{}, domain.ValidationError{Field: "filterValues", Message: "A filter type and at least one value are required."}
	}
	report := Report{Results: make([]domain.Equipment, 0)}
	err := s.view(ctx, "advanced_report", func(v domain.TransactionView) error {
		for _, rec := range v.ListAll() {
			if _, hit := wanted[strings.ToLower(strings.TrimSpace(field(rec)))]; hit {
				report.Results = append(report.Results, rec)
				report.Stats.add(rec)
			}
		}
		return nil
	})
	return report, err
}

// LabelCount is one row of a grouped count.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// MissingSerial identifies a record stored without a serial.
type MissingSerial struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

// DashboardAlerts groups data quality warnings.
type DashboardAlerts struct {
	MissingSerial    []MissingSerial  `json:"missingSerial"`
	DuplicateSerials []DuplicateCount `json:"duplicateSerials"`
	DuplicateMACLan  []DuplicateCount `json:"duplicateMacLan"`
	DuplicateMACWifi []DuplicateCount `json:"duplicateMacWifi"`
}

// Dashboard summarises the whole inventory.
type Dashboard struct {
	TotalEquipment int                 `json:"totalEquipment"`
	TotalStock     int                 `json:"totalStock"`
	TotalAssigned  int                 `json:"totalAssigned"`
	ByLocation     []LabelCount        `json:"byLocation"`
	ByState        []LabelCount        `json:"byState"`
	Alerts         DashboardAlerts     `json:"alerts"`
	RecentActivity []domain.AuditEntry `json:"recentActivity"`
}

// Dashboard computes totals, grouped counts, duplicate alerts and the most
// recent audit entries.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	err := s.view(ctx, "dashboard", func(v domain.TransactionView) error {
		all := v.ListAll()
		byLocation := make(map[string]int)
		byState := make(map[string]int)
		var serials, lans, wifis []string
		d.Alerts.MissingSerial = make([]MissingSerial, 0)
		for _, rec := range all {
			d.TotalEquipment++
			switch rec.State {
			case domain.StateStock:
				d.TotalStock++
			case domain.StateAssigned:
				d.TotalAssigned++
			}
			byLocation[rec.Partition]++
			state := string(rec.State)
			if state == "" {
				state = "No Status"
			}
			byState[state]++
			if strings.TrimSpace(rec.Serial) == "" {
				d.Alerts.MissingSerial = append(d.Alerts.MissingSerial, MissingSerial{
					ID:       rec.ID,
					Name:     firstNonEmpty(rec.Name, "Unnamed item"),
					Location: rec.Partition,
				})
			}
			serials = append(serials, rec.Serial)
			lans = append(lans, rec.MACLan)
			wifis = append(wifis, rec.MACWifi)
		}
		d.ByLocation = sortedCounts(byLocation)
		d.ByState = sortedCounts(byState)
		d.Alerts.DuplicateSerials = DuplicateReport(serials)
		d.Alerts.DuplicateMACLan = DuplicateReport(lans)
		d.Alerts.DuplicateMACWifi = DuplicateReport(wifis)
		log := v.ListAudit()
		d.RecentActivity = log[:min(DefaultRecentActivity, len(log))]
		return nil
	})
	return d, err
}

func sortedCounts(counts map[string]int) []LabelCount {
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	domain.SortNatural(labels)
	out := make([]LabelCount, 0, len(labels))
	for _, label := range labels {
		out = append(out, LabelCount{Label: label, Count: counts[label]})
	}
	return out
}
