package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"custodycore/pkg/domain"
)

// ConfigListsCacheKey names the cached configuration lists entry.
const ConfigListsCacheKey = "configuration_lists"

// ConfigLists are the reference values offered to callers.
type ConfigLists struct {
	States         []string `json:"states"`
	Locations      []string `json:"locations"`
	Brands         []string `json:"brands"`
	Agents         []string `json:"agents"`
	OwnershipTypes []string `json:"ownershipTypes"`
}

// GetLists returns the configuration lists, served from cache when present.
// Cache failures are logged and the lists are rebuilt from the store.
func (s *Service) GetLists(ctx context.Context) (ConfigLists, error) {
	if raw, ok, err := s.cache.Get(ctx, ConfigListsCacheKey); err != nil {
		s.logger.Warn("config cache read failed", "error", domain.ExternalServiceError{Service: "cache", Err: err})
	} else if ok {
		var lists ConfigLists
		if err := json.Unmarshal(raw, &lists); err == nil {
			return lists, nil
		}
		s.logger.Warn("discarding malformed cached config lists")
	}
	s.cacheMu.Lock()
	gen := s.cacheGen
	s.cacheMu.Unlock()

	var lists ConfigLists
	err := s.view(ctx, "get_config_lists", func(v domain.TransactionView) error {
		lists = buildConfigLists(v)
		return nil
	})
	if err != nil {
		return ConfigLists{}, err
	}
	s.storeLists(ctx, lists, gen)
	return lists, nil
}

// storeLists caches lists read at generation gen unless an invalidation has
// happened since; the read may predate that mutation.
func (s *Service) storeLists(ctx context.Context, lists ConfigLists, gen uint64) {
	raw, err := json.Marshal(lists)
	if err != nil {
		return
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheGen != gen {
		return
	}
	if err := s.cache.Set(ctx, ConfigListsCacheKey, raw, s.cacheTTL); err != nil {
		s.logger.Warn("config cache write failed", "error", domain.ExternalServiceError{Service: "cache", Err: err})
	}
}

// Invalidate drops the cached configuration lists.
func (s *Service) Invalidate(ctx context.Context) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cacheGen++
	if err := s.cache.Delete(ctx, ConfigListsCacheKey); err != nil {
		s.logger.Warn("config cache invalidation failed", "error", domain.ExternalServiceError{Service: "cache", Err: err})
	}
}

func buildConfigLists(v domain.TransactionView) ConfigLists {
	lists := ConfigLists{
		States:    distinctSorted(v.ConfigValues(domain.ListStates)),
		Brands:    distinctSorted(v.ConfigValues(domain.ListBrands)),
		Locations: append([]string{v.PoolName()}, v.Partitions()...),
	}
	var agents, ownership []string
	for _, rec := range v.ListAll() {
		agents = append(agents, rec.AgentName)
		ownership = append(ownership, rec.OwnershipType)
	}
	lists.Agents = distinctSorted(agents)
	lists.OwnershipTypes = distinctSorted(ownership)
	return lists
}

func distinctSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	domain.SortNatural(out)
	return out
}

// ParseConfigList resolves a list name case-insensitively. "Pisos" and
// "floors" are accepted for locations.
func ParseConfigList(name string) (domain.ConfigList, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "states", "estados":
		return domain.ListStates, nil
	case "brands", "marcas":
		return domain.ListBrands, nil
	case "locations", "floors", "pisos":
		return domain.ListLocations, nil
	}
	return "", domain.ValidationError{Field: "list", Message: fmt.Sprintf("List %q not found.", name)}
}

// AddConfigItem appends value to list. Locations create a site partition.
func (s *Service) AddConfigItem(ctx context.Context, list domain.ConfigList, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", domain.ValidationError{Field: "value", Message: "Invalid data."}
	}
	if list == domain.ListStates {
		state, ok := domain.ParseState(value)
		if !ok {
			return "", domain.ValidationError{Field: "value", Message: fmt.Sprintf("%q is not a known equipment state.", value)}
		}
		value = string(state)
	}
	err := s.mutate(ctx, "add_config_item", func(tx domain.Transaction) error {
		if err := tx.AddConfigValue(list, value); err != nil {
			return err
		}
		tx.AppendAudit(domain.ActionConfiguration, "", fmt.Sprintf("Added %q to %s", value, list))
		return nil
	})
	if err != nil {
		return "", err
	}
	return "Item added.", nil
}

// DeleteConfigItem removes value from list. A location still holding
// equipment is refused.
func (s *Service) DeleteConfigItem(ctx context.Context, list domain.ConfigList, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", domain.ValidationError{Field: "value", Message: "Invalid data."}
	}
	err := s.mutate(ctx, "delete_config_item", func(tx domain.Transaction) error {
		if err := tx.RemoveConfigValue(list, value); err != nil {
			return err
		}
		tx.AppendAudit(domain.ActionConfiguration, "", fmt.Sprintf("Removed %q from %s", value, list))
		return nil
	})
	if err != nil {
		return "", err
	}
	return "Item removed.", nil
}

// RenameLocation renames a site partition and relabels its records.
func (s *Service) RenameLocation(ctx context.Context, oldName, newName string) (string, error) {
	oldName, newName = strings.TrimSpace(oldName), strings.TrimSpace(newName)
	if oldName == "" || newName == "" || oldName == newName {
		return "", domain.ValidationError{Field: "location", Message: "Invalid floor names."}
	}
	err := s.mutate(ctx, "rename_location", func(tx domain.Transaction) error {
		if err := tx.RenamePartition(oldName, newName); err != nil {
			return err
		}
		tx.AppendAudit(domain.ActionConfiguration, "", fmt.Sprintf("Floor renamed from %q to %q.", oldName, newName))
		return nil
	})
	if err != nil {
		return "", err
	}
	return "Floor renamed successfully.", nil
}
