package store

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/safar/localmeat/internal/models"
)

// FilteredFarms returns the farms whose name, location or any offering type
// contains searchText (case-insensitive), and, when typeFilters is not empty,
// that offer at least one of those types. Collection order is preserved.
func (m *Marketplace) FilteredFarms(searchText string, typeFilters []string) []models.Farm {
	m.mu.Lock()
	defer m.mu.Unlock()

	filters := make(map[string]struct{}, len(typeFilters))
	for _, t := range typeFilters {
		filters[t] = struct{}{}
	}
	return m.filteredFarms(searchText, filters)
}

func (m *Marketplace) filteredFarms(searchText string, filters map[string]struct{}) []models.Farm {
	needle := strings.ToLower(searchText)

	out := []models.Farm{}
	for _, f := range m.farms {
		if needle != "" && !farmMatches(f, needle) {
			continue
		}
		if len(filters) > 0 && !farmOffersAny(f, filters) {
			continue
		}
		out = append(out, cloneFarm(f))
	}
	return out
}

func farmMatches(f models.Farm, needle string) bool {
	if strings.Contains(strings.ToLower(f.Name), needle) ||
		strings.Contains(strings.ToLower(f.Location), needle) {
		return true
	}
	for _, o := range f.Offerings {
		if strings.Contains(strings.ToLower(o.Type), needle) {
			return true
		}
	}
	return false
}

func farmOffersAny(f models.Farm, types map[string]struct{}) bool {
	for _, o := range f.Offerings {
		if _, ok := types[o.Type]; ok {
			return true
		}
	}
	return false
}

// AllMeatTypes returns the distinct offering types across all farms, sorted.
func (m *Marketplace) AllMeatTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	types := make(map[string]struct{})
	for _, f := range m.farms {
		for _, o := range f.Offerings {
			types[o.Type] = struct{}{}
		}
	}
	return sortedKeys(types)
}

func (m *Marketplace) Farms() []models.Farm {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filteredFarms("", nil)
}

func (m *Marketplace) Farm(id uuid.UUID) (models.Farm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.findFarm(id)
	if !ok {
		return models.Farm{}, ErrFarmNotFound
	}
	return cloneFarm(*f), nil
}

// MyFarm returns the first farm owned by the session user.
func (m *Marketplace) MyFarm() (models.Farm, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == uuid.Nil {
		return models.Farm{}, false
	}
	for _, f := range m.farms {
		if f.OwnerID == m.session {
			return cloneFarm(f), true
		}
	}
	return models.Farm{}, false
}

// ContactFarm sends a message from the session user to the farm's owner.
func (m *Marketplace) ContactFarm(ctx context.Context, farmID uuid.UUID, content string) (models.Message, error) {
	m.mu.Lock()
	f, ok := m.findFarm(farmID)
	if !ok {
		m.commit(ctx, nil)
		return models.Message{}, ErrFarmNotFound
	}
	msg, fx, err := m.sendMessage(f.OwnerID, content)
	m.commit(ctx, fx)
	return msg, err
}

func (m *Marketplace) SearchText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searchText
}

func (m *Marketplace) SetSearchText(text string) {
	m.mu.Lock()
	m.searchText = text
	m.commit(context.Background(), browseChanged())
}

// FarmFilters returns the selected meat-type filters, sorted.
func (m *Marketplace) FarmFilters() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedKeys(m.farmFilters)
}

func (m *Marketplace) SetFarmFilters(types []string) {
	m.mu.Lock()
	m.farmFilters = make(map[string]struct{}, len(types))
	for _, t := range types {
		m.farmFilters[t] = struct{}{}
	}
	m.commit(context.Background(), browseChanged())
}

// ToggleFarmFilter selects meatType if it was not selected and deselects it
// otherwise. It reports whether the type is selected afterwards.
func (m *Marketplace) ToggleFarmFilter(meatType string) bool {
	m.mu.Lock()
	_, selected := m.farmFilters[meatType]
	if selected {
		delete(m.farmFilters, meatType)
	} else {
		m.farmFilters[meatType] = struct{}{}
	}
	m.commit(context.Background(), browseChanged())
	return !selected
}

func (m *Marketplace) ClearFarmFilters() {
	m.SetFarmFilters(nil)
}

// BrowseFarms applies the current search text and filters.
func (m *Marketplace) BrowseFarms() []models.Farm {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filteredFarms(m.searchText, m.farmFilters)
}

func browseChanged() *effects {
	fx := &effects{}
	fx.event(Event{Kind: EventBrowseChanged})
	return fx
}

// sortedKeys returns the keys of set in ascending order (nil when empty),
// matching slices.Sorted(maps.Keys(set)) on toolchains before Go 1.23.
func sortedKeys(set map[string]struct{}) []string {
	var keys []string
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
