package provider

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// LinksCall records the argument sets of one Links invocation, for call-count
// assertions against the cache.
type LinksCall struct {
	Primary   []string
	Secondary []string
}

// Memory is an in-memory Provider for tests and the demo binary. It records
// how often each operation is invoked so callers can verify cache behavior.
type Memory struct {
	mu sync.Mutex

	elements      map[string]ElementRecord
	elementTypes  map[string]ElementTypeRecord
	linkTypes     map[string]LinkTypeRecord
	propertyTypes map[string]PropertyTypeRecord
	links         []LinkRecord

	calls      map[string]int
	linksCalls []LinksCall
}

func NewMemory() *Memory {
	return &Memory{
		elements:      make(map[string]ElementRecord),
		elementTypes:  make(map[string]ElementTypeRecord),
		linkTypes:     make(map[string]LinkTypeRecord),
		propertyTypes: make(map[string]PropertyTypeRecord),
		calls:         make(map[string]int),
	}
}

func (m *Memory) AddElement(record ElementRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.elements[record.ID] = record
}

func (m *Memory) AddElementType(record ElementTypeRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.elementTypes[record.ID] = record
}

func (m *Memory) AddLinkType(record LinkTypeRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.linkTypes[record.ID] = record
}

func (m *Memory) AddPropertyType(record PropertyTypeRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.propertyTypes[record.ID] = record
}

func (m *Memory) AddLink(record LinkRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = append(m.links, record)
}

// Calls returns how often the named operation ran.
func (m *Memory) Calls(operation string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[operation]
}

// LinksCalls returns the recorded Links invocations in order.
func (m *Memory) LinksCalls() []LinksCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LinksCall, len(m.linksCalls))
	copy(out, m.linksCalls)
	return out
}

func (m *Memory) KnownElementTypes(ctx context.Context) ([]ElementTypeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["knownElementTypes"]++

	out := make([]ElementTypeRecord, 0, len(m.elementTypes))
	for _, record := range m.elementTypes {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) KnownLinkTypes(ctx context.Context) ([]LinkTypeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["knownLinkTypes"]++

	out := make([]LinkTypeRecord, 0, len(m.linkTypes))
	for _, record := range m.linkTypes {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Elements(ctx context.Context, ids []string) (map[string]ElementRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["elements"]++

	out := make(map[string]ElementRecord)
	for _, id := range ids {
		if record, ok := m.elements[id]; ok {
			out[id] = record
		}
	}
	return out, nil
}

func (m *Memory) ElementTypes(ctx context.Context, ids []string) (map[string]ElementTypeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["elementTypes"]++

	out := make(map[string]ElementTypeRecord)
	for _, id := range ids {
		if record, ok := m.elementTypes[id]; ok {
			out[id] = record
		}
	}
	return out, nil
}

func (m *Memory) LinkTypes(ctx context.Context, ids []string) (map[string]LinkTypeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["linkTypes"]++

	out := make(map[string]LinkTypeRecord)
	for _, id := range ids {
		if record, ok := m.linkTypes[id]; ok {
			out[id] = record
		}
	}
	return out, nil
}

func (m *Memory) PropertyTypes(ctx context.Context, ids []string) (map[string]PropertyTypeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["propertyTypes"]++

	out := make(map[string]PropertyTypeRecord)
	for _, id := range ids {
		if record, ok := m.propertyTypes[id]; ok {
			out[id] = record
		}
	}
	return out, nil
}

func (m *Memory) Links(ctx context.Context, primary, secondary []string) ([]LinkRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["links"]++
	m.linksCalls = append(m.linksCalls, LinksCall{
		Primary:   append([]string(nil), primary...),
		Secondary: append([]string(nil), secondary...),
	})

	inPrimary := toSet(primary)
	inSecondary := toSet(secondary)

	var out []LinkRecord
	for _, link := range m.links {
		forward := inPrimary[link.SourceID] && inSecondary[link.TargetID]
		backward := inSecondary[link.SourceID] && inPrimary[link.TargetID]
		if forward || backward {
			out = append(out, link)
		}
	}
	return out, nil
}

func (m *Memory) ConnectedLinkStats(ctx context.Context, elementID string, inexact bool) ([]LinkCount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["connectedLinkStats"]++

	counts := make(map[string]*LinkCount)
	var order []string
	for _, link := range m.links {
		if link.SourceID != elementID && link.TargetID != elementID {
			continue
		}
		c, ok := counts[link.TypeID]
		if !ok {
			c = &LinkCount{TypeID: link.TypeID, Inexact: inexact}
			counts[link.TypeID] = c
			order = append(order, link.TypeID)
		}
		if link.SourceID == elementID {
			c.OutCount++
		}
		if link.TargetID == elementID {
			c.InCount++
		}
	}

	sort.Strings(order)
	out := make([]LinkCount, 0, len(order))
	for _, typeID := range order {
		out = append(out, *counts[typeID])
	}
	return out, nil
}

func (m *Memory) Lookup(ctx context.Context, params LookupParams) ([]LinkedElement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["lookup"]++

	var out []LinkedElement
	for _, record := range m.elements {
		if !m.matchesLookup(record, params) {
			continue
		}
		linked := LinkedElement{Element: record}
		if params.RefElementID != "" {
			for _, link := range m.links {
				if link.SourceID == params.RefElementID && link.TargetID == record.ID {
					linked.OutLinkTypes = appendUnique(linked.OutLinkTypes, link.TypeID)
				}
				if link.TargetID == params.RefElementID && link.SourceID == record.ID {
					linked.InLinkTypes = appendUnique(linked.InLinkTypes, link.TypeID)
				}
			}
			if len(linked.InLinkTypes) == 0 && len(linked.OutLinkTypes) == 0 {
				continue
			}
		}
		out = append(out, linked)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Element.ID < out[j].Element.ID })
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

func (m *Memory) matchesLookup(record ElementRecord, params LookupParams) bool {
	if params.ElementTypeID != "" && !containsString(record.Types, params.ElementTypeID) {
		return false
	}
	if params.Text != "" {
		needle := strings.ToLower(params.Text)
		found := strings.Contains(strings.ToLower(record.ID), needle)
		for _, label := range record.Labels {
			if strings.Contains(strings.ToLower(label.Value), needle) {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func containsString(list []string, value string) bool {
	for _, candidate := range list {
		if candidate == value {
			return true
		}
	}
	return false
}

func appendUnique(list []string, value string) []string {
	if containsString(list, value) {
		return list
	}
	return append(list, value)
}
