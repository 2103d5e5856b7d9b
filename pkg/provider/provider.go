// Package provider defines the upstream graph data source consumed by the
// cache. Any concrete backend (SPARQL endpoint, REST service, embedded graph
// store) implements Provider; the cache treats node identifiers as opaque
// strings and never inspects record payloads.
package provider

import "context"

// LocalizedText is a human-readable literal with an optional language tag.
type LocalizedText struct {
	Value string `json:"value"`
	Lang  string `json:"lang,omitempty"`
}

// ElementRecord describes one graph entity.
type ElementRecord struct {
	ID         string              `json:"id"`
	Types      []string            `json:"types,omitempty"`
	Labels     []LocalizedText     `json:"labels,omitempty"`
	Properties map[string][]string `json:"properties,omitempty"`
}

// ElementTypeRecord describes an entity class.
type ElementTypeRecord struct {
	ID     string          `json:"id"`
	Labels []LocalizedText `json:"labels,omitempty"`
	Count  int             `json:"count,omitempty"`
}

// LinkTypeRecord describes an edge type.
type LinkTypeRecord struct {
	ID     string          `json:"id"`
	Labels []LocalizedText `json:"labels,omitempty"`
	Count  int             `json:"count,omitempty"`
}

// PropertyTypeRecord describes a property.
type PropertyTypeRecord struct {
	ID     string          `json:"id"`
	Labels []LocalizedText `json:"labels,omitempty"`
}

// LinkRecord is one directed edge between two elements.
type LinkRecord struct {
	SourceID   string              `json:"sourceId"`
	TargetID   string              `json:"targetId"`
	TypeID     string              `json:"typeId"`
	Properties map[string][]string `json:"properties,omitempty"`
}

// LinkCount summarizes the edges connected to one element, per link type.
type LinkCount struct {
	TypeID   string `json:"typeId"`
	Inexact  bool   `json:"inexact,omitempty"`
	InCount  int    `json:"inCount"`
	OutCount int    `json:"outCount"`
}

// LookupParams is a free-text or structured neighborhood search request.
type LookupParams struct {
	Text          string `json:"text,omitempty"`
	ElementTypeID string `json:"elementTypeId,omitempty"`
	RefElementID  string `json:"refElementId,omitempty"`
	RefLinkTypeID string `json:"refLinkTypeId,omitempty"`
	Direction     string `json:"direction,omitempty"` // "in", "out" or empty for both
	Limit         int    `json:"limit,omitempty"`
}

// LinkedElement is one lookup result: an element plus the link types that
// connect it to the reference element, if any.
type LinkedElement struct {
	Element     ElementRecord `json:"element"`
	InLinkTypes []string      `json:"inLinkTypes,omitempty"`
	OutLinkTypes []string     `json:"outLinkTypes,omitempty"`
}

// Provider is the narrow upstream contract the cache wraps. All batch
// operations return maps keyed by the requested identifiers; absent keys mean
// the backend has no record for them. Links returns every edge with one
// endpoint in primary and the other in secondary, in both orientations.
// Implementations must honor ctx cancellation.
type Provider interface {
	KnownElementTypes(ctx context.Context) ([]ElementTypeRecord, error)
	KnownLinkTypes(ctx context.Context) ([]LinkTypeRecord, error)

	Elements(ctx context.Context, ids []string) (map[string]ElementRecord, error)
	ElementTypes(ctx context.Context, ids []string) (map[string]ElementTypeRecord, error)
	LinkTypes(ctx context.Context, ids []string) (map[string]LinkTypeRecord, error)
	PropertyTypes(ctx context.Context, ids []string) (map[string]PropertyTypeRecord, error)

	Links(ctx context.Context, primary, secondary []string) ([]LinkRecord, error)
	ConnectedLinkStats(ctx context.Context, elementID string, inexact bool) ([]LinkCount, error)
	Lookup(ctx context.Context, params LookupParams) ([]LinkedElement, error)
}
