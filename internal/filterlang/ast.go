// Package filterlang parses and compiles JSON filter trees into a posting
// bitmap over document ordinals, with an LRU+TTL cache of parsed ASTs
// keyed by the SHA-256 of their canonical JSON form.
package filterlang

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/vectorkeep/vectorkeep/internal/metadata"
)

// Kind is one of the five filter-tree node kinds.
type Kind string

const (
	KindTerm    Kind = "term"
	KindRange   Kind = "range"
	KindMust    Kind = "must"
	KindShould  Kind = "should"
	KindMustNot Kind = "must_not"
)

// Node is one filter-tree node. Term leaves carry Field/Value; range leaves
// carry Field plus bounds; must/should/must_not carry Children.
type Node struct {
	Kind     Kind       `json:"kind"`
	Field    string     `json:"field,omitempty"`
	Value    string     `json:"value,omitempty"`
	GTE      *float64   `json:"gte,omitempty"`
	GT       *float64   `json:"gt,omitempty"`
	LTE      *float64   `json:"lte,omitempty"`
	LT       *float64   `json:"lt,omitempty"`
	Children []*Node    `json:"children,omitempty"`
}

// Parse decodes a filter tree from JSON and validates its shape.
func Parse(data []byte) (*Node, error) {
	var n Node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("filterlang: invalid json: %w", err)
	}
	if err := n.validate(); err != nil {
		return nil, err
	}
	return &n, nil
}

func (n *Node) validate() error {
	switch n.Kind {
	case KindTerm:
		if n.Field == "" {
			return fmt.Errorf("filterlang: term node missing field")
		}
	case KindRange:
		if n.Field == "" {
			return fmt.Errorf("filterlang: range node missing field")
		}
		if n.GTE == nil && n.GT == nil && n.LTE == nil && n.LT == nil {
			return fmt.Errorf("filterlang: range node has no bounds")
		}
	case KindMust, KindShould, KindMustNot:
		if len(n.Children) == 0 {
			return fmt.Errorf("filterlang: %s node has no children", n.Kind)
		}
		for _, c := range n.Children {
			if err := c.validate(); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("filterlang: unknown node kind %q", n.Kind)
	}
	return nil
}

func (n *Node) bounds() metadata.RangeBounds {
	return metadata.RangeBounds{GTE: n.GTE, GT: n.GT, LTE: n.LTE, LT: n.LT}
}

// CanonicalJSON re-marshals the node with map keys and slices in a
// deterministic order (Go's encoding/json already emits struct fields in
// declaration order and is therefore already canonical for this type), so
// CacheKey is stable across equivalent inputs built from the same shape.
func CanonicalJSON(n *Node) ([]byte, error) {
	return json.Marshal(n)
}

// CacheKey returns the SHA-256 of raw's canonical JSON form (raw decoded
// into a Node and re-marshalled by CanonicalJSON), the key the AST cache
// uses. Input that does not decode into a Node is hashed as-is.
func CacheKey(raw []byte) [32]byte {
	var n Node
	if err := json.Unmarshal(raw, &n); err == nil {
		if canon, err := CanonicalJSON(&n); err == nil {
			return sha256.Sum256(canon)
		}
	}
	return sha256.Sum256(raw)
}
