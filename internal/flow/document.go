// Package flow models declarative flow documents: directed graphs whose nodes
// are typed components and whose edges bind a named output handle of one node
// to a named input handle of another.
package flow

import (
	"encoding/json"
	"fmt"

	appErrors "channelflow-backend/pkg/errors"
)

// Position is a design-surface hint and has no runtime meaning.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one component instance in a flow. Data holds the node's static
// input values; edge bindings and run tweaks overlay it at execution time.
type Node struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Position Position       `json:"position"`
	Data     map[string]any `json:"data,omitempty"`
}

// Edge is a directed binding from a named output handle of the source node
// to a named input handle of the target node.
type Edge struct {
	ID           string `json:"id,omitempty"`
	Source       string `json:"source"`
	SourceHandle string `json:"source_handle"`
	Target       string `json:"target"`
	TargetHandle string `json:"target_handle"`
}

// DefaultID derives a stable edge id from its endpoints.
func (e Edge) DefaultID() string {
	return fmt.Sprintf("e-%s-%s-%s-%s", e.Source, e.SourceHandle, e.Target, e.TargetHandle)
}

// Document is a complete flow definition.
type Document struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Nodes       []Node `json:"nodes"`
	Edges       []Edge `json:"edges"`
}

// Parse decodes a flow document and fills in missing edge ids.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, appErrors.Wrap(err, "failed to parse flow document")
	}
	for i := range doc.Edges {
		if doc.Edges[i].ID == "" {
			doc.Edges[i].ID = doc.Edges[i].DefaultID()
		}
	}
	return &doc, nil
}

// MarshalIndent renders the document in the canonical on-disk form.
func (d *Document) MarshalIndent() ([]byte, error) {
	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to marshal flow document")
	}
	return append(out, '\n'), nil
}

// Node returns the node with the given id.
func (d *Document) Node(id string) (*Node, bool) {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i], true
		}
	}
	return nil, false
}

// Inbound lists the edges targeting nodeID.
func (d *Document) Inbound(nodeID string) []Edge {
	var out []Edge
	for _, e := range d.Edges {
		if e.Target == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// IsSink reports whether no edge consumes any output of nodeID.
func (d *Document) IsSink(nodeID string) bool {
	for _, e := range d.Edges {
		if e.Source == nodeID {
			return false
		}
	}
	return true
}

// TopoOrder returns node ids in a valid execution order. Nodes become ready
// in declaration order, so the result is deterministic for a given document.
func (d *Document) TopoOrder() ([]string, error) {
	indegree := make(map[string]int, len(d.Nodes))
	for _, n := range d.Nodes {
		indegree[n.ID] = 0
	}
	for _, e := range d.Edges {
		indegree[e.Target]++
	}

	var queue []string
	for _, n := range d.Nodes {
		if indegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	order := make([]string, 0, len(d.Nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		for _, e := range d.Edges {
			if e.Source != id {
				continue
			}
			indegree[e.Target]--
			if indegree[e.Target] == 0 {
				queue = append(queue, e.Target)
			}
		}
	}

	if len(order) != len(d.Nodes) {
		return nil, appErrors.NewValidation("flow contains a cycle")
	}
	return order, nil
}
