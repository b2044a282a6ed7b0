package flow

import (
	"channelflow-backend/internal/component"
	appErrors "channelflow-backend/pkg/errors"
)

// Validate checks the document structurally and against the component specs
// the resolver knows. It returns the first problem found.
func (d *Document) Validate(res component.Resolver) error {
	if d.ID == "" {
		return appErrors.NewValidation("flow id must not be empty")
	}
	if d.Name == "" {
		return appErrors.NewValidation("flow name must not be empty")
	}
	if len(d.Nodes) == 0 {
		return appErrors.NewValidation("flow must declare at least one node")
	}

	specs := make(map[string]component.Spec, len(d.Nodes))
	seenNodes := make(map[string]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		if n.ID == "" {
			return appErrors.NewValidation("node id must not be empty")
		}
		if seenNodes[n.ID] {
			return appErrors.NewValidationf("duplicate node id %q", n.ID)
		}
		seenNodes[n.ID] = true

		spec, ok := res.Spec(n.Type)
		if !ok {
			return appErrors.NewValidationf("node %q has unknown component type %q", n.ID, n.Type)
		}
		specs[n.ID] = spec
	}

	seenEdges := make(map[string]bool, len(d.Edges))
	boundInputs := make(map[string]bool, len(d.Edges))
	for _, e := range d.Edges {
		id := e.ID
		if id == "" {
			id = e.DefaultID()
		}
		if seenEdges[id] {
			return appErrors.NewValidationf("duplicate edge id %q", id)
		}
		seenEdges[id] = true

		if !seenNodes[e.Source] {
			return appErrors.NewValidationf("edge %q references unknown source node %q", id, e.Source)
		}
		if !seenNodes[e.Target] {
			return appErrors.NewValidationf("edge %q references unknown target node %q", id, e.Target)
		}
		if e.Source == e.Target {
			return appErrors.NewValidationf("edge %q connects node %q to itself", id, e.Source)
		}
		if !specs[e.Source].HasOutput(e.SourceHandle) {
			return appErrors.NewValidationf("edge %q: component %q has no output %q",
				id, specs[e.Source].Type, e.SourceHandle)
		}
		if !specs[e.Target].HasInput(e.TargetHandle) {
			return appErrors.NewValidationf("edge %q: component %q has no input %q",
				id, specs[e.Target].Type, e.TargetHandle)
		}

		// One writer per input handle keeps binding order unambiguous.
		inputKey := e.Target + "/" + e.TargetHandle
		if boundInputs[inputKey] {
			return appErrors.NewValidationf("input %q of node %q is bound by more than one edge",
				e.TargetHandle, e.Target)
		}
		boundInputs[inputKey] = true
	}

	if _, err := d.TopoOrder(); err != nil {
		return err
	}
	return nil
}
