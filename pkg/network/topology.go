package network

import (
	"fmt"
	"slices"
	"strings"

	prismerrors "github.com/wehubfusion/Prism/pkg/errors"
	"github.com/wehubfusion/Prism/pkg/identifier"
	"github.com/wehubfusion/Prism/pkg/processor"
)

type dependency struct {
	to       int
	required bool
}

// TopologicalOrder returns the processors in execution order: every
// processor comes after the processors feeding its inputs. Processors with
// no dependency between them keep insertion order.
//
// Cycles through optional inputs are broken at the earliest-inserted
// processor whose remaining inputs are all optional. A cycle among required
// inputs yields ErrCyclicDependency.
//
// The result is cached until the next structural change.
func (n *Network) TopologicalOrder() ([]processor.Processor, error) {
	if !n.orderValid {
		n.order, n.orderErr = n.computeOrder()
		n.orderValid = true
	}
	if n.orderErr != nil {
		return nil, n.orderErr
	}
	return slices.Clone(n.order), nil
}

// OrderIDs returns the ids of TopologicalOrder.
func (n *Network) OrderIDs() ([]identifier.Identifier, error) {
	order, err := n.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	ids := make([]identifier.Identifier, len(order))
	for i, p := range order {
		ids[i] = p.ID()
	}
	return ids, nil
}

// computeOrder runs Kahn's algorithm, always picking the ready processor
// with the lowest insertion index.
func (n *Network) computeOrder() ([]processor.Processor, error) {
	count := len(n.entries)
	position := make(map[identifier.Identifier]int, count)
	for i, e := range n.entries {
		position[e.proc.ID()] = i
	}

	succ := make([][]dependency, count)
	indeg := make([]int, count)
	requiredIndeg := make([]int, count)
	for _, c := range n.connections {
		from, to := position[c.From.Processor], position[c.To.Processor]
		required := n.isRequired(c)
		succ[from] = append(succ[from], dependency{to: to, required: required})
		indeg[to]++
		if required {
			requiredIndeg[to]++
		}
	}

	done := make([]bool, count)
	order := make([]processor.Processor, 0, count)
	for len(order) < count {
		next := pick(done, indeg)
		if next < 0 {
			next = pick(done, requiredIndeg)
		}
		if next < 0 {
			return nil, n.cycleError(done)
		}
		done[next] = true
		order = append(order, n.entries[next].proc)
		for _, d := range succ[next] {
			indeg[d.to]--
			if d.required {
				requiredIndeg[d.to]--
			}
		}
	}
	return order, nil
}

func pick(done []bool, indeg []int) int {
	for i := range done {
		if !done[i] && indeg[i] == 0 {
			return i
		}
	}
	return -1
}

func (n *Network) cycleError(done []bool) error {
	var names []string
	for i, e := range n.entries {
		if !done[i] {
			names = append(names, e.proc.ID().String())
		}
	}
	return fmt.Errorf("network: cycle among %s: %w", strings.Join(names, ", "), prismerrors.ErrCyclicDependency)
}
