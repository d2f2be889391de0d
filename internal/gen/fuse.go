package gen

import (
	"eventvm/internal/flow"
	"eventvm/internal/step"
)

// fuseBlocks partitions every discovered block's children into
// maximal runs of consecutive mergeable nodes and, for every run worth
// fusing, overwrites that run's entry ID with a single compiled step
// that walks the whole run without returning to the stepping engine.
// ExternCallNode is never mergeable, so it always ends a run.
func (g *generator) fuseBlocks(blocks []*flow.BlockNode) {
	for _, blk := range blocks {
		children := blk.Children
		i := 0
		for i < len(children) {
			if !children[i].IsMergeable() {
				i++
				continue
			}
			j := i
			for j < len(children) && children[j].IsMergeable() {
				j++
			}
			run := children[i:j]
			if len(run) >= 2 || isComposite(run[0]) {
				entry := run[0]
				g.steps[entry.NodeID()] = g.compileFused(entry)
			}
			i = j
		}
	}
}

// isComposite reports whether a singleton mergeable run still needs
// fused compilation on its own: an If, Switch or Loop desugars into
// more than one decision internally and benefits from being walked in
// one step even alone, where a bare Normal/Return/Jump/Exit's atomic
// step is already exactly what a one-node fused run would produce.
func isComposite(n flow.Node) bool {
	switch n.(type) {
	case *flow.IfNode, *flow.SwitchNode, *flow.LoopNode, *flow.LoopInitNode:
		return true
	default:
		return false
	}
}

// compileFused compiles a whole run, walking it with runMergeable and
// converting the result back into the one Opcode the stepping engine
// sees.
func (g *generator) compileFused(entry flow.Node) step.ExecutionStep {
	return func(scope *step.Scope) (step.Opcode, error) {
		out, err := g.runMergeable(entry, nil, scope)
		if err != nil {
			return step.Opcode{}, err
		}
		return toOpcode(out)
	}
}
