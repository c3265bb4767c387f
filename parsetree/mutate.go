package parsetree

import (
	"fmt"
	"math/rand/v2"
)

// InvariantError reports a broken id invariant. It is raised with panic, never returned.
type InvariantError struct {
	SampledID int
	MaxID     int
	Dump      string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("parsetree: sampled node id %d does not exist (max id %d)\n%s", e.SampledID, e.MaxID, e.Dump)
}

type MutationReport struct {
	NodeID  int
	Symbol  string
	Removed int
	Added   int
}

// Mutate replaces the subtree below one uniformly sampled non-terminal node with a freshly
// grown one. The root symbol never changes since only children are discarded.
//
// Mutateは一様に選んだ非終端ノードの部分木を新しく生成したものに置き換えます。
// 子のみが破棄されるため、根の記号は変わりません。
func (t *Tree) Mutate(rng *rand.Rand) (MutationReport, error) {
	var node *Node
	var sampled int
	for {
		sampled = rng.IntN(t.currentID + 1)
		node = t.Find(sampled)
		if node == nil {
			panic(&InvariantError{SampledID: sampled, MaxID: t.currentID, Dump: t.String()})
		}
		if !node.IsTerminal {
			break
		}
	}

	report := MutationReport{NodeID: sampled, Symbol: node.Value}
	before := t.Len()

	node.Children = nil
	t.Invalidate()
	t.Renumber()
	report.Removed = before - t.Len()
	pruned := t.Len()

	if err := t.BuildRandom(node, rng); err != nil {
		return report, err
	}
	if err := t.ForceFinish(t.Root, rng); err != nil {
		return report, err
	}
	t.Renumber()
	report.Added = t.Len() - pruned
	return report, nil
}
