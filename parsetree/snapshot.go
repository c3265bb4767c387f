package parsetree

import (
	"fmt"

	"github.com/sw965/progsynth/grammar"
)

// Snapshot is a plain, serializable copy of a tree.
type Snapshot struct {
	Value    string     `yaml:"value" json:"value"`
	Terminal bool       `yaml:"terminal,omitempty" json:"terminal,omitempty"`
	Children []Snapshot `yaml:"children,omitempty" json:"children,omitempty"`
}

func snapshotNode(n *Node) Snapshot {
	s := Snapshot{Value: n.Value, Terminal: n.IsTerminal}
	if len(n.Children) != 0 {
		s.Children = make([]Snapshot, len(n.Children))
		for i, c := range n.Children {
			s.Children[i] = snapshotNode(c)
		}
	}
	return s
}

func (t *Tree) Snapshot() Snapshot {
	return snapshotNode(t.Root)
}

// Restore rebuilds a tree from a snapshot and checks it against g.
func Restore(g *grammar.Grammar, s Snapshot, maxNodes int) (*Tree, error) {
	t, err := New(g, maxNodes)
	if err != nil {
		return nil, err
	}
	if s.Value != g.Start() {
		return nil, fmt.Errorf("%w: snapshot root %q does not match start symbol %q", grammar.ErrUnknownSymbol, s.Value, g.Start())
	}

	var restore func(Snapshot, string) (*Node, error)
	restore = func(s Snapshot, parent string) (*Node, error) {
		n := &Node{Value: s.Value, IsTerminal: g.IsTerminal(s.Value), Parent: parent}
		if n.IsTerminal && len(s.Children) != 0 {
			return nil, fmt.Errorf("terminal %q must not have children", s.Value)
		}
		for _, cs := range s.Children {
			c, err := restore(cs, s.Value)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, c)
		}
		return n, nil
	}

	root, err := restore(s, "")
	if err != nil {
		return nil, err
	}
	t.Root = root
	t.Renumber()
	return t, nil
}
