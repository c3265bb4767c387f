// Package parsetree grows, repairs and mutates random derivation trees of a grammar.
// Node ids are kept contiguous by a pre-order renumbering after every structural change.
//
// Package parsetree は文法のランダムな導出木の生成・修復・突然変異を行います。
// ノードIDは構造変更の度に行きがけ順で振り直され、連続性が保たれます。
package parsetree

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/sw965/progsynth/grammar"
)

type Node struct {
	ID         int
	Value      string
	IsTerminal bool
	// Parent holds the symbol of the parent node. The root has an empty parent.
	Parent   string
	Children []*Node
}

func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

func (n *Node) clone() *Node {
	c := &Node{
		ID:         n.ID,
		Value:      n.Value,
		IsTerminal: n.IsTerminal,
		Parent:     n.Parent,
	}
	if n.Children != nil {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.clone()
		}
	}
	return c
}

func (n *Node) size() int {
	s := 1
	for _, c := range n.Children {
		s += c.size()
	}
	return s
}

type Tree struct {
	grammar *grammar.Grammar
	Root    *Node
	// MaxNodes is a soft budget. Construction stops growing once the id counter passes it.
	MaxNodes int

	currentID int

	program      string
	programValid bool

	pairingWidth int
	pairings     map[int][][]*Node
}

func New(g *grammar.Grammar, maxNodes int) (*Tree, error) {
	if g == nil {
		return nil, fmt.Errorf("grammar must not be nil")
	}
	if maxNodes < 1 {
		return nil, fmt.Errorf("maxNodes must be >= 1, got %d", maxNodes)
	}
	return &Tree{
		grammar:  g,
		Root:     &Node{ID: 0, Value: g.Start()},
		MaxNodes: maxNodes,
	}, nil
}

func (t *Tree) Grammar() *grammar.Grammar {
	return t.grammar
}

// MaxID is the largest id in use. After renumbering every id in [0, MaxID] names exactly one node.
func (t *Tree) MaxID() int {
	return t.currentID
}

func (t *Tree) Len() int {
	return t.Root.size()
}

func (t *Tree) Invalidate() {
	t.programValid = false
	t.pairings = nil
}

func (t *Tree) expand(node *Node, p grammar.Production) {
	for _, tok := range p.Tokens() {
		t.currentID++
		node.Children = append(node.Children, &Node{
			ID:         t.currentID,
			Value:      tok,
			IsTerminal: t.grammar.IsTerminal(tok),
			Parent:     node.Value,
		})
	}
	t.Invalidate()
}

// Build grows the whole tree from the root, repairs it and renumbers it.
func (t *Tree) Build(rng *rand.Rand) error {
	if err := t.BuildRandom(t.Root, rng); err != nil {
		return err
	}
	if err := t.ForceFinish(t.Root, rng); err != nil {
		return err
	}
	t.Renumber()
	return nil
}

// BuildRandom expands node with a random production and recurses into its nonterminal
// children in random order. Once the id counter exceeds MaxNodes the whole tree is
// force-finished instead.
//
// BuildRandomはnodeをランダムな生成規則で展開し、非終端の子を順不同で再帰的に展開します。
// IDカウンタがMaxNodesを超えた場合は、代わりに木全体を強制完了させます。
func (t *Tree) BuildRandom(node *Node, rng *rand.Rand) error {
	if t.currentID > t.MaxNodes {
		return t.ForceFinish(t.Root, rng)
	}

	p, err := t.grammar.Expansion(node.Value, rng)
	if err != nil {
		return err
	}
	t.expand(node, p)

	children := node.Children
	for _, i := range rng.Perm(len(children)) {
		child := children[i]
		if child.IsTerminal {
			continue
		}
		// An earlier sibling may have hit the budget and force-finished this child already.
		if !child.IsLeaf() {
			continue
		}
		if err := t.BuildRandom(child, rng); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) isIncomplete(node *Node) bool {
	return node.IsLeaf() && t.grammar.IsFinishable(node.Value)
}

// ForceFinish expands every childless finishable node below node with quick-finish
// productions. It is a no-op on a complete tree.
func (t *Tree) ForceFinish(node *Node, rng *rand.Rand) error {
	if t.isIncomplete(node) {
		p, err := t.grammar.QuickFinish(node.Value, rng)
		if err != nil {
			return err
		}
		t.expand(node, p)
	}
	for _, child := range node.Children {
		if err := t.ForceFinish(child, rng); err != nil {
			return err
		}
	}
	return nil
}

// ExpandNode expands a leaf with the given production.
func (t *Tree) ExpandNode(node *Node, p grammar.Production) error {
	if !node.IsLeaf() {
		return fmt.Errorf("node %d (%q) is already expanded", node.ID, node.Value)
	}
	if node.IsTerminal {
		return fmt.Errorf("node %d (%q) is terminal", node.ID, node.Value)
	}
	t.expand(node, p)
	return nil
}

// Renumber assigns ids in pre-order starting at 0.
func (t *Tree) Renumber() {
	t.currentID = -1
	var walk func(*Node)
	walk = func(n *Node) {
		t.currentID++
		n.ID = t.currentID
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(t.Root)
}

// Find returns the node with the given id by structural search, or nil.
func (t *Tree) Find(id int) *Node {
	var find func(*Node) *Node
	find = func(n *Node) *Node {
		if n.ID == id {
			return n
		}
		for _, c := range n.Children {
			if found := find(c); found != nil {
				return found
			}
		}
		return nil
	}
	return find(t.Root)
}

// Nodes returns every node in pre-order, the root included.
func (t *Tree) Nodes() []*Node {
	nodes := make([]*Node, 0, t.currentID+1)
	var walk func(*Node)
	walk = func(n *Node) {
		nodes = append(nodes, n)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(t.Root)
	return nodes
}

// Leaves returns the childless nodes in pre-order.
func (t *Tree) Leaves() []*Node {
	leaves := []*Node{}
	var walk func(*Node)
	walk = func(n *Node) {
		if n.IsLeaf() {
			leaves = append(leaves, n)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(t.Root)
	return leaves
}

// IsFinished reports whether no childless node carries a finishable symbol.
func (t *Tree) IsFinished() bool {
	for _, n := range t.Nodes() {
		if t.isIncomplete(n) {
			return false
		}
	}
	return true
}

func (t *Tree) Clone() *Tree {
	c := &Tree{
		grammar:      t.grammar,
		Root:         t.Root.clone(),
		MaxNodes:     t.MaxNodes,
		currentID:    t.currentID,
		program:      t.program,
		programValid: t.programValid,
		pairingWidth: t.pairingWidth,
	}
	return c
}

func (t *Tree) String() string {
	var sb strings.Builder
	var walk func(*Node, string)
	walk = func(n *Node, indent string) {
		fmt.Fprintf(&sb, "%s%s, id = %d, node parent = %s\n", indent, n.Value, n.ID, n.Parent)
		for _, c := range n.Children {
			walk(c, indent+"    ")
		}
	}
	walk(t.Root, "")
	return sb.String()
}
