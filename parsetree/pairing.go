package parsetree

import "fmt"

// SetPairingWidth enables the k-pairing index used by width-based search. Zero disables it.
func (t *Tree) SetPairingWidth(k int) error {
	if k < 0 {
		return fmt.Errorf("pairing width must be >= 0, got %d", k)
	}
	t.pairingWidth = k
	t.pairings = nil
	return nil
}

func (t *Tree) PairingWidth() int {
	return t.pairingWidth
}

func (t *Tree) updatePairings() {
	nodes := t.Nodes()
	t.pairings = make(map[int][][]*Node, t.pairingWidth)
	for i := 1; i <= t.pairingWidth; i++ {
		n := len(nodes) - i + 1
		if n < 0 {
			n = 0
		}
		windows := make([][]*Node, n)
		for j := range n {
			windows[j] = nodes[j : j+i]
		}
		t.pairings[i] = windows
	}
}

// Pairings returns every contiguous pre-order window of i nodes. i must be in [1, PairingWidth].
func (t *Tree) Pairings(i int) ([][]*Node, error) {
	if i < 1 || i > t.pairingWidth {
		return nil, fmt.Errorf("pairing size %d out of range [1, %d]", i, t.pairingWidth)
	}
	if t.pairings == nil {
		t.updatePairings()
	}
	return t.pairings[i], nil
}

func (t *Tree) PairingValues(i int) ([][]string, error) {
	windows, err := t.Pairings(i)
	if err != nil {
		return nil, err
	}
	values := make([][]string, len(windows))
	for j, w := range windows {
		vs := make([]string, len(w))
		for k, n := range w {
			vs[k] = n.Value
		}
		values[j] = vs
	}
	return values, nil
}
