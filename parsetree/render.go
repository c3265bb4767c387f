package parsetree

import (
	"strings"
)

const (
	newlineToken = `\n`
	tabToken     = `\t`
)

var unescaper = strings.NewReplacer(`\\`, `\`, `\n`, "\n", `\t`, "\t", `\r`, "\r")

// Program renders the leaves in pre-order. The bare tokens \n and \t are glued to the text,
// every other token is followed by one space, and the escapes are then decoded.
// The result is cached until the next structural change.
func (t *Tree) Program() string {
	if t.programValid {
		return t.program
	}

	var sb strings.Builder
	var walk func(*Node)
	walk = func(n *Node) {
		for _, c := range n.Children {
			if c.IsLeaf() {
				sb.WriteString(c.Value)
				if c.Value != newlineToken && c.Value != tabToken {
					sb.WriteByte(' ')
				}
			}
			walk(c)
		}
	}
	walk(t.Root)

	t.program = unescaper.Replace(sb.String())
	t.programValid = true
	return t.program
}
