package grammar

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the on-disk form of a grammar.
type Document struct {
	Start       string              `yaml:"start"`
	Rules       map[string][]string `yaml:"rules"`
	Finishable  []string            `yaml:"finishable"`
	QuickFinish map[string][]string `yaml:"quick_finish"`
}

func Parse(data []byte) (*Grammar, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode grammar: %w", err)
	}
	return doc.Grammar()
}

func Load(path string) (*Grammar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	g, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

func (d Document) Grammar() (*Grammar, error) {
	return New(d.Start, d.Rules, d.Finishable, d.QuickFinish)
}

// Document converts g back to its on-disk form. Quick-finish entries that only repeat the
// full production list are kept explicit.
func (g *Grammar) Document() Document {
	doc := Document{
		Start:       g.start,
		Rules:       make(map[string][]string, len(g.rules)),
		Finishable:  g.Finishable(),
		QuickFinish: make(map[string][]string, len(g.quick)),
	}
	for nt, ps := range g.rules {
		doc.Rules[nt] = fromProductions(ps)
	}
	for nt, ps := range g.quick {
		doc.QuickFinish[nt] = fromProductions(ps)
	}
	return doc
}

func fromProductions(ps []Production) []string {
	ss := make([]string, len(ps))
	for i, p := range ps {
		ss[i] = string(p)
	}
	return ss
}

func (g *Grammar) MarshalYAML() (any, error) {
	return g.Document(), nil
}
