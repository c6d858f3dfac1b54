package phylo

import (
	"fmt"
	"strconv"
	"strings"

	siloerrors "github.com/standardbeagle/silo/internal/errors"
)

// ParseNewick parses a single Newick tree, e.g. "(A,B:0.1)C;". Branch
// lengths are accepted and discarded; unnamed internal nodes are
// assigned a synthetic id of the form "_internal_<n>".
func ParseNewick(path string, data []byte) (*Tree, error) {
	p := &newickParser{src: string(data)}
	p.skipSpace()
	root, err := p.parseSubtree()
	if err != nil {
		return nil, siloerrors.NewPreprocessingError(path, err.Error())
	}
	p.skipSpace()
	if p.peek() == ';' {
		p.pos++
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, siloerrors.NewPreprocessingError(path, fmt.Sprintf("unexpected trailing input at byte %d", p.pos))
	}
	p.tree.root = root
	return p.tree, nil
}

type newickParser struct {
	src     string
	pos     int
	tree    *Tree
	counter int
}

func (p *newickParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *newickParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n' || p.src[p.pos] == '\r') {
		p.pos++
	}
}

func (p *newickParser) parseSubtree() (NodeID, error) {
	if p.tree == nil {
		p.tree = newTree()
	}

	var children []NodeID
	if p.peek() == '(' {
		p.pos++
		for {
			p.skipSpace()
			child, err := p.parseSubtree()
			if err != nil {
				return 0, err
			}
			children = append(children, child)
			p.skipSpace()
			if p.peek() == ',' {
				p.pos++
				continue
			}
			break
		}
		p.skipSpace()
		if p.peek() != ')' {
			return 0, fmt.Errorf("expected ')' at byte %d", p.pos)
		}
		p.pos++
	}

	name := p.parseLabel()
	p.skipBranchLength()

	if name == "" {
		name = fmt.Sprintf("_internal_%d", p.counter)
		p.counter++
	}
	node := p.tree.addNode(name)
	for _, child := range children {
		p.tree.setParent(child, node)
	}
	return node, nil
}

func (p *newickParser) parseLabel() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '(' || c == ')' || c == ',' || c == ':' || c == ';' {
			break
		}
		p.pos++
	}
	return strings.TrimSpace(p.src[start:p.pos])
}

func (p *newickParser) skipBranchLength() {
	if p.peek() != ':' {
		return
	}
	p.pos++
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '(' || c == ')' || c == ',' || c == ';' {
			break
		}
		p.pos++
	}
	// Branch lengths are skipped and discarded, and a malformed one is
	// not reported: SILO uses only the tree topology.
	_, _ = strconv.ParseFloat(strings.TrimSpace(p.src[start:p.pos]), 64)
}
