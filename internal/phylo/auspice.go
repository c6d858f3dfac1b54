package phylo

import (
	"encoding/json"
	"fmt"

	siloerrors "github.com/standardbeagle/silo/internal/errors"
)

// auspiceNode mirrors the subset of Nextstrain's Auspice v2 JSON tree
// shape that matters for topology: a name and a recursive list of
// children. Auspice files carry a great deal of node_attrs data
// (mutations, branch support, trait confidences); none of it bears on
// row-to-node assignment, so those fields are simply not decoded.
type auspiceNode struct {
	Name     string        `json:"name"`
	Children []auspiceNode `json:"children"`
}

type auspiceDocument struct {
	Tree auspiceNode `json:"tree"`
}

// ParseAuspiceJSON parses a Nextstrain Auspice v2 JSON tree document.
func ParseAuspiceJSON(path string, data []byte) (*Tree, error) {
	var doc auspiceDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, siloerrors.NewPreprocessingError(path, fmt.Sprintf("invalid auspice JSON: %v", err))
	}
	if doc.Tree.Name == "" {
		return nil, siloerrors.NewPreprocessingError(path, "auspice document has no root tree node")
	}

	t := newTree()
	t.root = buildAuspiceSubtree(t, doc.Tree)
	return t, nil
}

func buildAuspiceSubtree(t *Tree, n auspiceNode) NodeID {
	node := t.addNode(n.Name)
	for _, child := range n.Children {
		childID := buildAuspiceSubtree(t, child)
		t.setParent(childID, node)
	}
	return node
}
