package tree

import (
	"fmt"
	"strings"

	metadata "github.com/aarsakian/DiskImage/FS"
	"github.com/aarsakian/DiskImage/logger"
)

type Node struct {
	item     *metadata.Item
	parent   *Node
	children []*Node
}

// Tree reconstructs the directory hierarchy from a flat item list using
// the parent references. Orphans hang off a synthetic root child.
type Tree struct {
	root    *Node
	orphans *Node
	nodes   map[uint64]*Node
}

func (t *Tree) Build(items []metadata.Item, rootID uint64) {
	msg := fmt.Sprintf("Building tree from %d items", len(items))
	logger.DILogger.Info(msg)

	t.root = &Node{}
	t.nodes = map[uint64]*Node{rootID: t.root}

	for idx := range items {
		if items[idx].Id == rootID {
			continue // the root names itself on some filesystems
		}
		t.nodes[items[idx].Id] = &Node{item: &items[idx]}
	}
	for idx := range items {
		item := &items[idx]
		node := t.nodes[item.Id]
		if node == nil || node.parent != nil || node == t.root {
			continue
		}
		if item.Parent == nil {
			t.addOrphan(node)
			continue
		}
		parent, ok := t.nodes[item.Parent.Id]
		if !ok || parent == node {
			t.addOrphan(node)
			continue
		}
		node.parent = parent
		parent.children = append(parent.children, node)
	}
}

func (t *Tree) addOrphan(node *Node) {
	if t.orphans == nil {
		t.orphans = &Node{parent: t.root}
		t.root.children = append(t.root.children, t.orphans)
	}
	node.parent = t.orphans
	t.orphans.children = append(t.orphans.children, node)
}

func (t Tree) Show() {
	if t.root == nil {
		return
	}
	t.root.descend(0)
}

func (node *Node) label() string {
	if node.item == nil {
		if node.parent != nil {
			return "[orphans]"
		}
		return "/"
	}
	return node.item.Name
}

func (node *Node) descend(depth int) {
	fmt.Printf("%s%s\n", strings.Repeat("  ", depth), node.label())
	for _, child := range node.children {
		child.descend(depth + 1)
	}
}
