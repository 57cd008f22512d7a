package project

import (
	"sort"
	"strings"

	"github.com/Gmabatah93/Project2Article/internal/archive"
)

type treeNode struct {
	name     string
	dir      bool
	children map[string]*treeNode
}

func (n *treeNode) child(name string) *treeNode {
	if n.children == nil {
		n.children = make(map[string]*treeNode)
	}
	c, ok := n.children[name]
	if !ok {
		c = &treeNode{name: name}
		n.children[name] = c
	}
	return c
}

// RenderTree draws entries depth-first with two spaces per nesting level.
// Within a directory, subdirectories come before files and each group is
// sorted by name. Directories carry a trailing slash.
func RenderTree(entries []archive.Entry) string {
	root := &treeNode{dir: true}
	for _, e := range entries {
		segs := strings.Split(e.Path, "/")
		n := root
		for i, s := range segs {
			n = n.child(s)
			if i < len(segs)-1 || e.IsDir {
				n.dir = true
			}
		}
	}

	var b strings.Builder
	renderNode(&b, root, 0)
	return strings.TrimRight(b.String(), "\n")
}

func renderNode(b *strings.Builder, n *treeNode, level int) {
	kids := make([]*treeNode, 0, len(n.children))
	for _, c := range n.children {
		kids = append(kids, c)
	}
	sort.Slice(kids, func(i, j int) bool {
		if kids[i].dir != kids[j].dir {
			return kids[i].dir
		}
		return kids[i].name < kids[j].name
	})
	for _, c := range kids {
		b.WriteString(strings.Repeat("  ", level))
		b.WriteString(c.name)
		if c.dir {
			b.WriteString("/")
		}
		b.WriteString("\n")
		if c.dir {
			renderNode(b, c, level+1)
		}
	}
}
