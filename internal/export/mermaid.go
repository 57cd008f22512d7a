package export

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/Gmabatah93/Project2Article/internal/project"
)

// StructureMermaid produces a Mermaid graph TD diagram of the project's
// layout. Top-level directories become subgraphs holding their README,
// config and code files, each linked from the root node. At most
// maxFiles file nodes are drawn; zero means 60.
func StructureMermaid(sum *project.Summary, maxFiles int) string {
	if maxFiles <= 0 {
		maxFiles = 60
	}

	nodeIDs := make(map[string]string)
	nextID := 0
	getID := func(key string) string {
		if id, ok := nodeIDs[key]; ok {
			return id
		}
		id := fmt.Sprintf("N%d", nextID)
		nextID++
		nodeIDs[key] = id
		return id
	}

	// Group notable files by top-level directory; "" is the root.
	groups := make(map[string][]project.File)
	drawn := 0
	for _, f := range sum.Files {
		if f.Category == project.CategoryOther || drawn == maxFiles {
			continue
		}
		top := ""
		if i := strings.IndexByte(f.Path, '/'); i >= 0 {
			top = f.Path[:i]
		}
		groups[top] = append(groups[top], f)
		drawn++
	}
	tops := make([]string, 0, len(groups))
	for t := range groups {
		tops = append(tops, t)
	}
	sort.Strings(tops)

	var sb strings.Builder
	sb.WriteString("graph TD\n")
	root := getID("dir:")
	sb.WriteString(fmt.Sprintf("  %s[\"/\"]\n", root))

	for _, top := range tops {
		files := groups[top]
		if top == "" {
			for _, f := range files {
				sb.WriteString(fmt.Sprintf("  %s[\"%s\"]\n", getID(f.Path), nodeLabel(f)))
				sb.WriteString(fmt.Sprintf("  %s --> %s\n", root, getID(f.Path)))
			}
			continue
		}
		sb.WriteString(fmt.Sprintf("  subgraph %s[\"%.40s/\"]\n", getID("dir:"+top), top))
		for _, f := range files {
			sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", getID(f.Path), nodeLabel(f)))
		}
		sb.WriteString("  end\n")
		sb.WriteString(fmt.Sprintf("  %s --> %s\n", root, getID("dir:"+top)))
	}

	if hidden := countNotable(sum) - drawn; hidden > 0 {
		sb.WriteString(fmt.Sprintf("  %s[\"... %d more files\"]\n", getID("more"), hidden))
		sb.WriteString(fmt.Sprintf("  %s -.-> %s\n", root, getID("more")))
	}
	return sb.String()
}

func countNotable(sum *project.Summary) int {
	n := 0
	for _, f := range sum.Files {
		if f.Category != project.CategoryOther {
			n++
		}
	}
	return n
}

// nodeLabel is the file's last two path segments plus its category.
func nodeLabel(f project.File) string {
	return fmt.Sprintf("%s (%s)", strings.ReplaceAll(shortPath(f.Path), `"`, "'"), f.Category)
}

// shortPath returns the last 2 path segments for readability.
func shortPath(p string) string {
	parts := strings.Split(path.Clean(p), "/")
	if len(parts) <= 2 {
		return p
	}
	return strings.Join(parts[len(parts)-2:], "/")
}
