// Package graph renders models as Mermaid flowcharts.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/tapestry/pkg/model"
)

// Overlay highlights session state on the chart.
type Overlay struct {
	Selected []string
}

// GenerateMermaid produces a Mermaid flowchart of m. Regions become
// subgraphs holding their members, inactive nodes are styled and inactive
// links are dotted. Node shapes follow the node type:
// - gene: [Rectangle]
// - bubble: ((Circle))
// - anything else: ([Stadium])
func GenerateMermaid(m model.Model, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	nodeIDs := sortedKeys(m.Nodes)
	inRegion := make(map[string]bool)
	for _, rid := range sortedKeys(m.Regions) {
		r := m.Regions[rid]
		name := r.Name
		if name == "" {
			name = r.ID
		}
		fmt.Fprintf(&sb, "    subgraph %s[\"%s\"]\n", sanitizeMermaidID("region_"+r.ID), escape(name))
		members := append([]string(nil), r.Members...)
		sort.Strings(members)
		for _, id := range members {
			node, ok := m.Nodes[id]
			if !ok || inRegion[id] {
				continue
			}
			inRegion[id] = true
			sb.WriteString("    " + nodeLine(node))
		}
		sb.WriteString("    end\n")
	}
	for _, id := range nodeIDs {
		if !inRegion[id] {
			sb.WriteString(nodeLine(m.Nodes[id]))
		}
	}

	for _, lid := range sortedKeys(m.Links) {
		l := m.Links[lid]
		arrow := "-->"
		if l.Activity.Setting == model.Inactive {
			arrow = "-.->"
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(l.Source), arrow, sanitizeMermaidID(l.Target))
	}

	var inactive []string
	for _, id := range nodeIDs {
		if m.Nodes[id].Activity.Setting == model.Inactive {
			inactive = append(inactive, sanitizeMermaidID(id))
		}
	}
	if len(inactive) > 0 {
		sb.WriteString("\n    classDef inactive fill:#eeeeee,stroke:#9e9e9e,stroke-dasharray:4 2,color:#616161;\n")
		fmt.Fprintf(&sb, "    class %s inactive;\n", strings.Join(inactive, ","))
	}

	if overlay != nil && len(overlay.Selected) > 0 {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for contrast regardless of theme.
		sb.WriteString("    classDef selected fill:#ffeb3b,stroke:#fbc02d,stroke-width:3px,color:#000;\n")
		seen := make(map[string]bool)
		for _, id := range overlay.Selected {
			if _, ok := m.Nodes[id]; !ok {
				continue
			}
			safeID := sanitizeMermaidID(id)
			if !seen[safeID] {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s selected;\n", safeID)
			}
		}
	}

	return sb.String()
}

func nodeLine(n model.Node) string {
	opener, closer := "([", "])"
	switch n.Type {
	case "gene":
		opener, closer = "[", "]"
	case "bubble":
		opener, closer = "((", "))"
	}
	name := n.Name
	if name == "" {
		name = n.ID
	}
	return fmt.Sprintf("    %s%s\"%s\"%s\n", sanitizeMermaidID(n.ID), opener, escape(name), closer)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
