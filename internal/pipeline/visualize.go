package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
)

// VisualizationFormat represents the output format for graph visualization.
type VisualizationFormat string

const (
	FormatText    VisualizationFormat = "text"
	FormatMermaid VisualizationFormat = "mermaid"
	FormatDOT     VisualizationFormat = "dot"
	FormatJSON    VisualizationFormat = "json"
)

// Visualize renders every pipeline of g with its phases and tasks.
func Visualize(g *Graph, format VisualizationFormat) (string, error) {
	switch format {
	case FormatText:
		return visualizeText(g), nil
	case FormatMermaid:
		return visualizeMermaid(g), nil
	case FormatDOT:
		return visualizeDOT(g), nil
	case FormatJSON:
		return visualizeJSON(g)
	default:
		return "", ferrors.ValidationError("unsupported format").WithContext("format", string(format)).Build()
	}
}

func visualizeText(g *Graph) string {
	var sb strings.Builder
	for pi, p := range g.Pipelines() {
		if pi > 0 {
			sb.WriteString("\n")
		}
		title := "Pipeline " + p.Name
		if p.Description != "" {
			title += ": " + p.Description
		}
		sb.WriteString(title + "\n")
		sb.WriteString(strings.Repeat("=", len(title)) + "\n\n")

		for i, phase := range p.Phases {
			fmt.Fprintf(&sb, "┌─ Phase %d: %s (%s)\n", i+1, phase.Name, phase.Mode())
			sb.WriteString("│\n")
			for j, name := range phase.Tasks {
				prefix := "├──"
				if j == len(phase.Tasks)-1 {
					prefix = "└──"
				}
				fmt.Fprintf(&sb, "│ %s [%s]", prefix, name)
				if t, ok := g.Task(name); ok {
					fmt.Fprintf(&sb, " %s: %s", t.Kind(), t.Description())
				}
				sb.WriteString("\n")
			}
			sb.WriteString("│\n")
			if i < len(p.Phases)-1 {
				sb.WriteString("↓\n")
			}
		}
	}
	fmt.Fprintf(&sb, "\nTotal: %d tasks across %d pipelines\n", len(g.Tasks()), len(g.Pipelines()))
	return sb.String()
}

// nodeID sanitizes a name for Mermaid.
func nodeID(parts ...string) string {
	id := strings.Join(parts, "_")
	return strings.NewReplacer("-", "", ".", "", " ", "").Replace(id)
}

func visualizeMermaid(g *Graph) string {
	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("graph TD\n")
	for _, p := range g.Pipelines() {
		var prev []string
		for _, phase := range p.Phases {
			sub := nodeID("phase", p.Name, phase.Name)
			fmt.Fprintf(&sb, "    subgraph %s[\"%s: %s (%s)\"]\n", sub, p.Name, phase.Name, phase.Mode())
			var ids []string
			for _, name := range phase.Tasks {
				id := nodeID(p.Name, name)
				ids = append(ids, id)
				fmt.Fprintf(&sb, "        %s[\"%s\"]\n", id, name)
			}
			sb.WriteString("    end\n")
			for _, from := range prev {
				for _, to := range ids {
					fmt.Fprintf(&sb, "    %s --> %s\n", from, to)
				}
			}
			if len(ids) > 0 {
				prev = ids
			}
		}
	}
	sb.WriteString("```\n")
	return sb.String()
}

func visualizeDOT(g *Graph) string {
	var sb strings.Builder
	sb.WriteString("digraph Pipelines {\n")
	sb.WriteString("    rankdir=TB;\n")
	sb.WriteString("    node [shape=box, style=rounded];\n\n")
	cluster := 0
	for _, p := range g.Pipelines() {
		var prev []string
		for _, phase := range p.Phases {
			fmt.Fprintf(&sb, "    subgraph cluster_%d {\n", cluster)
			fmt.Fprintf(&sb, "        label=\"%s: %s (%s)\";\n", p.Name, phase.Name, phase.Mode())
			sb.WriteString("        style=filled;\n")
			sb.WriteString("        color=lightgrey;\n")
			var ids []string
			for _, name := range phase.Tasks {
				id := p.Name + "/" + name
				ids = append(ids, id)
				fmt.Fprintf(&sb, "        %q [label=%q];\n", id, name)
			}
			sb.WriteString("    }\n")
			cluster++
			for _, from := range prev {
				for _, to := range ids {
					fmt.Fprintf(&sb, "    %q -> %q;\n", from, to)
				}
			}
			if len(ids) > 0 {
				prev = ids
			}
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n")
	return sb.String()
}

type jsonTask struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

type jsonPhase struct {
	Name  string   `json:"name"`
	Mode  string   `json:"mode"`
	Tasks []string `json:"tasks"`
}

type jsonPipeline struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Phases      []jsonPhase `json:"phases"`
}

type jsonGraph struct {
	Tasks     []jsonTask     `json:"tasks"`
	Pipelines []jsonPipeline `json:"pipelines"`
}

func visualizeJSON(g *Graph) (string, error) {
	out := jsonGraph{Tasks: []jsonTask{}, Pipelines: []jsonPipeline{}}
	for _, t := range g.Tasks() {
		out.Tasks = append(out.Tasks, jsonTask{Name: t.Name(), Kind: string(t.Kind()), Description: t.Description()})
	}
	for _, p := range g.Pipelines() {
		jp := jsonPipeline{Name: p.Name, Description: p.Description, Phases: []jsonPhase{}}
		for _, phase := range p.Phases {
			jp.Phases = append(jp.Phases, jsonPhase{Name: phase.Name, Mode: phase.Mode(), Tasks: append([]string{}, phase.Tasks...)})
		}
		out.Pipelines = append(out.Pipelines, jp)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

// GetSupportedFormats returns a list of supported visualization formats.
func GetSupportedFormats() []VisualizationFormat {
	return []VisualizationFormat{FormatText, FormatMermaid, FormatDOT, FormatJSON}
}

// GetFormatDescription returns a description of a visualization format.
func GetFormatDescription(format VisualizationFormat) string {
	descriptions := map[VisualizationFormat]string{
		FormatText:    "Human-readable text with ASCII art",
		FormatMermaid: "Mermaid diagram (for GitHub, GitLab, etc.)",
		FormatDOT:     "Graphviz DOT format (render with `dot -Tpng graph.dot -o graph.png`)",
		FormatJSON:    "Structured JSON representation",
	}
	return descriptions[format]
}
