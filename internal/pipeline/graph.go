package pipeline

import (
	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepipe/internal/tasks"
)

// Phase is a barrier-synchronized group of tasks.
type Phase struct {
	Name       string
	Tasks      []string
	Sequential bool
	Detached   bool
}

// Mode names how the phase schedules its tasks.
func (p Phase) Mode() string {
	switch {
	case p.Detached:
		return "detached"
	case p.Sequential:
		return "sequential"
	default:
		return "parallel"
	}
}

// Pipeline is an ordered list of phases.
type Pipeline struct {
	Name        string
	Description string
	Phases      []Phase
}

// Graph owns every task and pipeline of a run. It is built explicitly and
// passed to the Orchestrator; nothing registers itself.
type Graph struct {
	tasks     *tasks.Registry
	pipelines map[string]Pipeline
	order     []string
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{tasks: tasks.NewRegistry(), pipelines: make(map[string]Pipeline)}
}

// AddTask registers a task.
func (g *Graph) AddTask(t tasks.Task) error {
	return g.tasks.Add(t)
}

// AddPipeline registers a pipeline. Every task it names must already exist.
func (g *Graph) AddPipeline(p Pipeline) error {
	if p.Name == "" {
		return ferrors.ValidationError("pipeline without a name").Build()
	}
	if _, dup := g.pipelines[p.Name]; dup {
		return ferrors.ValidationError("duplicate pipeline").WithContext("pipeline", p.Name).Build()
	}
	for _, phase := range p.Phases {
		for _, name := range phase.Tasks {
			if _, ok := g.tasks.Get(name); !ok {
				return ferrors.NotFoundError("pipeline references unknown task").
					WithContext("pipeline", p.Name).
					WithContext("phase", phase.Name).
					WithContext("task", name).
					Build()
			}
		}
	}
	g.pipelines[p.Name] = p
	g.order = append(g.order, p.Name)
	return nil
}

// Task returns the named task.
func (g *Graph) Task(name string) (tasks.Task, bool) { return g.tasks.Get(name) }

// Tasks returns all tasks in declaration order.
func (g *Graph) Tasks() []tasks.Task { return g.tasks.All() }

// Pipeline returns the named pipeline.
func (g *Graph) Pipeline(name string) (Pipeline, bool) {
	p, ok := g.pipelines[name]
	return p, ok
}

// Pipelines returns pipelines in declaration order.
func (g *Graph) Pipelines() []Pipeline {
	out := make([]Pipeline, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.pipelines[name])
	}
	return out
}
