package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepipe/internal/tasks"
)

// ValidationResult holds the results of graph validation.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result.
func (vr *ValidationResult) AddError(format string, args ...any) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result.
func (vr *ValidationResult) AddWarning(format string, args ...any) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// Err returns a validation error listing every problem, or nil.
func (vr *ValidationResult) Err() error {
	if vr.Valid {
		return nil
	}
	return ferrors.ValidationError("invalid task graph: "+strings.Join(vr.Errors, "; ")).
		WithContext("problems", vr.Errors).
		Build()
}

// Validate checks every pipeline in g:
// - phases reference known tasks, each at most once per pipeline
// - detached phases come last and hold only process tasks
// - precondition tasks do not share a phase with other kinds
// - tasks within one phase write disjoint destination files
// - a task reading generated content runs after every task generating it
//
// Output checks use Planner predictions, so they reflect the files present
// on disk when Validate runs.
func Validate(ctx context.Context, g *Graph) *ValidationResult {
	result := &ValidationResult{Valid: true}
	pipelines := g.Pipelines()
	if len(pipelines) == 0 {
		result.AddWarning("No pipelines declared")
		return result
	}
	for _, p := range pipelines {
		validatePipeline(ctx, g, p, result)
	}
	return result
}

// planned is one task's predicted effect within a pipeline.
type planned struct {
	task    string
	phase   int
	reads   []string
	creates []string // generating writes, including derived companions
	writes  []string // creates plus in-place rewrites
}

func validatePipeline(ctx context.Context, g *Graph, p Pipeline, result *ValidationResult) {
	if len(p.Phases) == 0 {
		result.AddWarning("pipeline %q has no phases", p.Name)
		return
	}

	seenTask := make(map[string]string)
	seenPhase := make(map[string]bool)
	detachedFrom := -1

	for i, phase := range p.Phases {
		if phase.Name == "" {
			result.AddError("pipeline %q phase %d has no name", p.Name, i+1)
		} else if seenPhase[phase.Name] {
			result.AddError("pipeline %q declares phase %q twice", p.Name, phase.Name)
		}
		seenPhase[phase.Name] = true

		if len(phase.Tasks) == 0 {
			result.AddWarning("pipeline %q phase %q has no tasks", p.Name, phase.Name)
		}
		if phase.Detached && detachedFrom < 0 {
			detachedFrom = i
		}
		if !phase.Detached && detachedFrom >= 0 {
			result.AddError("pipeline %q phase %q follows detached phase %q", p.Name, phase.Name, p.Phases[detachedFrom].Name)
		}

		kinds := make(map[tasks.Kind]int)
		for _, name := range phase.Tasks {
			t, ok := g.Task(name)
			if !ok {
				result.AddError("pipeline %q phase %q references unknown task %q", p.Name, phase.Name, name)
				continue
			}
			if prev, dup := seenTask[name]; dup {
				result.AddError("pipeline %q runs task %q twice (phases %q and %q)", p.Name, name, prev, phase.Name)
			}
			seenTask[name] = phase.Name
			kinds[t.Kind()]++
			if phase.Detached && t.Kind() != tasks.KindProcess {
				result.AddError("pipeline %q detached phase %q contains %s task %q", p.Name, phase.Name, t.Kind(), name)
			}
		}
		if kinds[tasks.KindPrecondition] > 0 && len(kinds) > 1 {
			result.AddError("pipeline %q phase %q mixes precondition tasks with other kinds", p.Name, phase.Name)
		}
		if kinds[tasks.KindPrecondition] > 0 && i > 0 {
			result.AddWarning("pipeline %q runs precondition phase %q after other phases", p.Name, phase.Name)
		}
	}

	plans := planPipeline(ctx, g, p, result)
	checkDisjoint(p, plans, result)
	checkOrdering(p, plans, result)
}

// planPipeline predicts each task's outputs phase by phase. Rewrite rules are
// resolved against files generated by earlier phases.
func planPipeline(ctx context.Context, g *Graph, p Pipeline, result *ValidationResult) []planned {
	var out []planned
	var generated []string

	for i, phase := range p.Phases {
		var created []string
		for _, name := range phase.Tasks {
			t, ok := g.Task(name)
			if !ok {
				continue
			}
			planner, ok := t.(tasks.Planner)
			if !ok {
				continue
			}
			plan, err := planner.Plan(ctx)
			if err != nil {
				result.AddError("task %q cannot be planned: %v", name, err)
				continue
			}
			pl := planned{task: name, phase: i, reads: plan.Reads}
			pl.creates = append(pl.creates, plan.Writes...)
			for _, rule := range plan.Rewrites {
				for _, dest := range generated {
					if !ruleMatches(rule, dest) {
						continue
					}
					if rule.Rename != nil {
						pl.creates = append(pl.creates, rule.Rename(dest))
					} else {
						pl.writes = append(pl.writes, dest)
					}
				}
			}
			pl.writes = append(pl.writes, pl.creates...)
			created = append(created, pl.creates...)
			out = append(out, pl)
		}
		generated = append(generated, created...)
		sort.Strings(generated)
	}
	return out
}

func ruleMatches(rule tasks.RewriteRule, dest string) bool {
	rel, ok := relUnder(rule.Spec.Base, dest)
	if !ok || !rule.Spec.Match(rel) {
		return false
	}
	return rule.Accept == nil || rule.Accept(rel)
}

// relUnder strips base from a slash-separated destination path.
func relUnder(base, dest string) (string, bool) {
	if base == "" || base == "." {
		return dest, true
	}
	prefix := strings.TrimSuffix(base, "/") + "/"
	if !strings.HasPrefix(dest, prefix) {
		return "", false
	}
	return strings.TrimPrefix(dest, prefix), true
}

func checkDisjoint(p Pipeline, plans []planned, result *ValidationResult) {
	owners := make(map[int]map[string]string)
	for _, pl := range plans {
		byPath, ok := owners[pl.phase]
		if !ok {
			byPath = make(map[string]string)
			owners[pl.phase] = byPath
		}
		for _, dest := range pl.writes {
			if other, clash := byPath[dest]; clash && other != pl.task {
				result.AddError("pipeline %q phase %q: tasks %q and %q both write %s",
					p.Name, p.Phases[pl.phase].Name, other, pl.task, dest)
				continue
			}
			byPath[dest] = pl.task
		}
	}
}

func checkOrdering(p Pipeline, plans []planned, result *ValidationResult) {
	for _, reader := range plans {
		if len(reader.reads) == 0 {
			continue
		}
		for _, writer := range plans {
			if writer.task == reader.task || writer.phase < reader.phase {
				continue
			}
			if dest, ok := firstMatch(reader.reads, writer.creates); ok {
				result.AddError("pipeline %q: task %q (phase %q) reads %s which %q generates in phase %q",
					p.Name, reader.task, p.Phases[reader.phase].Name, dest, writer.task, p.Phases[writer.phase].Name)
			}
		}
	}
}

func firstMatch(globs, files []string) (string, bool) {
	for _, f := range files {
		for _, g := range globs {
			if ok, _ := doublestar.Match(g, f); ok {
				return f, true
			}
		}
	}
	return "", false
}
