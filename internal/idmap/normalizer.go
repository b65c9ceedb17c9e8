package idmap

import (
	"context"

	"github.com/alexjbarnes/todoist-mcp/internal/ids"
	"github.com/alexjbarnes/todoist-mcp/internal/todoist"
	"golang.org/x/sync/errgroup"
)

// refs points at the id fields of one entity. Nil pointers are fields
// the entity does not have or that are unset.
type refs struct {
	id        *string
	projectID *string
	sectionID *string
	parentID  *string
}

// Normalizer rewrites legacy ids in tool output to canonical ids.
type Normalizer struct {
	resolver Resolver
}

// NewNormalizer creates a Normalizer backed by r.
func NewNormalizer(r Resolver) *Normalizer {
	return &Normalizer{resolver: r}
}

// Tasks rewrites task ids, project ids, section ids and parent task ids.
func (n *Normalizer) Tasks(ctx context.Context, tasks []todoist.Task) {
	entities := make([]refs, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		entities[i] = refs{id: &t.ID, projectID: &t.ProjectID, sectionID: t.SectionID, parentID: t.ParentID}
	}

	n.normalize(ctx, Tasks, entities)
}

// Projects rewrites project ids and parent project ids.
func (n *Normalizer) Projects(ctx context.Context, projects []todoist.Project) {
	entities := make([]refs, len(projects))
	for i := range projects {
		p := &projects[i]
		entities[i] = refs{id: &p.ID, parentID: p.ParentID}
	}

	n.normalize(ctx, Projects, entities)
}

// Sections rewrites section ids and their project ids.
func (n *Normalizer) Sections(ctx context.Context, sections []todoist.Section) {
	entities := make([]refs, len(sections))
	for i := range sections {
		s := &sections[i]
		entities[i] = refs{id: &s.ID, projectID: &s.ProjectID}
	}

	n.normalize(ctx, Sections, entities)
}

// normalize resolves the four id groups concurrently, then applies the
// results. Parent ids live in the same namespace as the entity itself.
func (n *Normalizer) normalize(ctx context.Context, kind ResourceType, entities []refs) {
	var own, projects, sections, parents []string

	for _, e := range entities {
		own = appendLegacy(own, e.id)
		projects = appendLegacy(projects, e.projectID)
		sections = appendLegacy(sections, e.sectionID)
		parents = appendLegacy(parents, e.parentID)
	}

	var ownMap, projectMap, sectionMap, parentMap map[string]string

	// The resolver never fails, so the group is only used to fan out
	// and wait.
	var g errgroup.Group

	n.resolveInto(ctx, &g, kind, own, &ownMap)
	n.resolveInto(ctx, &g, Projects, projects, &projectMap)
	n.resolveInto(ctx, &g, Sections, sections, &sectionMap)
	n.resolveInto(ctx, &g, kind, parents, &parentMap)

	_ = g.Wait()

	for _, e := range entities {
		apply(e.id, ownMap)
		apply(e.projectID, projectMap)
		apply(e.sectionID, sectionMap)
		apply(e.parentID, parentMap)
	}
}

func (n *Normalizer) resolveInto(ctx context.Context, g *errgroup.Group, kind ResourceType, idList []string, dst *map[string]string) {
	if len(idList) == 0 {
		return
	}

	g.Go(func() error {
		*dst = n.resolver.Resolve(ctx, kind, idList)
		return nil
	})
}

func appendLegacy(dst []string, field *string) []string {
	if field == nil || !ids.IsLegacy(*field) {
		return dst
	}

	for _, existing := range dst {
		if existing == *field {
			return dst
		}
	}

	return append(dst, *field)
}

func apply(field *string, mapping map[string]string) {
	if field == nil || mapping == nil {
		return
	}

	if canonical, ok := mapping[*field]; ok {
		*field = canonical
	}
}
