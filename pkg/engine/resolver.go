package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"eligos-hq/atlas/pkg/atom"
	"eligos-hq/atlas/pkg/store"
)

// Node is one atom in a dependency graph, annotated with the depth at which
// it was first visited.
type Node struct {
	Code  string
	Depth int
	Deps  []string
}

// Graph is the dependency DAG of one resolution call. It is built fresh per
// call, never persisted, and used to compute a dependencies-first execution
// order before any evaluation happens.
type Graph struct {
	Root  string
	Nodes map[string]*Node

	// Order is the post-order execution order: every atom appears after
	// all of its dependencies and exactly once (diamond dependencies are
	// de-duplicated).
	Order []string
}

// Resolver fetches atoms from the store and builds validated dependency
// graphs.
type Resolver struct {
	atoms    store.AtomStore
	maxDepth int
	logger   *slog.Logger
}

// NewResolver creates a dependency resolver. maxDepth bounds graph depth;
// zero or negative selects the default of 10.
func NewResolver(atoms store.AtomStore, maxDepth int, logger *slog.Logger) *Resolver {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		atoms:    atoms,
		maxDepth: maxDepth,
		logger:   logger,
	}
}

// Resolve returns the latest executable version of the atom with the given
// code. An absent code or a code whose latest executable version does not
// exist fails with AtomNotFoundError.
func (r *Resolver) Resolve(ctx context.Context, tenantID, code string) (*atom.Atom, error) {
	a, err := r.atoms.FindByCode(ctx, tenantID, code)
	if err != nil {
		return nil, fmt.Errorf("atom store lookup for %q failed: %w", code, err)
	}
	if a == nil || !a.Executable() {
		return nil, &AtomNotFoundError{TenantID: tenantID, Code: code}
	}
	return a, nil
}

// BuildGraph traverses the atom's transitive dependencies depth-first and
// returns the dependency graph with a dependencies-first execution order.
//
// The traversal keeps two sets: the path set (atoms on the current
// root-to-node path) and the visited set (atoms fully processed). Recursion
// into an atom on the path set is a cycle; recursion into a visited atom is
// a diamond and is allowed. Each node is appended to the order only after
// all of its children, so dependencies always execute before dependents.
func (r *Resolver) BuildGraph(ctx context.Context, root *atom.Atom) (*Graph, error) {
	g := &Graph{
		Root:  root.Code,
		Nodes: make(map[string]*Node),
	}

	path := make(map[string]bool)
	visited := make(map[string]bool)
	var pathList []string

	var visit func(a *atom.Atom, depth int) error
	visit = func(a *atom.Atom, depth int) error {
		if depth > r.maxDepth {
			return &DepthError{Code: a.Code, Depth: depth, MaxDepth: r.maxDepth}
		}

		path[a.Code] = true
		pathList = append(pathList, a.Code)
		defer func() {
			delete(path, a.Code)
			pathList = pathList[:len(pathList)-1]
		}()

		deps := a.DirectDependencies()
		g.Nodes[a.Code] = &Node{Code: a.Code, Depth: depth, Deps: deps}

		var missing []string
		for _, code := range deps {
			if path[code] {
				return &CycleError{
					Code: code,
					Path: append(append([]string{}, pathList...), code),
				}
			}
			if visited[code] {
				continue // diamond dependency, already processed
			}

			dep, err := r.Resolve(ctx, a.TenantID, code)
			if err != nil {
				var notFound *AtomNotFoundError
				if errors.As(err, &notFound) {
					missing = append(missing, code)
					continue
				}
				return err
			}
			if err := visit(dep, depth+1); err != nil {
				return err
			}
		}
		if len(missing) > 0 {
			return &DependencyError{Code: a.Code, Missing: missing}
		}

		visited[a.Code] = true
		g.Order = append(g.Order, a.Code)
		return nil
	}

	if err := visit(root, 1); err != nil {
		return nil, err
	}

	r.logger.Debug("dependency graph built",
		"root", root.Code,
		"nodes", len(g.Nodes),
		"order", g.Order,
	)

	return g, nil
}
