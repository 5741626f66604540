package detector

import (
	"cmp"
	"maps"
	"slices"
)

// GroupToken identifies one logical fetch. Every identity registered under
// the same token belongs to the same possible-object group.
type GroupToken string

// classAssoc is the (class, association) pair findings are reported on.
type classAssoc struct {
	class       string
	association string
}

func compareClassAssoc(a, b classAssoc) int {
	return cmp.Or(cmp.Compare(a.class, b.class), cmp.Compare(a.association, b.association))
}

type accessKey struct {
	id          ObjectIdentity
	association string
}

type idSet map[ObjectIdentity]struct{}

type group struct {
	order   int
	members idSet
}

// Registry stores the bookkeeping of one unit of work: possible-object
// groups, eager load declarations and association reads. It is not safe for
// concurrent use; Detector serializes access to it.
type Registry struct {
	groups     map[GroupToken]*group
	membership map[ObjectIdentity]map[GroupToken]struct{}
	singles    idSet
	eagerLoads map[classAssoc]idSet
	accesses   map[accessKey]struct{}
	// accessed indexes accesses by identity for the N+1 pass
	accessed map[ObjectIdentity]map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		groups:     make(map[GroupToken]*group),
		membership: make(map[ObjectIdentity]map[GroupToken]struct{}),
		singles:    make(idSet),
		eagerLoads: make(map[classAssoc]idSet),
		accesses:   make(map[accessKey]struct{}),
		accessed:   make(map[ObjectIdentity]map[string]struct{}),
	}
}

// RegisterPossibleObjects creates the group for token or merges ids into it.
// Zero identities are skipped. It reports whether any identity was recorded.
func (r *Registry) RegisterPossibleObjects(token GroupToken, ids ...ObjectIdentity) bool {
	if token == "" || len(ids) == 0 {
		return false
	}

	accepted := false
	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		g, ok := r.groups[token]
		if !ok {
			g = &group{order: len(r.groups), members: make(idSet, len(ids))}
			r.groups[token] = g
		}
		g.members[id] = struct{}{}
		accepted = true
		tokens, ok := r.membership[id]
		if !ok {
			tokens = make(map[GroupToken]struct{}, 1)
			r.membership[id] = tokens
		}
		tokens[token] = struct{}{}
	}
	return accepted
}

// RegisterSingleObject records an object fetched on its own. Such objects
// have no siblings in that fetch and never count toward repetition, even if
// the same row also appears in a group.
func (r *Registry) RegisterSingleObject(id ObjectIdentity) bool {
	if id.IsZero() {
		return false
	}
	r.singles[id] = struct{}{}
	return true
}

// RegisterEagerLoad declares that association was eagerly loaded on ids.
// Repeated declarations accumulate their targets.
func (r *Registry) RegisterEagerLoad(ownerClass, association string, ids ...ObjectIdentity) bool {
	if ownerClass == "" || association == "" {
		return false
	}

	key := classAssoc{class: ownerClass, association: association}
	added := false
	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		targets, ok := r.eagerLoads[key]
		if !ok {
			targets = make(idSet, len(ids))
			r.eagerLoads[key] = targets
		}
		targets[id] = struct{}{}
		added = true
	}
	return added
}

// RegisterAccess records that association was read on id.
func (r *Registry) RegisterAccess(id ObjectIdentity, association string) bool {
	if id.IsZero() || association == "" {
		return false
	}

	r.accesses[accessKey{id: id, association: association}] = struct{}{}
	assocs, ok := r.accessed[id]
	if !ok {
		assocs = make(map[string]struct{}, 1)
		r.accessed[id] = assocs
	}
	assocs[association] = struct{}{}
	return true
}

// GroupsContaining returns the groups id belongs to in creation order.
func (r *Registry) GroupsContaining(id ObjectIdentity) []GroupToken {
	tokens := slices.Collect(maps.Keys(r.membership[id]))
	slices.SortFunc(tokens, func(a, b GroupToken) int {
		return cmp.Compare(r.groups[a].order, r.groups[b].order)
	})
	return tokens
}

// HasAccess reports whether association was read on id.
func (r *Registry) HasAccess(id ObjectIdentity, association string) bool {
	_, ok := r.accesses[accessKey{id: id, association: association}]
	return ok
}

// IsCovered reports whether an eager load of association includes id.
func (r *Registry) IsCovered(id ObjectIdentity, association string) bool {
	_, ok := r.eagerLoads[classAssoc{class: id.Class, association: association}][id]
	return ok
}

// IsSingle reports whether id was fetched on its own.
func (r *Registry) IsSingle(id ObjectIdentity) bool {
	_, ok := r.singles[id]
	return ok
}

// Empty reports whether nothing has been registered.
func (r *Registry) Empty() bool {
	return len(r.groups) == 0 && len(r.singles) == 0 && len(r.eagerLoads) == 0 && len(r.accesses) == 0
}

// Stats summarizes the registry.
func (r *Registry) Stats() Stats {
	tracked := len(r.membership)
	for id := range r.singles {
		if _, grouped := r.membership[id]; !grouped {
			tracked++
		}
	}
	return Stats{
		Groups:         len(r.groups),
		TrackedObjects: tracked,
		SingleObjects:  len(r.singles),
		EagerLoads:     len(r.eagerLoads),
		Accesses:       len(r.accesses),
	}
}

// orderedGroups returns groups in creation order so checker output is stable.
func (r *Registry) orderedGroups() []*group {
	groups := slices.Collect(maps.Values(r.groups))
	slices.SortFunc(groups, func(a, b *group) int { return cmp.Compare(a.order, b.order) })
	return groups
}

// Stats describes the size of one unit of work.
type Stats struct {
	Groups         int `json:"groups" yaml:"groups"`
	TrackedObjects int `json:"tracked_objects" yaml:"tracked_objects"`
	SingleObjects  int `json:"single_objects" yaml:"single_objects"`
	EagerLoads     int `json:"eager_loads" yaml:"eager_loads"`
	Accesses       int `json:"accesses" yaml:"accesses"`
}
