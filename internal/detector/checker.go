package detector

import (
	"cmp"
	"maps"
	"slices"
)

// nPlusOneThreshold is the number of siblings that must resolve the same
// association lazily before it counts as repetition.
const nPlusOneThreshold = 2

// finding is an unfiltered result of one checker pass.
type finding struct {
	key classAssoc
	// objects that triggered the finding, in identity order
	objects []ObjectIdentity
}

// checkUnpreloaded finds associations read lazily on at least two members of
// the same possible-object group. Objects outside every group and objects
// also fetched on their own never count. Each hop of a chained association
// is its own (class, association) pair and is judged against its own group.
func checkUnpreloaded(r *Registry) map[classAssoc]*finding {
	found := make(map[classAssoc]*finding)

	for _, g := range r.orderedGroups() {
		lazy := make(map[classAssoc][]ObjectIdentity)
		for id := range g.members {
			if r.IsSingle(id) {
				continue
			}
			for association := range r.accessed[id] {
				if r.IsCovered(id, association) {
					continue
				}
				key := classAssoc{class: id.Class, association: association}
				lazy[key] = append(lazy[key], id)
			}
		}

		for key, ids := range lazy {
			if len(ids) < nPlusOneThreshold {
				continue
			}
			f, ok := found[key]
			if !ok {
				f = &finding{key: key}
				found[key] = f
			}
			f.objects = append(f.objects, ids...)
		}
	}

	for _, f := range found {
		f.objects = sortedUnique(f.objects)
	}
	return found
}

// checkUnusedEagerLoads finds eager load declarations none of whose targets
// read the association.
func checkUnusedEagerLoads(r *Registry) map[classAssoc]*finding {
	found := make(map[classAssoc]*finding)

	for key, targets := range r.eagerLoads {
		used := false
		for id := range targets {
			if r.HasAccess(id, key.association) {
				used = true
				break
			}
		}
		if used {
			continue
		}
		found[key] = &finding{key: key, objects: sortedUnique(slices.Collect(maps.Keys(targets)))}
	}
	return found
}

func sortedUnique(ids []ObjectIdentity) []ObjectIdentity {
	slices.SortFunc(ids, func(a, b ObjectIdentity) int {
		return cmp.Or(cmp.Compare(a.Class, b.Class), cmp.Compare(a.Key, b.Key))
	})
	return slices.Compact(ids)
}
