package weave

import "strings"

// PathSegment names one step of a walk through a response tree: a field
// name, and whether that field's value is itself a list to be walked
// elementwise.
type PathSegment struct {
	Name   string
	IsList bool
}

// representationKeyName returns the synthetic key a Flatten step looks
// for at the end of its representation path: fields named __key<prefix>_<name>
// hold representation data for that step and nothing else reads them.
func representationKeyName(prefix, name string) string {
	return "__key" + prefix + "_" + name
}

func hasRepresentationPrefix(key, prefix string) (string, bool) {
	marker := "__key" + prefix + "_"
	if !strings.HasPrefix(key, marker) {
		return "", false
	}
	return strings.TrimPrefix(key, marker), true
}

// collectRepresentations walks data along path, and at each site collects
// every __key<prefix>_* field into one representation object, stripping
// those fields from data as it goes. Sites where a list is expected but the
// value is null are skipped (nothing to represent); walking otherwise stops
// reporting an empty result for that branch rather than erroring, since a
// null parent legitimately has no children to flatten.
//
// The returned slice has one representation object per leaf site reached,
// in document order, matching the order applyEntities must graft results
// back into.
func collectRepresentations(data *V, path []PathSegment, prefix string) []V {
	var out []V
	collectRepresentationsRec(data, path, prefix, &out)
	return out
}

func collectRepresentationsRec(data *V, path []PathSegment, prefix string, out *[]V) {
	if data.IsNull() {
		return
	}
	if len(path) == 0 {
		obj, ok := data.AsObject()
		if !ok {
			return
		}
		rep := NewObject()
		for _, key := range append([]string(nil), obj.Keys()...) {
			name, ok := hasRepresentationPrefix(key, prefix)
			if !ok {
				continue
			}
			v, _ := obj.Get(key)
			rep.Set(name, v)
			obj.Delete(key)
		}
		*out = append(*out, ObjectValue(rep))
		return
	}

	seg := path[0]
	obj, ok := data.AsObject()
	if !ok {
		return
	}
	child, ok := obj.Get(seg.Name)
	if !ok {
		return
	}

	if seg.IsList {
		list, ok := child.AsList()
		if !ok {
			return
		}
		for i := range list {
			collectRepresentationsRec(&list[i], path[1:], prefix, out)
		}
		obj.Set(seg.Name, List(list...))
		return
	}

	collectRepresentationsRec(&child, path[1:], prefix, out)
	obj.Set(seg.Name, child)
}

// mergeAtPath deep-merges fragment into target at the site path points to,
// creating object entries along the way as needed. Each recursive call
// writes its result back into the parent object before returning, the same
// write-back discipline collectRepresentations and applyEntities use,
// since an Object's values are stored by value and a local copy's mutations
// are otherwise invisible to the map that holds it.
func mergeAtPath(target *V, path []PathSegment, fragment V) {
	if len(path) == 0 {
		mergeInto(target, fragment)
		return
	}

	if target.IsNull() {
		*target = ObjectValue(NewObject())
	}
	obj, ok := target.AsObject()
	if !ok {
		return
	}

	seg := path[0]
	child, ok := obj.Get(seg.Name)
	if !ok {
		child = Null()
	}

	if seg.IsList {
		list, _ := child.AsList()
		for i := range list {
			mergeAtPath(&list[i], path[1:], fragment)
		}
		obj.Set(seg.Name, List(list...))
		return
	}

	mergeAtPath(&child, path[1:], fragment)
	obj.Set(seg.Name, child)
}

// applyEntities grafts entities (results returned by a subgraph's _entities
// query, one per representation previously collected) back into data at the
// same sites collectRepresentations gathered them from, in the same order.
// A site for which no entity remains (fewer entities than sites) is left
// untouched — whatever collectRepresentations stripped it down to stays as
// is, it is not nulled out; extra entities beyond the number of sites are
// ignored.
func applyEntities(data *V, path []PathSegment, entities []V) {
	i := 0
	applyEntitiesRec(data, path, entities, &i)
}

func applyEntitiesRec(data *V, path []PathSegment, entities []V, i *int) {
	if data.IsNull() {
		return
	}
	if len(path) == 0 {
		if *i >= len(entities) {
			return
		}
		entity := entities[*i]
		*i++
		if data.kind != KindObject {
			*data = entity
			return
		}
		mergeInto(data, entity)
		return
	}

	seg := path[0]
	obj, ok := data.AsObject()
	if !ok {
		return
	}
	child, ok := obj.Get(seg.Name)
	if !ok {
		return
	}

	if seg.IsList {
		list, ok := child.AsList()
		if !ok {
			return
		}
		for idx := range list {
			applyEntitiesRec(&list[idx], path[1:], entities, i)
		}
		obj.Set(seg.Name, List(list...))
		return
	}

	applyEntitiesRec(&child, path[1:], entities, i)
	obj.Set(seg.Name, child)
}
