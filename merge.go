package weave

// mergeInto deep-merges fragment into the value pointed to by target,
// following the contract the executor relies on when stitching subgraph
// responses together: target wins on any type mismatch, silently.
//
//	target      fragment    result
//	null        any         replaced with fragment
//	object      object      recurse per key, inserting keys absent in target
//	list (n)    list (n)    recurse pairwise by index
//	list (m!=n) list        no-op, fragment dropped
//	scalar      any         no-op, target retained
//
// Fetches are assumed to return shape-compatible, additive fragments, so a
// non-null scalar already present in target is never clobbered. A list
// length mismatch signals a plan/data inconsistency and is dropped rather
// than panicking; callers see it as a missing field, never a crash.
func mergeInto(target *V, fragment V) {
	switch target.kind {
	case KindNull:
		*target = fragment
	case KindObject:
		fragObj, ok := fragment.AsObject()
		if !ok {
			return
		}
		targetObj, _ := target.AsObject()
		fragObj.Range(func(name string, fv V) {
			if existing, ok := targetObj.Get(name); ok {
				mergeInto(&existing, fv)
				targetObj.Set(name, existing)
			} else {
				targetObj.Set(name, fv)
			}
		})
	case KindList:
		fragList, ok := fragment.AsList()
		if !ok {
			return
		}
		targetList, _ := target.AsList()
		if len(targetList) != len(fragList) {
			return
		}
		merged := make([]V, len(targetList))
		copy(merged, targetList)
		for i := range merged {
			mergeInto(&merged[i], fragList[i])
		}
		*target = List(merged...)
	default:
		// boolean, number, string, enum: target is retained.
	}
}

// mergeErrors appends each error in fragment to target, clearing locations:
// a subgraph's source locations describe a document the gateway's caller
// never saw.
func mergeErrors(target *[]ServerError, fragment []ServerError) {
	for _, e := range fragment {
		*target = append(*target, ServerError{Message: e.Message, Locations: nil})
	}
}
