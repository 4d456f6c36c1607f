package subscription

// Binding is one wanted topic and the handler it should call.
type Binding struct {
	Topic   string
	Handler Handler
}

// Plan is the result of comparing the registered topics of a group with a
// wanted set.
type Plan struct {
	Add    []Binding // wanted but not registered, in wanted order
	Keep   []Binding // wanted and already registered
	Remove []string  // registered but no longer wanted, in registry order
}

// Empty reports whether applying the plan changes nothing on the transport.
func (p Plan) Empty() bool {
	return len(p.Add) == 0 && len(p.Remove) == 0
}

// Diff compares current topics with the wanted bindings. A topic listed
// twice in wanted keeps its first position and its last handler.
func Diff(current []string, wanted []Binding) Plan {
	want := make(map[string]int, len(wanted))
	deduped := make([]Binding, 0, len(wanted))
	for _, b := range wanted {
		if i, ok := want[b.Topic]; ok {
			deduped[i].Handler = b.Handler
			continue
		}
		want[b.Topic] = len(deduped)
		deduped = append(deduped, b)
	}

	have := make(map[string]struct{}, len(current))
	var plan Plan
	for _, topic := range current {
		have[topic] = struct{}{}
		if _, ok := want[topic]; !ok {
			plan.Remove = append(plan.Remove, topic)
		}
	}
	for _, b := range deduped {
		if _, ok := have[b.Topic]; ok {
			plan.Keep = append(plan.Keep, b)
		} else {
			plan.Add = append(plan.Add, b)
		}
	}
	return plan
}

// Plan diffs the entries of group against wanted.
func (r *Registry) Plan(group string, wanted []Binding) Plan {
	return Diff(r.Topics(group), wanted)
}
