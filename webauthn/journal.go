package webauthn

// journal tracks which named fields of a parsed record have been read by
// the audit engine. Per spec §4.7/§8, every field actually present on a
// record must be visited before a Result can be reported complete;
// forgetting to exercise a field is a correctness bug in the audit set,
// not a caller error, so it surfaces as AUDIT_INCOMPLETE rather than being
// silently ignored.
type journal struct {
	present map[string]bool
	visited map[string]bool
}

func newJournal(present ...string) *journal {
	j := &journal{
		present: make(map[string]bool, len(present)),
		visited: make(map[string]bool, len(present)),
	}
	for _, f := range present {
		j.present[f] = true
	}
	return j
}

func (j *journal) visit(field string) {
	j.visited[field] = true
}

// unvisited returns the present-but-never-read field names, in no
// particular order.
func (j *journal) unvisited() []string {
	var out []string
	for f := range j.present {
		if !j.visited[f] {
			out = append(out, f)
		}
	}
	return out
}

func (j *journal) complete() bool {
	return len(j.unvisited()) == 0
}
