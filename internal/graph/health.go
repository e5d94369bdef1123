package graph

// BrokenRef is one reference that produced no edge: its target matched
// nothing, or more than one candidate. Target is the raw link text as
// written in the source note.
type BrokenRef struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	Ambiguous bool   `json:"ambiguous,omitempty"`
}

// HealthReport summarizes the link hygiene of a snapshot: every broken
// reference plus the notes that participate in no edge at all.
type HealthReport struct {
	Notes      int         `json:"notes"`
	Edges      int         `json:"edges"`
	Unresolved int         `json:"unresolved"`
	Ambiguous  int         `json:"ambiguous"`
	BrokenRefs []BrokenRef `json:"broken_refs"`
	Orphans    []string    `json:"orphans"`
}

// Health builds the link-health report for this snapshot. BrokenRefs are
// ordered by source path then document order; Orphans are note files with
// neither inbound nor outbound edges, in path order.
func (s *Snapshot) Health() HealthReport {
	rep := HealthReport{
		Notes:      len(s.Paths),
		Edges:      len(s.Edges),
		Unresolved: s.Unresolved,
		Ambiguous:  s.Ambiguous,
		BrokenRefs: make([]BrokenRef, len(s.broken)),
		Orphans:    []string{},
	}
	copy(rep.BrokenRefs, s.broken)

	for _, p := range s.Paths {
		if !s.Notes[p].Kind.IsNote() {
			continue
		}
		if s.outDegree[p] == 0 && len(s.inbound[p]) == 0 {
			rep.Orphans = append(rep.Orphans, p)
		}
	}
	return rep
}
