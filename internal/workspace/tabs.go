package workspace

import "slices"

// TabSet is the ordered list of open files plus the active one.
// ActiveFileID is empty iff OpenFileIDs is empty.
type TabSet struct {
	OpenFileIDs  []string
	ActiveFileID string
}

// Contains reports whether id is open.
func (t TabSet) Contains(id string) bool {
	return slices.Contains(t.OpenFileIDs, id)
}

// Clone returns a deep copy.
func (t TabSet) Clone() TabSet {
	return TabSet{OpenFileIDs: slices.Clone(t.OpenFileIDs), ActiveFileID: t.ActiveFileID}
}

// Select activates id, appending it to the end when it is not open yet.
// Existing tabs keep their order.
func (t TabSet) Select(id string) TabSet {
	next := t.Clone()
	if !next.Contains(id) {
		next.OpenFileIDs = append(next.OpenFileIDs, id)
	}
	next.ActiveFileID = id
	return next
}

// Close removes id. When id was active the right neighbour becomes active,
// else the left one. When no tab remains the first of projectFileIDs is
// opened (which may be id itself), or the set becomes empty when the
// project has no files.
func (t TabSet) Close(id string, projectFileIDs []string) TabSet {
	idx := slices.Index(t.OpenFileIDs, id)
	if idx < 0 {
		return t.Clone()
	}

	next := TabSet{
		OpenFileIDs:  slices.Delete(slices.Clone(t.OpenFileIDs), idx, idx+1),
		ActiveFileID: t.ActiveFileID,
	}
	if t.ActiveFileID != id {
		return next
	}

	switch {
	case idx < len(next.OpenFileIDs):
		next.ActiveFileID = next.OpenFileIDs[idx]
	case len(next.OpenFileIDs) > 0:
		next.ActiveFileID = next.OpenFileIDs[len(next.OpenFileIDs)-1]
	case len(projectFileIDs) > 0:
		next.OpenFileIDs = []string{projectFileIDs[0]}
		next.ActiveFileID = projectFileIDs[0]
	default:
		next.ActiveFileID = ""
	}
	return next
}

// Prune drops ids missing from projectFileIDs, then restores the active
// invariant the same way Close does.
func (t TabSet) Prune(projectFileIDs []string) TabSet {
	next := t.Clone()
	for _, id := range t.OpenFileIDs {
		if !slices.Contains(projectFileIDs, id) {
			next = next.Close(id, projectFileIDs)
		}
	}
	if next.ActiveFileID == "" && len(next.OpenFileIDs) > 0 {
		next.ActiveFileID = next.OpenFileIDs[0]
	}
	return next
}
