package sim

// Store is the scratch stack the move engine uses to snapshot a site before
// a trial so a rejected trial can be undone.
type Store struct {
	stack []snapshot
}

type snapshot struct {
	site  *Site
	saved Site
}

// Push saves a copy of site.
func (s *Store) Push(site *Site) {
	s.stack = append(s.stack, snapshot{site: site, saved: *site})
}

// Pull restores the most recent snapshot into its site and pops it.
// It reports false when the store is empty.
func (s *Store) Pull() bool {
	n := len(s.stack)
	if n == 0 {
		return false
	}
	top := s.stack[n-1]
	*top.site = top.saved
	s.stack = s.stack[:n-1]
	return true
}

// Drop pops the most recent snapshot without restoring it.
func (s *Store) Drop() bool {
	n := len(s.stack)
	if n == 0 {
		return false
	}
	s.stack = s.stack[:n-1]
	return true
}

// Len returns the number of pending snapshots.
func (s *Store) Len() int { return len(s.stack) }
