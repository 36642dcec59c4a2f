package clusterstate

import "sync"

// State is the per-node holder of the three shared tables. Readers
// outnumber writers (spec §4.2): each table gets its own sync.RWMutex so
// that, e.g., a NETMAP SET broadcast never blocks a concurrent TOPOLOGY
// WALK. No cross-table atomicity is provided or required.
type State struct {
	self string

	nmMu sync.RWMutex
	nm   map[string]Status

	topoMu sync.RWMutex
	topo   map[string]string

	tagsMu sync.RWMutex
	tags   map[string]FileTag
}

func New(self string) *State {
	return &State{
		self: self,
		nm:   map[string]Status{self: Alive},
		topo: map[string]string{},
		tags: map[string]FileTag{},
	}
}

func (s *State) Self() string { return s.self }

//
// NetMap
//

// Netmap returns a point-in-time copy of the netmap.
func (s *State) Netmap() map[string]Status {
	s.nmMu.RLock()
	defer s.nmMu.RUnlock()
	out := make(map[string]Status, len(s.nm))
	for k, v := range s.nm {
		out[k] = v
	}
	return out
}

// AliveCount returns N, the number of Alive entries, used to size pushed
// chunks (spec §4.3.4 step 1).
func (s *State) AliveCount() int {
	s.nmMu.RLock()
	defer s.nmMu.RUnlock()
	n := 0
	for _, st := range s.nm {
		if st == Alive {
			n++
		}
	}
	return n
}

func (s *State) SetStatus(addr string, st Status) {
	s.nmMu.Lock()
	s.nm[addr] = st
	s.nmMu.Unlock()
}

func (s *State) GetStatus(addr string) (Status, bool) {
	s.nmMu.RLock()
	defer s.nmMu.RUnlock()
	st, ok := s.nm[addr]
	return st, ok
}

// MergeNetmap replaces the netmap wholesale, forcing self Alive (spec
// §4.2 merge_netmap).
func (s *State) MergeNetmap(entries map[string]Status) {
	cp := make(map[string]Status, len(entries))
	for k, v := range entries {
		cp[k] = v
	}
	cp[s.self] = Alive
	s.nmMu.Lock()
	s.nm = cp
	s.nmMu.Unlock()
}

//
// Topology
//

func (s *State) Topology() map[string]string {
	s.topoMu.RLock()
	defer s.topoMu.RUnlock()
	out := make(map[string]string, len(s.topo))
	for k, v := range s.topo {
		out[k] = v
	}
	return out
}

// SetSelfSuccessor updates topology for this node only (spec §4.2
// set_self_successor).
func (s *State) SetSelfSuccessor(addr string) {
	s.topoMu.Lock()
	s.topo[s.self] = addr
	s.topoMu.Unlock()
}

// Successor returns self's current next hop.
func (s *State) Successor() (string, bool) {
	s.topoMu.RLock()
	defer s.topoMu.RUnlock()
	n, ok := s.topo[s.self]
	return n, ok
}

// MergeTopology replaces the topology wholesale (spec §4.2 merge_topology).
func (s *State) MergeTopology(entries map[string]string) {
	cp := make(map[string]string, len(entries))
	for k, v := range entries {
		cp[k] = v
	}
	s.topoMu.Lock()
	s.topo = cp
	s.topoMu.Unlock()
}

//
// FileTags
//

// SetFileTag idempotently upserts a file tag (spec §4.2 set_file_tag).
func (s *State) SetFileTag(name string, size int64, start string) {
	s.tagsMu.Lock()
	s.tags[name] = FileTag{Size: size, Start: start}
	s.tagsMu.Unlock()
}

func (s *State) GetFileTag(name string) (FileTag, bool) {
	s.tagsMu.RLock()
	defer s.tagsMu.RUnlock()
	t, ok := s.tags[name]
	return t, ok
}

// ListTags returns a point-in-time copy of the whole table (spec §4.2
// list_tags).
func (s *State) ListTags() map[string]FileTag {
	s.tagsMu.RLock()
	defer s.tagsMu.RUnlock()
	out := make(map[string]FileTag, len(s.tags))
	for k, v := range s.tags {
		out[k] = v
	}
	return out
}

// UpsertFileTags applies a batch of records as per-key idempotent upserts
// (spec §5: "push broadcasts of FILE TAGS-SET are idempotent"). Used both
// for a normal push's ring broadcast and the supervisor's full re-sync of
// a respawned peer — re-syncing from an empty table has the same net
// effect as a wholesale install.
func (s *State) UpsertFileTags(tags map[string]FileTag) {
	s.tagsMu.Lock()
	for k, v := range tags {
		s.tags[k] = v
	}
	s.tagsMu.Unlock()
}
