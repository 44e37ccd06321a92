package midi

import "strings"

// portKey names a port by its display name and its position among ports
// sharing that name. rtmidi port numbers are list positions and shift
// whenever any port comes or goes, so they cannot serve as identity.
type portKey struct {
	name string
	nth  int
}

// portTable mints endpoint ids for one direction. An id stays bound to the
// same (name, nth) for the life of the table.
type portTable struct {
	kind EndpointID
	last EndpointID
	ids  map[portKey]EndpointID
	keys map[EndpointID]portKey
}

func newPortTable(kind EndpointID) *portTable {
	return &portTable{
		kind: kind,
		ids:  make(map[portKey]EndpointID),
		keys: make(map[EndpointID]portKey),
	}
}

func keysOf(names []string) []portKey {
	seen := make(map[string]int, len(names))
	keys := make([]portKey, len(names))
	for i, n := range names {
		keys[i] = portKey{name: n, nth: seen[n]}
		seen[n]++
	}
	return keys
}

// assign returns the id of each port in names, minting ids for ports not
// seen before
func (t *portTable) assign(names []string) []EndpointID {
	keys := keysOf(names)
	ids := make([]EndpointID, len(keys))
	for i, k := range keys {
		id, ok := t.ids[k]
		if !ok {
			t.last++
			id = t.kind | t.last&idNumberMask
			t.ids[k] = id
			t.keys[id] = k
		}
		ids[i] = id
	}
	return ids
}

// find returns the position in names of the port id was minted for, or -1
func (t *portTable) find(id EndpointID, names []string) int {
	k, ok := t.keys[id]
	if !ok {
		return -1
	}
	for i, got := range keysOf(names) {
		if got == k {
			return i
		}
	}
	return -1
}

func portNames[P interface{ String() string }](ports []P) []string {
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.String()
	}
	return names
}

func portSignature(ins, outs []string) string {
	return strings.Join(ins, "\n") + "\x00" + strings.Join(outs, "\n")
}
