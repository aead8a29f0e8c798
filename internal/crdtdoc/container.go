package crdtdoc

import (
	"sort"
	"strconv"
	"strings"
)

// PathSeg is one step in the path from the document root to a container.
// A Field step descends into an Object's fixed field or a Record's keyed
// entry; an Elem step descends into the container addressed by one
// element of an array.
type PathSeg struct {
	Field  string
	Elem   ElemID
	IsElem bool
}

// Path addresses a container relative to the document root.
type Path []PathSeg

// key renders the path as a stable map key for the container registry.
func (p Path) key() string {
	var b strings.Builder

	for _, seg := range p {
		b.WriteByte('/')

		if seg.IsElem {
			b.WriteString(seg.Elem.Actor)
			b.WriteByte(':')
			b.WriteString(strconv.FormatUint(seg.Elem.Counter, 10))
		} else {
			b.WriteString(seg.Field)
		}
	}

	return b.String()
}

// Append returns a new path with seg added at the end.
func (p Path) Append(seg PathSeg) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = seg

	return out
}

// register is an LWW cell: a single value with a timestamp, used for
// Object fields and Record entries.
type register struct {
	Ts      Timestamp
	Value   any
	Deleted bool // Record entries only: tombstoned keys
}

// mapKind distinguishes Object (fixed fields, never deleted) from Record
// (homogeneous, keys may be deleted) containers — both are backed by the
// same register-map structure.
type mapKind int

const (
	mapObject mapKind = iota
	mapRecord
)

// mapContainer backs Object and Record schema nodes.
type mapContainer struct {
	kind    mapKind
	entries map[string]*register
}

func newMapContainer(kind mapKind) *mapContainer {
	return &mapContainer{kind: kind, entries: make(map[string]*register)}
}

// set applies an LWW write: it takes effect iff ts is not older than
// whatever is currently stored. Returns whether the write took effect.
func (m *mapContainer) set(key string, ts Timestamp, value any) bool {
	if cur, ok := m.entries[key]; ok && ts.Less(cur.Ts) {
		return false
	}

	m.entries[key] = &register{Ts: ts, Value: value}

	return true
}

// delete tombstones a Record key (no-op for Object containers, whose
// fields are fixed by schema) under the same LWW rule as set.
func (m *mapContainer) delete(key string, ts Timestamp) bool {
	if m.kind == mapObject {
		return false
	}

	if cur, ok := m.entries[key]; ok && ts.Less(cur.Ts) {
		return false
	}

	m.entries[key] = &register{Ts: ts, Deleted: true}

	return true
}

// keys returns the live (non-deleted, present) keys in sorted order.
func (m *mapContainer) keys() []string {
	out := make([]string, 0, len(m.entries))

	for k, r := range m.entries {
		if !r.Deleted {
			out = append(out, k)
		}
	}

	sort.Strings(out)

	return out
}

// seqContainer backs Array and Text schema nodes.
type seqContainer struct {
	isText bool
	seq    sequence
}

func newSeqContainer(isText bool) *seqContainer {
	return &seqContainer{isText: isText}
}
