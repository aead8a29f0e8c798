package crdtdoc

// containers is the flat registry of every container that currently exists
// in the document, keyed by its path. Container identity is derived purely
// from the schema-fixed path (field names) plus stable element ids, so two
// replicas that reach the same set of containers always agree on their
// addresses without any separate "create container" operation.
type containers struct {
	maps map[string]*mapContainer
	seqs map[string]*seqContainer
}

func newContainers() *containers {
	return &containers{
		maps: make(map[string]*mapContainer),
		seqs: make(map[string]*seqContainer),
	}
}

func (c *containers) ensureMap(path Path, kind mapKind) *mapContainer {
	k := path.key()
	if m, ok := c.maps[k]; ok {
		return m
	}

	m := newMapContainer(kind)
	c.maps[k] = m

	return m
}

func (c *containers) ensureSeq(path Path, isText bool) *seqContainer {
	k := path.key()
	if s, ok := c.seqs[k]; ok {
		return s
	}

	s := newSeqContainer(isText)
	c.seqs[k] = s

	return s
}

// applyOp merges a single operation into the container registry. It is
// used both for locally-produced ops (inside the same transaction they
// were diffed in) and for ops arriving in a remote Update — the exact same
// code path, which is what makes merging commutative and idempotent.
func applyOp(c *containers, op Op) {
	switch op.Kind {
	case OpFieldSet:
		kind := mapObject
		if op.ContainerKind == ContainerRecord {
			kind = mapRecord
		}

		m := c.ensureMap(op.Path, kind)
		m.set(op.Key, op.Ts, op.Value)

	case OpRecordDelete:
		m := c.ensureMap(op.Path, mapRecord)
		m.delete(op.Key, op.Ts)

	case OpSeqInsert:
		isText := op.ContainerKind == ContainerTextSeq
		s := c.ensureSeq(op.Path, isText)

		if idx := s.seq.find(op.Elem); idx >= 0 {
			// Idempotent replay: element already present.
			return
		}

		s.seq.insertAfter(op.After, &elem{ID: op.Elem, Value: op.Value})

	case OpSeqDelete:
		isText := op.ContainerKind == ContainerTextSeq
		s := c.ensureSeq(op.Path, isText)

		if idx := s.seq.find(op.Elem); idx >= 0 {
			e := s.seq.elems[idx]
			if !e.Deleted || e.DeletedTs.Less(op.Ts) {
				e.Deleted = true
				e.DeletedTs = op.Ts
			}
		}

	case OpSeqUndelete:
		isText := op.ContainerKind == ContainerTextSeq
		s := c.ensureSeq(op.Path, isText)

		if idx := s.seq.find(op.Elem); idx >= 0 {
			e := s.seq.elems[idx]
			if e.DeletedTs.Less(op.Ts) || e.DeletedTs == op.Ts {
				e.Deleted = false
				e.DeletedTs = op.Ts
			}
		}
	}
}
