// Package crdtdoc implements the CRDT Document facade described in §4.1 of
// the specification: a typed projection over an operation-based,
// causally-consistent CRDT document whose root is a single map named
// "object". No ready-made, fetchable CRDT library exists anywhere in the
// retrieval pack (see DESIGN.md), so this package implements one directly:
// an LWW-register map/record layer plus an RGA sequence layer for arrays
// and collaborative text, addressed by schema-stable paths rather than a
// separate container-creation op log.
package crdtdoc

import (
	"bytes"
	"encoding/base64"
	"encoding/gob"
	"fmt"
)

// historyEntry is one undo-stack / redo-stack slot: the ops that, when
// applied, reverse a previously-applied local transaction.
type historyEntry struct {
	invs Update
}

// Document is a typed facade over one CRDT document.
type Document struct {
	actor string
	clk   *clock
	c     *containers

	undoStack []historyEntry
	redoStack []historyEntry
}

// New constructs a Document for the given actor (a stable per-replica
// identifier used to break Lamport-timestamp ties) and merges zero or
// more previously-produced binary updates into it, in order.
func New(actor string, updates ...[]byte) (*Document, error) {
	d := &Document{
		actor: actor,
		clk:   newClock(actor),
		c:     newContainers(),
	}

	for _, raw := range updates {
		if err := d.ApplyUpdate(raw); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// NewFromState constructs a Document from a binary snapshot produced by
// State, instead of replaying the full update history.
func NewFromState(actor string, state []byte) (*Document, error) {
	d := &Document{actor: actor, clk: newClock(actor), c: newContainers()}

	if len(state) == 0 {
		return d, nil
	}

	c, maxTs, err := decodeSnapshot(state)
	if err != nil {
		return nil, err
	}

	d.c = c
	d.clk.observe(maxTs)

	return d, nil
}

// Update diffs newObject (which must validate against schema) against the
// document's current JSON projection and applies the minimal set of CRDT
// operations needed to make them equal, inside one local transaction. It
// returns the binary-encoded update produced, or nil if newObject was
// already equal to the current projection.
func (d *Document) Update(schema Schema, newObject any) ([]byte, error) {
	if _, err := Validate(schema, newObject); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	t := &txn{clock: d.clk}

	if err := diffValue(t, d.c, schema, Path{}, newObject); err != nil {
		return nil, err
	}

	if len(t.ops) == 0 {
		return nil, nil
	}

	proj := project(d.c, schema, Path{})
	if _, err := Validate(schema, proj); err != nil {
		d.rollback(t)
		return nil, fmt.Errorf("%w: %s", ErrInternalInvariant, err)
	}

	d.undoStack = append(d.undoStack, historyEntry{invs: t.invs})
	d.redoStack = nil

	return EncodeUpdate(t.ops)
}

// rollback reverses a transaction's effects by replaying its captured
// inverse ops, used when a post-transaction invariant check fails.
func (d *Document) rollback(t *txn) {
	for i := len(t.invs) - 1; i >= 0; i-- {
		applyOp(d.c, t.invs[i])
	}
}

// ApplyUpdate merges a remote (or previously-encoded local) binary update
// into the document. Merging is idempotent and commutative: applying the
// same update twice, or two updates in either order, converges to the
// same state. Remote updates are never stamped into the undo stack.
func (d *Document) ApplyUpdate(binaryUpdate []byte) error {
	if len(binaryUpdate) == 0 {
		return nil
	}

	u, err := DecodeUpdate(binaryUpdate)
	if err != nil {
		return err
	}

	for _, op := range u {
		d.clk.observe(op.Ts)
		applyOp(d.c, op)
	}

	return nil
}

// Undo reverts the last locally-originated transaction (if any) and
// returns the binary update produced by doing so, so callers can persist
// and sync it like any other edit.
func (d *Document) Undo() ([]byte, error) {
	if len(d.undoStack) == 0 {
		return nil, ErrNothingToUndo
	}

	entry := d.undoStack[len(d.undoStack)-1]
	d.undoStack = d.undoStack[:len(d.undoStack)-1]

	t := &txn{clock: d.clk}
	for i := len(entry.invs) - 1; i >= 0; i-- {
		t.emit(d.c, entry.invs[i])
	}

	d.redoStack = append(d.redoStack, historyEntry{invs: t.invs})

	return EncodeUpdate(t.ops)
}

// Redo reapplies the last transaction undone by Undo (if any).
func (d *Document) Redo() ([]byte, error) {
	if len(d.redoStack) == 0 {
		return nil, ErrNothingToRedo
	}

	entry := d.redoStack[len(d.redoStack)-1]
	d.redoStack = d.redoStack[:len(d.redoStack)-1]

	t := &txn{clock: d.clk}
	for i := len(entry.invs) - 1; i >= 0; i-- {
		t.emit(d.c, entry.invs[i])
	}

	d.undoStack = append(d.undoStack, historyEntry{invs: t.invs})

	return EncodeUpdate(t.ops)
}

// Project returns the current JSON projection of the document under schema.
func (d *Document) Project(schema Schema) any {
	return project(d.c, schema, Path{})
}

// State returns a binary snapshot of the full document state, suitable for
// NewFromState. Unlike an Update, a snapshot is not a delta — it fully
// describes the document on its own.
func (d *Document) State() []byte {
	data, err := encodeSnapshot(d.c)
	if err != nil {
		// Snapshot encoding can only fail on a gob-incompatible value type
		// smuggled in through a Primitive register, which Validate would
		// already have rejected during Update.
		panic(fmt.Sprintf("crdtdoc: encoding snapshot: %v", err))
	}

	return data
}

// EncodedState returns State as a base64 string, for transport in
// contexts (JSON payloads, logs) that expect text.
func (d *Document) EncodedState() string {
	return base64.StdEncoding.EncodeToString(d.State())
}

// --- snapshot wire format ---

type snapshotMap struct {
	Kind    mapKind
	Entries map[string]*register
}

type snapshotSeq struct {
	IsText bool
	Elems  []*elem
}

type snapshotWire struct {
	Maps  map[string]snapshotMap
	Seqs  map[string]snapshotSeq
	MaxTs Timestamp
}

func encodeSnapshot(c *containers) ([]byte, error) {
	w := snapshotWire{
		Maps: make(map[string]snapshotMap, len(c.maps)),
		Seqs: make(map[string]snapshotSeq, len(c.seqs)),
	}

	var maxTs Timestamp

	for k, m := range c.maps {
		w.Maps[k] = snapshotMap{Kind: m.kind, Entries: m.entries}

		for _, r := range m.entries {
			if maxTs.Less(r.Ts) {
				maxTs = r.Ts
			}
		}
	}

	for k, s := range c.seqs {
		w.Seqs[k] = snapshotSeq{IsText: s.isText, Elems: s.seq.elems}

		for _, e := range s.seq.elems {
			if maxTs.Less(e.ID) {
				maxTs = e.ID
			}
		}
	}

	w.MaxTs = maxTs

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(w); err != nil {
		return nil, fmt.Errorf("crdtdoc: encoding snapshot: %w", err)
	}

	return buf.Bytes(), nil
}

func decodeSnapshot(data []byte) (*containers, Timestamp, error) {
	var w snapshotWire

	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return nil, Timestamp{}, fmt.Errorf("crdtdoc: decoding snapshot: %w", err)
	}

	c := newContainers()

	for k, m := range w.Maps {
		mc := newMapContainer(m.Kind)
		mc.entries = m.Entries
		c.maps[k] = mc
	}

	for k, s := range w.Seqs {
		sc := newSeqContainer(s.IsText)
		sc.seq.elems = s.Elems
		c.seqs[k] = sc
	}

	return c, w.MaxTs, nil
}
