package crdtdoc

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// OpKind discriminates the mutation an Op performs.
type OpKind string

// Op kinds produced by the diff algorithm (§4.1) and replayed by applyOp.
const (
	OpFieldSet     OpKind = "field_set"     // Object field / Record entry LWW write
	OpRecordDelete OpKind = "record_delete" // Record entry tombstone
	OpSeqInsert    OpKind = "seq_insert"    // Array/Text element insert
	OpSeqDelete    OpKind = "seq_delete"    // Array/Text element tombstone
	OpSeqUndelete  OpKind = "seq_undelete"  // Array/Text element tombstone reversal (undo)
)

// ContainerKind self-describes the kind of container an Op targets, so
// that an Update can be applied by a replica with no access to the
// producer's Schema value (§4.1: applyUpdate must be usable on its own).
type ContainerKind int

const (
	ContainerObject ContainerKind = iota
	ContainerRecord
	ContainerArray
	ContainerTextSeq
)

// Op is one CRDT operation: a single, self-contained, commutative and
// idempotent mutation against one container addressed by Path.
type Op struct {
	Kind          OpKind
	Path          Path
	ContainerKind ContainerKind

	Key   string    // OpFieldSet / OpRecordDelete: the map key
	After ElemID    // OpSeqInsert: anchor to insert after (zero = head)
	Elem  ElemID    // OpSeqInsert: new element id; OpSeqDelete/Undelete: target id
	Ts    Timestamp // operation timestamp (LWW tie-break / tombstone ordering)
	Value any       // OpFieldSet / OpSeqInsert(primitive item or text rune): payload
}

// Update is a batch of Ops produced by one transaction (local edit or one
// remote delta), the unit exchanged over the wire.
type Update []Op

func init() {
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register("")
	gob.Register(float64(0))
	gob.Register(true)
	gob.Register(rune(0))
}

// EncodeUpdate serializes an Update to its binary wire format.
func EncodeUpdate(u Update) ([]byte, error) {
	var buf bytes.Buffer

	if err := gob.NewEncoder(&buf).Encode(u); err != nil {
		return nil, fmt.Errorf("crdtdoc: encoding update: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeUpdate deserializes a binary update produced by EncodeUpdate.
func DecodeUpdate(data []byte) (Update, error) {
	var u Update

	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&u); err != nil {
		return nil, fmt.Errorf("crdtdoc: decoding update: %w", err)
	}

	return u, nil
}
