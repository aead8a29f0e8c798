package crdtdoc

import (
	"fmt"
)

// txn accumulates Ops produced while diffing one Update call (or one
// Undo/Redo replay) and applies each Op to the live container registry as
// it is produced, so that Validate-on-commit sees the post-image.
type txn struct {
	clock *clock
	ops   Update
	invs  Update
}

func (t *txn) emit(c *containers, op Op) {
	ts := t.clock.tick()
	op.Ts = ts

	if op.Kind == OpSeqInsert && op.Elem.Zero() {
		op.Elem = ts
	}

	inv := computeInverse(c, op)

	applyOp(c, op)
	t.ops = append(t.ops, op)
	t.invs = append(t.invs, inv)
}

// computeInverse derives the op that, applied later with a fresh
// timestamp, reverses op's effect — read before op is applied.
func computeInverse(c *containers, op Op) Op {
	switch op.Kind {
	case OpFieldSet:
		mc := c.maps[op.Path.key()]
		if mc != nil {
			if cur, ok := mc.entries[op.Key]; ok && !cur.Deleted {
				return Op{Kind: OpFieldSet, Path: op.Path, ContainerKind: op.ContainerKind, Key: op.Key, Value: cur.Value}
			}
		}

		if op.ContainerKind == ContainerRecord {
			return Op{Kind: OpRecordDelete, Path: op.Path, ContainerKind: op.ContainerKind, Key: op.Key}
		}

		return Op{Kind: OpFieldSet, Path: op.Path, ContainerKind: op.ContainerKind, Key: op.Key, Value: nil}

	case OpRecordDelete:
		mc := c.maps[op.Path.key()]
		if mc != nil {
			if cur, ok := mc.entries[op.Key]; ok && !cur.Deleted {
				return Op{Kind: OpFieldSet, Path: op.Path, ContainerKind: ContainerRecord, Key: op.Key, Value: cur.Value}
			}
		}

		return Op{Kind: OpRecordDelete, Path: op.Path, ContainerKind: op.ContainerKind, Key: op.Key}

	case OpSeqInsert:
		return Op{Kind: OpSeqDelete, Path: op.Path, ContainerKind: op.ContainerKind, Elem: op.Elem}

	case OpSeqDelete:
		return Op{Kind: OpSeqUndelete, Path: op.Path, ContainerKind: op.ContainerKind, Elem: op.Elem}

	case OpSeqUndelete:
		return Op{Kind: OpSeqDelete, Path: op.Path, ContainerKind: op.ContainerKind, Elem: op.Elem}

	default:
		return Op{}
	}
}

// diffValue walks schema and target together against the current state in
// c, emitting the minimal set of Ops that make the projection of c equal
// to target. Mirrors §4.1's diff algorithm exactly: Object/Record recurse
// per field and delete absent keys; Array replaces/extends/truncates by
// index; Text computes a character diff; Primitive sets on inequality.
func diffValue(t *txn, c *containers, schema Schema, path Path, target any) error {
	resolved, err := Validate(schema, target)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	switch resolved.Kind {
	case KindOptional:
		return diffValue(t, c, *resolved.Inner, path, target)

	case KindUnion:
		return diffValue(t, c, resolved, path, target)

	case KindObject:
		return diffObject(t, c, resolved, path, target)

	case KindRecord:
		return diffRecord(t, c, resolved, path, target)

	case KindArray:
		return diffArray(t, c, resolved, path, target)

	case KindText:
		return diffText(t, c, path, target.(string))

	case KindPrimitive:
		// Unreachable in practice: diffObject/diffRecord/diffArray handle
		// primitive leaves directly via diffPrimitiveField without
		// recursing through diffValue.
		return fmt.Errorf("crdtdoc: primitive schema reached diffValue directly at %v", path)

	default:
		return fmt.Errorf("crdtdoc: unsupported schema kind %v", resolved.Kind)
	}
}

func diffObject(t *txn, c *containers, schema Schema, path Path, target any) error {
	m, _ := target.(map[string]any)

	for key, fieldSchema := range schema.Fields {
		fv, present := m[key]
		childPath := path.Append(PathSeg{Field: key})

		switch fieldSchema.Kind {
		case KindObject, KindRecord, KindArray, KindText:
			if !present {
				fv = zeroValueFor(fieldSchema)
			}

			if err := diffValue(t, c, fieldSchema, childPath, fv); err != nil {
				return err
			}
		default:
			// Primitive/Optional/Union leaves live directly as a register
			// on this Object's own container, keyed by field name.
			if err := diffPrimitiveField(t, c, path, ContainerObject, key, fieldSchema, fv); err != nil {
				return err
			}
		}
	}

	return nil
}

func diffRecord(t *txn, c *containers, schema Schema, path Path, target any) error {
	m, _ := target.(map[string]any)
	mc := c.ensureMap(path, mapRecord)

	// Delete keys absent from the new input.
	for _, key := range mc.keys() {
		if _, present := m[key]; !present {
			t.emit(c, Op{Kind: OpRecordDelete, Path: path, ContainerKind: ContainerRecord, Key: key})
		}
	}

	for key, v := range m {
		elemSchema := *schema.Elem

		switch elemSchema.Kind {
		case KindObject, KindRecord, KindArray, KindText:
			childPath := path.Append(PathSeg{Field: key})
			if err := diffValue(t, c, elemSchema, childPath, v); err != nil {
				return err
			}
		default:
			if err := diffPrimitiveField(t, c, path, ContainerRecord, key, elemSchema, v); err != nil {
				return err
			}
		}
	}

	return nil
}

// diffPrimitiveField sets a map-backed register (Object field or Record
// entry) if the new value differs from the current one.
func diffPrimitiveField(t *txn, c *containers, path Path, ck ContainerKind, key string, schema Schema, target any) error {
	if _, err := Validate(schema, target); err != nil {
		return fmt.Errorf("%w: field %q: %s", ErrInvalidInput, key, err)
	}

	kind := mapObject
	if ck == ContainerRecord {
		kind = mapRecord
	}

	mc := c.ensureMap(path, kind)

	cur, ok := mc.entries[key]
	if ok && !cur.Deleted && deepEqual(cur.Value, target) {
		return nil
	}

	t.emit(c, Op{Kind: OpFieldSet, Path: path, ContainerKind: ck, Key: key, Value: target})

	return nil
}

func diffArray(t *txn, c *containers, schema Schema, path Path, target any) error {
	arr, _ := target.([]any)
	live := c.ensureSeq(path, false).seq.live()
	itemSchema := *schema.Elem

	overlap := len(arr)
	if len(live) < overlap {
		overlap = len(live)
	}

	// Replace changed items in the overlapping prefix (index i ↔ live[i]
	// for the lifetime of this diff call; replaced primitive slots get a
	// fresh element id, nested container slots keep their existing id and
	// recurse into it).
	for i := 0; i < overlap; i++ {
		e := live[i]

		switch itemSchema.Kind {
		case KindObject, KindRecord, KindArray, KindText:
			childPath := path.Append(PathSeg{IsElem: true, Elem: e.ID})
			if err := diffValue(t, c, itemSchema, childPath, arr[i]); err != nil {
				return err
			}
		default:
			if _, err := Validate(itemSchema, arr[i]); err != nil {
				return fmt.Errorf("%w: array[%d]: %s", ErrInvalidInput, i, err)
			}

			if !deepEqual(e.Value, arr[i]) {
				after := Timestamp{}
				if i > 0 {
					after = live[i-1].ID
				}

				t.emit(c, Op{Kind: OpSeqDelete, Path: path, ContainerKind: ContainerArray, Elem: e.ID})
				t.emit(c, Op{Kind: OpSeqInsert, Path: path, ContainerKind: ContainerArray, After: after, Value: arr[i]})

				live = c.ensureSeq(path, false).seq.live()
			}
		}
	}

	// Extend: append items beyond the overlap.
	after := Timestamp{}
	if overlap > 0 {
		after = live[overlap-1].ID
	}

	for i := overlap; i < len(arr); i++ {
		var op Op

		switch itemSchema.Kind {
		case KindObject, KindRecord, KindArray, KindText:
			op = Op{Kind: OpSeqInsert, Path: path, ContainerKind: ContainerArray, After: after}
			t.emit(c, op)
			newID := t.ops[len(t.ops)-1].Elem

			childPath := path.Append(PathSeg{IsElem: true, Elem: newID})
			if err := diffValue(t, c, itemSchema, childPath, arr[i]); err != nil {
				return err
			}

			after = newID
		default:
			if _, err := Validate(itemSchema, arr[i]); err != nil {
				return fmt.Errorf("%w: array[%d]: %s", ErrInvalidInput, i, err)
			}

			op = Op{Kind: OpSeqInsert, Path: path, ContainerKind: ContainerArray, After: after, Value: arr[i]}
			t.emit(c, op)
			after = t.ops[len(t.ops)-1].Elem
		}
	}

	// Truncate: delete items beyond len(arr).
	live = c.ensureSeq(path, false).seq.live()
	for i := len(arr); i < len(live); i++ {
		t.emit(c, Op{Kind: OpSeqDelete, Path: path, ContainerKind: ContainerArray, Elem: live[i].ID})
	}

	return nil
}

// diffText computes a minimal character-level diff between the current
// text and target, emitting insert/delete ops (§4.1 "Rich-text diff",
// S3). Uses a straightforward common-prefix/common-suffix reduction, which
// for the vast majority of interactive edits (the only case that matters
// for a single-user diff call) already yields the exact minimal edit.
func diffText(t *txn, c *containers, path Path, target string) error {
	sc := c.ensureSeq(path, true)
	live := sc.seq.live()

	cur := make([]rune, len(live))
	for i, e := range live {
		cur[i] = e.Value.(rune)
	}

	want := []rune(target)

	prefix := 0
	for prefix < len(cur) && prefix < len(want) && cur[prefix] == want[prefix] {
		prefix++
	}

	suffix := 0
	for suffix < len(cur)-prefix && suffix < len(want)-prefix &&
		cur[len(cur)-1-suffix] == want[len(want)-1-suffix] {
		suffix++
	}

	// Delete the changed middle region of cur.
	for i := len(cur) - suffix - 1; i >= prefix; i-- {
		t.emit(c, Op{Kind: OpSeqDelete, Path: path, ContainerKind: ContainerTextSeq, Elem: live[i].ID})
	}

	// Insert the changed middle region of want, anchored after `prefix`.
	after := Timestamp{}
	if prefix > 0 {
		after = live[prefix-1].ID
	}

	for i := prefix; i < len(want)-suffix; i++ {
		t.emit(c, Op{Kind: OpSeqInsert, Path: path, ContainerKind: ContainerTextSeq, After: after, Value: want[i]})
		after = t.ops[len(t.ops)-1].Elem
	}

	return nil
}

// zeroValueFor returns the empty-but-valid value for a container schema,
// used when an input object omits a field entirely rather than supplying
// an explicit empty record/array/text/object.
func zeroValueFor(schema Schema) any {
	switch schema.Kind {
	case KindObject, KindRecord:
		return map[string]any{}
	case KindArray:
		return []any{}
	case KindText:
		return ""
	default:
		return nil
	}
}

func deepEqual(a, b any) bool {
	return fmt.Sprintf("%#v", a) == fmt.Sprintf("%#v", b)
}
