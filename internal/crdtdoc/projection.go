package crdtdoc

// project renders the current CRDT state at path, under schema, as a plain
// Go value (map[string]any / []any / string / primitive) — the "JSON
// projection" referenced throughout §4.1.
func project(c *containers, schema Schema, path Path) any {
	switch schema.Kind {
	case KindOptional:
		return project(c, *schema.Inner, path)

	case KindUnion:
		// Without a live value there is nothing to disambiguate a union
		// by; fall back to the first option's shape.
		if len(schema.Options) == 0 {
			return nil
		}

		return project(c, schema.Options[0], path)

	case KindObject:
		return projectObject(c, schema, path)

	case KindRecord:
		return projectRecord(c, schema, path)

	case KindArray:
		return projectArray(c, schema, path)

	case KindText:
		return projectText(c, path)

	default:
		return nil
	}
}

func projectObject(c *containers, schema Schema, path Path) map[string]any {
	out := make(map[string]any, len(schema.Fields))

	mc, hasMap := c.maps[path.key()]

	for key, fieldSchema := range schema.Fields {
		switch fieldSchema.Kind {
		case KindObject, KindRecord, KindArray, KindText:
			childPath := path.Append(PathSeg{Field: key})
			out[key] = project(c, fieldSchema, childPath)
		default:
			if !hasMap {
				continue
			}

			reg, ok := mc.entries[key]
			if !ok || reg.Deleted {
				continue
			}

			out[key] = reg.Value
		}
	}

	return out
}

func projectRecord(c *containers, schema Schema, path Path) map[string]any {
	out := make(map[string]any)

	mc, ok := c.maps[path.key()]
	if !ok {
		return out
	}

	elemSchema := *schema.Elem

	for _, key := range mc.keys() {
		switch elemSchema.Kind {
		case KindObject, KindRecord, KindArray, KindText:
			childPath := path.Append(PathSeg{Field: key})
			out[key] = project(c, elemSchema, childPath)
		default:
			out[key] = mc.entries[key].Value
		}
	}

	return out
}

func projectArray(c *containers, schema Schema, path Path) []any {
	sc, ok := c.seqs[path.key()]
	if !ok {
		return []any{}
	}

	live := sc.seq.live()
	out := make([]any, 0, len(live))
	itemSchema := *schema.Elem

	for _, e := range live {
		switch itemSchema.Kind {
		case KindObject, KindRecord, KindArray, KindText:
			childPath := path.Append(PathSeg{IsElem: true, Elem: e.ID})
			out = append(out, project(c, itemSchema, childPath))
		default:
			out = append(out, e.Value)
		}
	}

	return out
}

func projectText(c *containers, path Path) string {
	sc, ok := c.seqs[path.key()]
	if !ok {
		return ""
	}

	live := sc.seq.live()
	runes := make([]rune, len(live))

	for i, e := range live {
		runes[i] = e.Value.(rune)
	}

	return string(runes)
}
