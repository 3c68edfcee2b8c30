package wirecodec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Printer renders raw wire bytes as an indented, human-readable tree - the
// tooling-facing counterpart to the core's zero-reflection encode/decode
// path, in the spirit of the teacher's printer.go/walker.go for glint
// documents. Every wire value is self-describing enough to walk without a
// declared Go type in hand: object fields and string/collection/map/
// object/enum elements all carry their own leading tag, and the only
// ever-tagless values - numeric primitive elements inside a homogeneous
// LIST/ARRAY/MAP/MAP key or value run - are covered by that container's
// own element/key/value type id (spec.md §6). A registry is optional and,
// when given, is used only to print object/enum/field names in place of
// bare stable ids.
type Printer struct {
	reg      *RegistrySnapshot
	maxDepth int
}

// NewPrinter builds a Printer with DefaultMaxDepth nesting protection. reg
// may be nil, in which case object and enum type names print as
// type#<stable id> and object fields as field<index> instead of names.
func NewPrinter(reg *TypeRegistry) *Printer {
	return NewPrinterDepth(reg, 0)
}

// NewPrinterDepth is NewPrinter with an explicit nesting bound (0 uses
// DefaultMaxDepth) - wireinspect's -config max_depth setting feeds this,
// since arbitrarily deep captured input is exactly the untrusted case
// depth-guarding exists for (spec.md §4.F).
func NewPrinterDepth(reg *TypeRegistry, maxDepth int) *Printer {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	p := &Printer{maxDepth: maxDepth}
	if reg != nil {
		p.reg = reg.Snapshot()
	}
	return p
}

// Sprint renders one top-level wire value as indented text.
func (p *Printer) Sprint(data []byte) (string, error) {
	c := NewCursor(data)
	w := &printWalker{c: &c, reg: p.reg, maxDepth: p.maxDepth}

	var sb strings.Builder
	if err := w.value(&sb, 0); err != nil {
		return "", newDecodeError(c.Position(), err)
	}
	if c.Remaining() > 0 {
		return "", newDecodeError(c.Position(), fmt.Errorf("%d trailing bytes: %w", c.Remaining(), ErrTypeMismatch))
	}
	return sb.String(), nil
}

// printWalker carries the string table a single Sprint call builds up as
// it walks STRING occurrences, mirroring deserialContext's string-interning
// side without needing the rest of a full deserialContext, plus its own
// nesting depth counter since it has no deserialContext to borrow one from.
type printWalker struct {
	c        *Cursor
	reg      *RegistrySnapshot
	strings  []string
	depth    int
	maxDepth int
}

func (w *printWalker) enter() error {
	w.depth++
	if w.depth > w.maxDepth {
		return ErrDepthLimitExceeded
	}
	return nil
}

func (w *printWalker) exit() {
	w.depth--
}

func (w *printWalker) internString(s string) {
	w.strings = append(w.strings, s)
}

func (w *printWalker) lookupString(id uint64) (string, error) {
	if id == 0 || int(id) > len(w.strings) {
		return "", fmt.Errorf("string ref %d: %w", id, ErrTypeMismatch)
	}
	return w.strings[id-1], nil
}

func writeIndent(sb *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		sb.WriteString("  ")
	}
}

// primitiveKindFromReservedID inverts primitiveStableID, used to interpret
// an element/key/value type id read off the wire back into the
// PrimitiveKind it names.
func primitiveKindFromReservedID(id uint64) (PrimitiveKind, bool) {
	switch id {
	case idBool:
		return PrimBool, true
	case idInt8:
		return PrimInt8, true
	case idInt16:
		return PrimInt16, true
	case idInt32:
		return PrimInt32, true
	case idInt64:
		return PrimInt64, true
	case idUint8:
		return PrimUint8, true
	case idUint16:
		return PrimUint16, true
	case idUint32:
		return PrimUint32, true
	case idUint64:
		return PrimUint64, true
	case idFloat32:
		return PrimFloat32, true
	case idFloat64:
		return PrimFloat64, true
	case idString:
		return PrimString, true
	default:
		return 0, false
	}
}

// value renders one fully self-tagged wire value at the cursor's current
// position.
func (w *printWalker) value(sb *strings.Builder, depth int) error {
	tag, err := w.c.readTag()
	if err != nil {
		return err
	}
	return w.valueBody(sb, depth, tag)
}

func (w *printWalker) valueBody(sb *strings.Builder, depth int, tag Tag) error {
	switch tag {
	case TagNull:
		sb.WriteString("null")
		return nil
	case TagTrue:
		sb.WriteString("true")
		return nil
	case TagFalse:
		sb.WriteString("false")
		return nil
	case TagByte:
		b, err := w.c.ReadByte()
		if err != nil {
			return err
		}
		sb.WriteString(strconv.Itoa(int(int8(b))))
		return nil
	case TagShort:
		v, err := readZigzagVarint(w.c)
		if err != nil {
			return err
		}
		sb.WriteString(strconv.FormatInt(v, 10))
		return nil
	case TagIntPos, TagLongPos:
		mag, err := readVarint(w.c)
		if err != nil {
			return err
		}
		sb.WriteString(strconv.FormatUint(mag, 10))
		return nil
	case TagIntNeg, TagLongNeg:
		mag, err := readVarint(w.c)
		if err != nil {
			return err
		}
		sb.WriteByte('-')
		sb.WriteString(strconv.FormatUint(mag, 10))
		return nil
	case TagFloat:
		bits, err := readVarint(w.c)
		if err != nil {
			return err
		}
		sb.WriteString(strconv.FormatFloat(float64(math.Float32frombits(uint32(bits))), 'g', -1, 32))
		return nil
	case TagDouble:
		bits, err := readVarint(w.c)
		if err != nil {
			return err
		}
		sb.WriteString(strconv.FormatFloat(math.Float64frombits(bits), 'g', -1, 64))
		return nil
	case TagString:
		s, err := w.readInlineString()
		if err != nil {
			return err
		}
		sb.WriteString(strconv.Quote(s))
		return nil
	case TagStringRef:
		id, err := readVarint(w.c)
		if err != nil {
			return err
		}
		s, err := w.lookupString(id)
		if err != nil {
			return err
		}
		sb.WriteString(strconv.Quote(s))
		return nil
	case TagRef:
		id, err := readVarint(w.c)
		if err != nil {
			return err
		}
		fmt.Fprintf(sb, "ref(%d)", id)
		return nil
	case TagArray, TagList:
		return w.collection(sb, depth, tag)
	case TagMap:
		return w.mapValue(sb, depth)
	case TagObject:
		return w.object(sb, depth)
	case TagEnum:
		return w.enum(sb, depth)
	default:
		return fmt.Errorf("%s: %w", tag, ErrTypeMismatch)
	}
}

func (w *printWalker) readInlineString() (string, error) {
	n, err := readVarint(w.c)
	if err != nil {
		return "", err
	}
	raw, err := w.c.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	s := string(raw)
	w.internString(s)
	return s, nil
}

func (w *printWalker) collection(sb *strings.Builder, depth int, tag Tag) error {
	if err := w.enter(); err != nil {
		return err
	}
	defer w.exit()

	elemID, err := readVarint(w.c)
	if err != nil {
		return err
	}
	n, err := readVarint(w.c)
	if err != nil {
		return err
	}

	kind := "array"
	if tag == TagList {
		kind = "list"
	}
	fmt.Fprintf(sb, "%s<%s>[%d] {\n", kind, w.elemTypeName(elemID), n)
	for i := uint64(0); i < n; i++ {
		writeIndent(sb, depth+1)
		if err := w.element(sb, depth+1, elemID); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		sb.WriteString("\n")
	}
	writeIndent(sb, depth)
	sb.WriteString("}")
	return nil
}

func (w *printWalker) mapValue(sb *strings.Builder, depth int) error {
	if err := w.enter(); err != nil {
		return err
	}
	defer w.exit()

	keyID, err := readVarint(w.c)
	if err != nil {
		return err
	}
	valID, err := readVarint(w.c)
	if err != nil {
		return err
	}
	n, err := readVarint(w.c)
	if err != nil {
		return err
	}

	fmt.Fprintf(sb, "map<%s,%s>[%d] {\n", w.elemTypeName(keyID), w.elemTypeName(valID), n)
	for i := uint64(0); i < n; i++ {
		writeIndent(sb, depth+1)
		if err := w.element(sb, depth+1, keyID); err != nil {
			return fmt.Errorf("key %d: %w", i, err)
		}
		sb.WriteString(": ")
		if err := w.element(sb, depth+1, valID); err != nil {
			return fmt.Errorf("value %d: %w", i, err)
		}
		sb.WriteString("\n")
	}
	writeIndent(sb, depth)
	sb.WriteString("}")
	return nil
}

// element renders one collection/map slot. A reserved non-string primitive
// type id names a tagless payload-only value (no leading tag byte to read);
// string elements, id 0 (dynamic) and every non-reserved id (object, enum,
// nested collection/map) are always fully self-tagged, so they fall
// through to value().
func (w *printWalker) element(sb *strings.Builder, depth int, typeID uint64) error {
	if prim, ok := primitiveKindFromReservedID(typeID); ok && prim != PrimString {
		return w.payloadOnly(sb, prim)
	}
	return w.value(sb, depth)
}

func (w *printWalker) payloadOnly(sb *strings.Builder, prim PrimitiveKind) error {
	switch prim {
	case PrimBool:
		b, err := w.c.ReadByte()
		if err != nil {
			return err
		}
		sb.WriteString(strconv.FormatBool(b != 0))
	case PrimInt8:
		v, err := readZigzagVarint(w.c)
		if err != nil {
			return err
		}
		sb.WriteString(strconv.FormatInt(v, 10))
	case PrimUint8:
		b, err := w.c.ReadByte()
		if err != nil {
			return err
		}
		sb.WriteString(strconv.Itoa(int(b)))
	case PrimInt16:
		v, err := readZigzagVarint(w.c)
		if err != nil {
			return err
		}
		sb.WriteString(strconv.FormatInt(v, 10))
	case PrimUint16, PrimUint32, PrimUint64:
		v, err := readVarint(w.c)
		if err != nil {
			return err
		}
		sb.WriteString(strconv.FormatUint(v, 10))
	case PrimInt32, PrimInt64:
		v, err := readZigzagVarint(w.c)
		if err != nil {
			return err
		}
		sb.WriteString(strconv.FormatInt(v, 10))
	case PrimFloat32:
		bits, err := readVarint(w.c)
		if err != nil {
			return err
		}
		sb.WriteString(strconv.FormatFloat(float64(math.Float32frombits(uint32(bits))), 'g', -1, 32))
	case PrimFloat64:
		bits, err := readVarint(w.c)
		if err != nil {
			return err
		}
		sb.WriteString(strconv.FormatFloat(math.Float64frombits(bits), 'g', -1, 64))
	case PrimString:
		s, err := w.readInlineString()
		if err != nil {
			return err
		}
		sb.WriteString(strconv.Quote(s))
	default:
		return fmt.Errorf("element primitive kind %v: %w", prim, ErrTypeMismatch)
	}
	return nil
}

func (w *printWalker) elemTypeName(id uint64) string {
	if id == 0 {
		return "any"
	}
	if prim, ok := primitiveKindFromReservedID(id); ok {
		return prim.String()
	}
	return w.typeNameForID(id)
}

func (w *printWalker) typeNameForID(id uint64) string {
	if w.reg != nil {
		if d, err := w.reg.ResolveByID(id); err == nil {
			return d.Name
		}
	}
	return fmt.Sprintf("type#%d", id)
}

func (w *printWalker) object(sb *strings.Builder, depth int) error {
	if err := w.enter(); err != nil {
		return err
	}
	defer w.exit()

	stableID, err := readVarint(w.c)
	if err != nil {
		return err
	}
	n, err := readVarint(w.c)
	if err != nil {
		return err
	}

	var desc *TypeDescriptor
	if w.reg != nil {
		desc, _ = w.reg.ResolveByID(stableID)
	}

	fmt.Fprintf(sb, "%s {\n", w.typeNameForID(stableID))
	for i := uint64(0); i < n; i++ {
		writeIndent(sb, depth+1)
		name := fmt.Sprintf("field%d", i)
		if desc != nil && int(i) < len(desc.Fields) {
			name = desc.Fields[i].Name
		}
		fmt.Fprintf(sb, "%s: ", name)
		if err := w.value(sb, depth+1); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		sb.WriteString("\n")
	}
	writeIndent(sb, depth)
	sb.WriteString("}")
	return nil
}

func (w *printWalker) enum(sb *strings.Builder, depth int) error {
	stableID, err := readVarint(w.c)
	if err != nil {
		return err
	}
	ord, err := readVarint(w.c)
	if err != nil {
		return err
	}

	name := w.typeNameForID(stableID)
	if w.reg != nil {
		if d, err := w.reg.ResolveByID(stableID); err == nil && int(ord) < len(d.EnumNames) {
			fmt.Fprintf(sb, "%s.%s", name, d.EnumNames[ord])
			return nil
		}
	}
	fmt.Fprintf(sb, "%s(%d)", name, ord)
	return nil
}
