package catalog

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/roach88/evpatch/internal/ir"
)

// Layout is the byte placement of an instruction's arguments.
//
// Each argument is aligned to its own width; the block is padded to a
// multiple of 4. Initializers carry any number of trailing S32 arguments
// after their documented ones.
type Layout struct {
	Types   []ArgType
	Offsets []int
	Size    int
}

func layoutOf(types []ArgType) Layout {
	l := Layout{Types: types, Offsets: make([]int, len(types))}
	off := 0
	for i, t := range types {
		w := t.Width()
		if off%w != 0 {
			off += w - off%w
		}
		l.Offsets[i] = off
		off += w
	}
	if off%4 != 0 {
		off += 4 - off%4
	}
	l.Size = off
	return l
}

// layoutFor computes the layout of doc's arguments when extra trailing
// initializer arguments are present.
func layoutFor(doc *InstrDoc, extra int) Layout {
	types := make([]ArgType, 0, len(doc.Args)+extra)
	for _, a := range doc.Args {
		types = append(types, a.Type)
	}
	for i := 0; i < extra; i++ {
		types = append(types, S32)
	}
	return layoutOf(types)
}

// LayoutForData returns the layout matching an argument block of dataLen
// bytes.
func LayoutForData(doc *InstrDoc, dataLen int) (Layout, error) {
	base := layoutFor(doc, 0)
	if dataLen == base.Size {
		return base, nil
	}
	if doc.Init != nil && dataLen > base.Size && (dataLen-base.Size)%4 == 0 {
		return layoutFor(doc, (dataLen-base.Size)/4), nil
	}
	return Layout{}, fmt.Errorf("%s: argument block is %d bytes, expected %d", doc.Name, dataLen, base.Size)
}

// Decoded is an instruction with its argument values unpacked.
type Decoded struct {
	Doc    *InstrDoc
	Layout Layout
	Values []int64 // F32 values hold their IEEE bit pattern
}

// Decode unpacks instr's arguments using its documentation.
func (c *Catalog) Decode(instr *ir.Instruction) (*Decoded, error) {
	doc, ok := c.Lookup(instr.Bank, instr.ID)
	if !ok {
		return nil, fmt.Errorf("undocumented instruction %s", instr.Key())
	}
	l, err := LayoutForData(doc, len(instr.ArgData))
	if err != nil {
		return nil, err
	}
	d := &Decoded{Doc: doc, Layout: l, Values: make([]int64, len(l.Types))}
	for i, t := range l.Types {
		d.Values[i] = readValue(instr.ArgData[l.Offsets[i]:], t)
	}
	return d, nil
}

// Put writes value v into argument i of data, touching only that
// argument's bytes.
func (d *Decoded) Put(data []byte, i int, v int64) error {
	if i < 0 || i >= len(d.Layout.Types) {
		return fmt.Errorf("%s: argument index %d out of range (%d arguments)", d.Doc.Name, i, len(d.Layout.Types))
	}
	t := d.Layout.Types[i]
	if err := checkRange(v, t); err != nil {
		return fmt.Errorf("%s: argument %d: %w", d.Doc.Name, i, err)
	}
	writeValue(data[d.Layout.Offsets[i]:], t, v)
	d.Values[i] = v
	return nil
}

// Float returns argument i as a float. Only meaningful for F32 arguments.
func (d *Decoded) Float(i int) float32 {
	return math.Float32frombits(uint32(d.Values[i]))
}

func readValue(b []byte, t ArgType) int64 {
	switch t {
	case U8:
		return int64(b[0])
	case S8:
		return int64(int8(b[0]))
	case U16:
		return int64(binary.LittleEndian.Uint16(b))
	case S16:
		return int64(int16(binary.LittleEndian.Uint16(b)))
	case S32:
		return int64(int32(binary.LittleEndian.Uint32(b)))
	default:
		return int64(binary.LittleEndian.Uint32(b))
	}
}

func writeValue(b []byte, t ArgType, v int64) {
	switch t.Width() {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	default:
		binary.LittleEndian.PutUint32(b, uint32(v))
	}
}

func checkRange(v int64, t ArgType) error {
	var lo, hi int64
	switch t {
	case U8:
		lo, hi = 0, math.MaxUint8
	case S8:
		lo, hi = math.MinInt8, math.MaxInt8
	case U16:
		lo, hi = 0, math.MaxUint16
	case S16:
		lo, hi = math.MinInt16, math.MaxInt16
	case S32:
		lo, hi = math.MinInt32, math.MaxInt32
	default:
		// Unsigned and float slots also accept negative 32-bit values;
		// authored configuration writes -1 for "all bits set".
		lo, hi = math.MinInt32, math.MaxUint32
	}
	if v < lo || v > hi {
		return fmt.Errorf("value %d out of range for %d-byte argument", v, t.Width())
	}
	return nil
}
