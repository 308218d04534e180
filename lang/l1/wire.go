package l1

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/emberlang/ember/lang/types"
)

// The persisted compiled-code record (spec §6 "L1 wire format"):
//
//	nybble count          varint
//	nybble stream         ceil(count/2) bytes, two nybbles per byte,
//	                      high nybble first
//	max stack depth       u16
//	function type ref     varint
//	primitive ordinal     u16, 0 = none
//	literals vector       count + refs
//	localTypes vector     count + refs
//	constantTypes vector  count + refs
//	outerTypes vector     count + refs
//	module ref            varint
//	startingLine          u32
//	lineDelta tuple       count + encoded deltas
//
// followed by the tree extension the "Persisted layout" paragraph implies
// (each record is a *tree* of compiled code): the code name and the nested
// codes, each a full record in this same format.
//
// Types, values, and module handles are persisted *by reference*: the
// repository's storage layout for those is out of scope here (spec §1), so
// the record carries opaque ref ordinals resolved through a caller-supplied
// RefWriter/RefReader pair. Ref 0 is reserved for "none" (nil type, nil
// module); a RefWriter must hand out refs starting at 1.

// RefWriter assigns stable ref ordinals to the out-of-line objects a record
// points at. It is supplied by whatever owns the surrounding persistence
// layer (the indexed repository); internal/repository carries a minimal one.
type RefWriter interface {
	ValueRef(v types.Value) (uint32, error)
	TypeRef(t *types.Type) (uint32, error)
	ModuleRef(m ModuleRef) (uint32, error)
}

// RefReader resolves the ref ordinals a RefWriter assigned, plus primitive
// ordinals (which are not refs but live in the runtime's primitive table).
type RefReader interface {
	ValueAt(ref uint32) (types.Value, error)
	TypeAt(ref uint32) (*types.Type, error)
	ModuleAt(ref uint32) (ModuleRef, error)
	PrimitiveAt(ordinal uint16) (*Primitive, error)
}

// WriteCode serializes code (and its nested-code tree) to w in the persisted
// record format.
func WriteCode(w io.Writer, code *CompiledCode, refs RefWriter) error {
	e := &wireEncoder{w: w, refs: refs}
	e.code(code)
	return e.err
}

// ReadCode deserializes one compiled-code record tree from r.
func ReadCode(r io.Reader, refs RefReader) (*CompiledCode, error) {
	d := &wireDecoder{r: r, refs: refs}
	code := d.code()
	if d.err != nil {
		return nil, d.err
	}
	return code, nil
}

type wireEncoder struct {
	w    io.Writer
	refs RefWriter
	err  error
	buf  [binary.MaxVarintLen64]byte
}

func (e *wireEncoder) uvarint(v uint64) {
	if e.err != nil {
		return
	}
	n := binary.PutUvarint(e.buf[:], v)
	_, e.err = e.w.Write(e.buf[:n])
}

func (e *wireEncoder) u16(v uint16) {
	if e.err != nil {
		return
	}
	binary.BigEndian.PutUint16(e.buf[:2], v)
	_, e.err = e.w.Write(e.buf[:2])
}

func (e *wireEncoder) u32(v uint32) {
	if e.err != nil {
		return
	}
	binary.BigEndian.PutUint32(e.buf[:4], v)
	_, e.err = e.w.Write(e.buf[:4])
}

func (e *wireEncoder) bytes(b []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(b)
}

func (e *wireEncoder) typeRef(t *types.Type) {
	if e.err != nil {
		return
	}
	if t == nil {
		e.uvarint(0)
		return
	}
	ref, err := e.refs.TypeRef(t)
	if err == nil && ref == 0 {
		err = fmt.Errorf("l1: RefWriter returned reserved type ref 0")
	}
	if err != nil {
		e.err = err
		return
	}
	e.uvarint(uint64(ref))
}

func (e *wireEncoder) typeVector(ts []*types.Type) {
	e.uvarint(uint64(len(ts)))
	for _, t := range ts {
		e.typeRef(t)
	}
}

func (e *wireEncoder) code(c *CompiledCode) {
	if e.err != nil {
		return
	}
	if c.MaxStackDepth > math.MaxUint16 {
		e.err = fmt.Errorf("l1: %s: max stack depth %d exceeds u16", c.CodeName(), c.MaxStackDepth)
		return
	}

	e.uvarint(uint64(c.NybbleCount))
	e.bytes(c.Nybbles[:(c.NybbleCount+1)/2])
	e.u16(uint16(c.MaxStackDepth))
	e.typeRef(c.funcType)
	if c.Primitive != nil {
		e.u16(c.Primitive.Ordinal)
	} else {
		e.u16(0)
	}

	e.uvarint(uint64(len(c.Literals)))
	for _, lit := range c.Literals {
		if e.err != nil {
			return
		}
		ref, err := e.refs.ValueRef(lit)
		if err != nil {
			e.err = err
			return
		}
		e.uvarint(uint64(ref))
	}

	e.typeVector(c.LocalTypes)
	e.typeVector(c.ConstantTypes)
	e.typeVector(c.OuterTypes)

	if c.Module == nil {
		e.uvarint(0)
	} else if e.err == nil {
		ref, err := e.refs.ModuleRef(c.Module)
		if err == nil && ref == 0 {
			err = fmt.Errorf("l1: RefWriter returned reserved module ref 0")
		}
		if err != nil {
			e.err = err
			return
		}
		e.uvarint(uint64(ref))
	}

	e.u32(uint32(c.StartingLine))
	e.uvarint(uint64(len(c.LineDeltas)))
	for _, d := range c.LineDeltas {
		e.uvarint(uint64(d))
	}

	e.uvarint(uint64(len(c.name)))
	e.bytes([]byte(c.name))
	e.uvarint(uint64(len(c.NestedCodes)))
	for _, nested := range c.NestedCodes {
		e.code(nested)
	}
}

type wireDecoder struct {
	r    io.Reader
	refs RefReader
	err  error
	buf  [4]byte
}

func (d *wireDecoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, err := binary.ReadUvarint(byteReaderOf{d.r, &d.buf})
	if err != nil {
		d.err = fmt.Errorf("l1: reading varint: %w", err)
		return 0
	}
	return v
}

func (d *wireDecoder) u16() uint16 {
	if d.err != nil {
		return 0
	}
	if _, err := io.ReadFull(d.r, d.buf[:2]); err != nil {
		d.err = fmt.Errorf("l1: reading u16: %w", err)
		return 0
	}
	return binary.BigEndian.Uint16(d.buf[:2])
}

func (d *wireDecoder) u32() uint32 {
	if d.err != nil {
		return 0
	}
	if _, err := io.ReadFull(d.r, d.buf[:4]); err != nil {
		d.err = fmt.Errorf("l1: reading u32: %w", err)
		return 0
	}
	return binary.BigEndian.Uint32(d.buf[:4])
}

func (d *wireDecoder) bytes(n int) []byte {
	if d.err != nil {
		return nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(d.r, b); err != nil {
		d.err = fmt.Errorf("l1: reading %d bytes: %w", n, err)
		return nil
	}
	return b
}

func (d *wireDecoder) typeRef() *types.Type {
	ref := d.uvarint()
	if d.err != nil || ref == 0 {
		return nil
	}
	t, err := d.refs.TypeAt(uint32(ref))
	if err != nil {
		d.err = err
		return nil
	}
	return t
}

func (d *wireDecoder) typeVector() []*types.Type {
	n := int(d.uvarint())
	if d.err != nil || n == 0 {
		return nil
	}
	ts := make([]*types.Type, n)
	for i := range ts {
		ts[i] = d.typeRef()
	}
	return ts
}

func (d *wireDecoder) code() *CompiledCode {
	nybbleCount := int(d.uvarint())
	nybbles := d.bytes((nybbleCount + 1) / 2)
	maxStack := int(d.u16())
	funcType := d.typeRef()
	primOrdinal := d.u16()

	litCount := int(d.uvarint())
	var literals []types.Value
	if d.err == nil && litCount > 0 {
		literals = make([]types.Value, litCount)
		for i := range literals {
			ref := d.uvarint()
			if d.err != nil {
				return nil
			}
			v, err := d.refs.ValueAt(uint32(ref))
			if err != nil {
				d.err = err
				return nil
			}
			literals[i] = v
		}
	}

	localTypes := d.typeVector()
	constantTypes := d.typeVector()
	outerTypes := d.typeVector()

	var mod ModuleRef
	if ref := d.uvarint(); d.err == nil && ref != 0 {
		m, err := d.refs.ModuleAt(uint32(ref))
		if err != nil {
			d.err = err
			return nil
		}
		mod = m
	}

	startingLine := int(d.u32())
	deltaCount := int(d.uvarint())
	var deltas []lineDelta
	if d.err == nil && deltaCount > 0 {
		deltas = make([]lineDelta, deltaCount)
		for i := range deltas {
			deltas[i] = lineDelta(d.uvarint())
		}
	}

	name := string(d.bytes(int(d.uvarint())))
	nestedCount := int(d.uvarint())
	var nested []*CompiledCode
	if d.err == nil && nestedCount > 0 {
		nested = make([]*CompiledCode, nestedCount)
		for i := range nested {
			nested[i] = d.code()
		}
	}
	if d.err != nil {
		return nil
	}

	code := NewCompiledCode(name, nybbles, nybbleCount, maxStack, funcType)
	code.Literals = literals
	code.LocalTypes = localTypes
	code.ConstantTypes = constantTypes
	code.OuterTypes = outerTypes
	code.Module = mod
	code.StartingLine = startingLine
	code.LineDeltas = deltas
	code.NestedCodes = nested
	if primOrdinal != 0 {
		prim, err := d.refs.PrimitiveAt(primOrdinal)
		if err != nil {
			d.err = err
			return nil
		}
		code.Primitive = prim
	}
	return code
}

// byteReaderOf adapts an io.Reader to the io.ByteReader binary.ReadUvarint
// wants, reusing the decoder's scratch buffer.
type byteReaderOf struct {
	r   io.Reader
	buf *[4]byte
}

func (b byteReaderOf) ReadByte() (byte, error) {
	if _, err := io.ReadFull(b.r, b.buf[:1]); err != nil {
		return 0, err
	}
	return b.buf[0], nil
}
