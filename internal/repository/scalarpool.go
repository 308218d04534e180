package repository

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/emberlang/ember/lang/l1"
	"github.com/emberlang/ember/lang/types"
)

// scalarPool is the repository's RefWriter/RefReader: it interns the
// out-of-line objects a compiled-code record points at into three per-entry
// tables (values, types, module names) serialized next to the record blob.
//
// It persists scalar literals (nil, booleans, ints, floats, strings, byte
// tuples), the top/bottom/primitive slice of the type lattice, and module
// handles by canonical name. Composite literals (any tuple other than a
// byte tuple, functions, continuations) are the full persistence layer's concern, which
// spec §1 scopes out; storing one reports the error instead of guessing at
// a layout.
type scalarPool struct {
	values    [][]byte
	valueObjs []types.Value
	valueIdx  map[string]uint32

	typs     [][]byte
	typeObjs []*types.Type
	typeIdx  map[string]uint32

	modules   []string
	moduleIdx map[string]uint32
}

var _ l1.RefWriter = (*scalarPool)(nil)
var _ l1.RefReader = (*scalarPool)(nil)

func newScalarPool() *scalarPool {
	return &scalarPool{
		valueIdx:  make(map[string]uint32),
		typeIdx:   make(map[string]uint32),
		moduleIdx: make(map[string]uint32),
	}
}

const (
	valNil byte = iota
	valFalse
	valTrue
	valInt
	valFloat
	valString
	valByteTuple
)

const (
	typTop byte = iota
	typBottom
	typPrimitive
)

func encodeValue(v types.Value) ([]byte, error) {
	switch v := v.(type) {
	case types.Nil:
		return []byte{valNil}, nil
	case types.Bool:
		if v {
			return []byte{valTrue}, nil
		}
		return []byte{valFalse}, nil
	case types.Int:
		buf := make([]byte, 1, 1+binary.MaxVarintLen64)
		buf[0] = valInt
		return binary.AppendVarint(buf, int64(v)), nil
	case types.Float:
		buf := make([]byte, 9)
		buf[0] = valFloat
		binary.BigEndian.PutUint64(buf[1:], math.Float64bits(float64(v)))
		return buf, nil
	case types.String:
		buf := append([]byte{valString}, []byte(v)...)
		return buf, nil
	case types.ByteTuple:
		buf := append([]byte{valByteTuple}, v...)
		return buf, nil
	default:
		return nil, fmt.Errorf("repository: literal of kind %s is not persistable", v.VKind())
	}
}

func decodeValue(b []byte) (types.Value, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("repository: empty value encoding")
	}
	switch b[0] {
	case valNil:
		return types.NilValue, nil
	case valFalse:
		return types.Bool(false), nil
	case valTrue:
		return types.Bool(true), nil
	case valInt:
		v, n := binary.Varint(b[1:])
		if n <= 0 {
			return nil, fmt.Errorf("repository: bad int literal encoding")
		}
		return types.Int(v), nil
	case valFloat:
		if len(b) != 9 {
			return nil, fmt.Errorf("repository: bad float literal encoding")
		}
		return types.Float(math.Float64frombits(binary.BigEndian.Uint64(b[1:]))), nil
	case valString:
		return types.String(b[1:]), nil
	case valByteTuple:
		return types.ByteTuple(append([]byte(nil), b[1:]...)), nil
	default:
		return nil, fmt.Errorf("repository: unknown value tag %d", b[0])
	}
}

func encodeType(t *types.Type) ([]byte, error) {
	switch {
	case types.TypeEquals(t, types.Top):
		return []byte{typTop}, nil
	case types.TypeEquals(t, types.Bottom):
		return []byte{typBottom}, nil
	default:
		if k, ok := types.PrimitiveKindOf(t); ok {
			return []byte{typPrimitive, byte(k)}, nil
		}
		return nil, fmt.Errorf("repository: type %s is not persistable", t)
	}
}

func decodeType(b []byte) (*types.Type, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("repository: empty type encoding")
	}
	switch b[0] {
	case typTop:
		return types.Top, nil
	case typBottom:
		return types.Bottom, nil
	case typPrimitive:
		if len(b) != 2 {
			return nil, fmt.Errorf("repository: bad primitive type encoding")
		}
		return types.PrimitiveType(types.Kind(b[1])), nil
	default:
		return nil, fmt.Errorf("repository: unknown type tag %d", b[0])
	}
}

func (p *scalarPool) ValueRef(v types.Value) (uint32, error) {
	enc, err := encodeValue(v)
	if err != nil {
		return 0, err
	}
	if ref, ok := p.valueIdx[string(enc)]; ok {
		return ref, nil
	}
	p.values = append(p.values, enc)
	p.valueObjs = append(p.valueObjs, v)
	ref := uint32(len(p.values))
	p.valueIdx[string(enc)] = ref
	return ref, nil
}

func (p *scalarPool) TypeRef(t *types.Type) (uint32, error) {
	enc, err := encodeType(t)
	if err != nil {
		return 0, err
	}
	if ref, ok := p.typeIdx[string(enc)]; ok {
		return ref, nil
	}
	p.typs = append(p.typs, enc)
	p.typeObjs = append(p.typeObjs, t)
	ref := uint32(len(p.typs))
	p.typeIdx[string(enc)] = ref
	return ref, nil
}

func (p *scalarPool) ModuleRef(m l1.ModuleRef) (uint32, error) {
	name := m.ModuleName()
	if ref, ok := p.moduleIdx[name]; ok {
		return ref, nil
	}
	p.modules = append(p.modules, name)
	ref := uint32(len(p.modules))
	p.moduleIdx[name] = ref
	return ref, nil
}

func (p *scalarPool) ValueAt(ref uint32) (types.Value, error) {
	if ref == 0 || int(ref) > len(p.valueObjs) {
		return nil, fmt.Errorf("repository: bad value ref %d", ref)
	}
	return p.valueObjs[ref-1], nil
}

func (p *scalarPool) TypeAt(ref uint32) (*types.Type, error) {
	if ref == 0 || int(ref) > len(p.typeObjs) {
		return nil, fmt.Errorf("repository: bad type ref %d", ref)
	}
	return p.typeObjs[ref-1], nil
}

func (p *scalarPool) ModuleAt(ref uint32) (l1.ModuleRef, error) {
	if ref == 0 || int(ref) > len(p.modules) {
		return nil, fmt.Errorf("repository: bad module ref %d", ref)
	}
	return moduleHandle(p.modules[ref-1]), nil
}

// PrimitiveAt resolves a persisted primitive ordinal. The repository does
// not own the runtime's primitive table, so the handle carries the ordinal
// only; the interpreter's dispatch is by ordinal regardless.
func (p *scalarPool) PrimitiveAt(ordinal uint16) (*l1.Primitive, error) {
	return &l1.Primitive{Ordinal: ordinal}, nil
}

// moduleHandle is the ModuleRef a loaded record carries: the canonical
// module name, resolved against the live module table by whoever links the
// loaded code.
type moduleHandle string

func (m moduleHandle) ModuleName() string { return string(m) }

func (p *scalarPool) valueBytes() []byte { return encodeTable(p.values) }
func (p *scalarPool) typeBytes() []byte  { return encodeTable(p.typs) }

func (p *scalarPool) moduleBytes() []byte {
	rows := make([][]byte, len(p.modules))
	for i, m := range p.modules {
		rows[i] = []byte(m)
	}
	return encodeTable(rows)
}

func encodeTable(rows [][]byte) []byte {
	var out bytes.Buffer
	writeUvarint(&out, uint64(len(rows)))
	for _, row := range rows {
		writeLenBytes(&out, row)
	}
	return out.Bytes()
}

func decodeTable(b []byte) ([][]byte, error) {
	r := bytes.NewReader(b)
	n, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	rows := make([][]byte, 0, n)
	for i := uint64(0); i < n; i++ {
		row, err := readLenBytes(r)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// loadScalarPool rebuilds a pool from its three serialized tables, decoding
// every row eagerly so a corrupt entry fails at open time.
func loadScalarPool(valueTable, typeTable, moduleTable []byte) (*scalarPool, error) {
	p := newScalarPool()

	valueRows, err := decodeTable(valueTable)
	if err != nil {
		return nil, fmt.Errorf("value pool: %w", err)
	}
	for _, row := range valueRows {
		v, err := decodeValue(row)
		if err != nil {
			return nil, err
		}
		p.values = append(p.values, row)
		p.valueObjs = append(p.valueObjs, v)
	}

	typeRows, err := decodeTable(typeTable)
	if err != nil {
		return nil, fmt.Errorf("type pool: %w", err)
	}
	for _, row := range typeRows {
		t, err := decodeType(row)
		if err != nil {
			return nil, err
		}
		p.typs = append(p.typs, row)
		p.typeObjs = append(p.typeObjs, t)
	}

	moduleRows, err := decodeTable(moduleTable)
	if err != nil {
		return nil, fmt.Errorf("module pool: %w", err)
	}
	for _, row := range moduleRows {
		p.modules = append(p.modules, string(row))
	}
	return p, nil
}
