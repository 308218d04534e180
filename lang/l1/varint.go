package l1

import "fmt"

// nybbleWriter accumulates a nybble-packed byte stream: nybbles are appended
// one at a time and packed two per byte, high nybble first, matching the
// wire format in spec §6.
type nybbleWriter struct {
	bytes   []byte
	pending bool // true if the most recent byte has only its high nybble set
}

func (w *nybbleWriter) writeNybble(n byte) {
	if n > 0xF {
		panic(fmt.Sprintf("nybble out of range: %d", n))
	}
	if w.pending {
		w.bytes[len(w.bytes)-1] |= n
		w.pending = false
	} else {
		w.bytes = append(w.bytes, n<<4)
		w.pending = true
	}
}

// nybbleCount returns the number of nybbles written so far.
func (w *nybbleWriter) nybbleCount() int {
	n := len(w.bytes) * 2
	if w.pending {
		n--
	}
	return n
}

// encodeVarint appends v's nybble encoding per spec §4.B:
//
//	v<10:            1 nybble, the value itself.
//	10<=v<58:        2 nybbles, encoding v+150 (i.e. bytes 160..207).
//	58<=v<314:       prefix nybble 13, then 2 nybbles of v-58.
//	314<=v<65536:    prefix nybble 14, then 4 nybbles of v.
//	otherwise:       prefix nybble 15, then 8 nybbles of v.
func (w *nybbleWriter) encodeVarint(v uint32) {
	switch {
	case v < 10:
		w.writeNybble(byte(v))
	case v < 58:
		enc := v + 150
		w.writeNybble(byte(enc>>4) & 0xF)
		w.writeNybble(byte(enc) & 0xF)
	case v < 314:
		enc := v - 58
		w.writeNybble(13)
		w.writeNybble(byte(enc>>4) & 0xF)
		w.writeNybble(byte(enc) & 0xF)
	case v < 65536:
		w.writeNybble(14)
		writeNybblesBigEndian(w, uint64(v), 4)
	default:
		w.writeNybble(15)
		writeNybblesBigEndian(w, uint64(v), 8)
	}
}

func writeNybblesBigEndian(w *nybbleWriter, v uint64, count int) {
	for i := count - 1; i >= 0; i-- {
		w.writeNybble(byte((v >> (4 * uint(i))) & 0xF))
	}
}

// EncodeVarint returns the standalone nybble encoding of v as one byte per
// nybble (high nybble only set, for the literal end-to-end scenarios in
// spec §8: encode_varint(9) = [0x9], encode_varint(58) = [0xD, 0x0, 0x0], …).
func EncodeVarint(v uint32) []byte {
	w := &nybbleWriter{}
	w.encodeVarint(v)
	return unpackNybbles(w)
}

// unpackNybbles returns one nybble value per output byte (not packed two per
// byte), matching the literal nybble sequences quoted in spec §8.
func unpackNybbles(w *nybbleWriter) []byte {
	n := w.nybbleCount()
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		b := w.bytes[i/2]
		if i%2 == 0 {
			out[i] = b >> 4
		} else {
			out[i] = b & 0xF
		}
	}
	return out
}

// nybbleReader decodes a packed nybble stream produced by nybbleWriter.
// limit is the total nybble count; a zero-padded low nybble in the final
// byte must not be read as one more instruction.
type nybbleReader struct {
	bytes []byte
	limit int
	pos   int // nybble position
}

func (r *nybbleReader) readNybble() byte {
	b := r.bytes[r.pos/2]
	var n byte
	if r.pos%2 == 0 {
		n = b >> 4
	} else {
		n = b & 0xF
	}
	r.pos++
	return n
}

func (r *nybbleReader) atEnd() bool { return r.pos >= r.limit }

// decodeVarint reads a varint encoded per spec §4.B and returns its value;
// the reader's position advances past the nybbles it consumed.
func (r *nybbleReader) decodeVarint() uint32 {
	first := r.readNybble()
	switch {
	case first < 10:
		return uint32(first)
	case first < 13:
		second := r.readNybble()
		enc := uint32(first)<<4 | uint32(second)
		return enc - 150
	case first == 13:
		hi := r.readNybble()
		lo := r.readNybble()
		return (uint32(hi)<<4 | uint32(lo)) + 58
	case first == 14:
		return uint32(readNybblesBigEndian(r, 4))
	default: // 15
		return uint32(readNybblesBigEndian(r, 8))
	}
}

func readNybblesBigEndian(r *nybbleReader, count int) uint64 {
	var v uint64
	for i := 0; i < count; i++ {
		v = v<<4 | uint64(r.readNybble())
	}
	return v
}

// DecodeVarint decodes a sequence of unpacked nybbles (one nybble per byte,
// as produced by EncodeVarint) back to its integer value.
func DecodeVarint(nybbles []byte) uint32 {
	w := &nybbleWriter{}
	for _, n := range nybbles {
		w.writeNybble(n)
	}
	r := &nybbleReader{bytes: w.bytes, limit: w.nybbleCount()}
	return r.decodeVarint()
}
