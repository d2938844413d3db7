package filter

import "encoding/binary"

// PrefixLength composes around Child, a codec whose on-disk form is missing
// the decompressed-length field some formats expect: the forward transform
// prepends a 32-bit little-endian real-size field ahead of Child's stored
// bytes, and the reverse transform reads that field back off, then hands
// the remainder to Child, zero-padding the result if Child's output falls
// short of the declared length (matching how truncated archives are
// tolerated on read).
type PrefixLength struct {
	Child Codec
}

func (p PrefixLength) Code() string         { return "prefix-length+" + p.Child.Code() }
func (p PrefixLength) FriendlyName() string { return "length-prefixed " + p.Child.FriendlyName() }

func (p PrefixLength) NewForwardTransform() Transform {
	return &prefixForward{child: p.Child.NewForwardTransform()}
}

func (p PrefixLength) NewReverseTransform() Transform {
	return &prefixReverse{child: p.Child.NewReverseTransform()}
}

type prefixForward struct {
	child Transform
	n     int64
}

func (t *prefixForward) Reset(expectedInputLen int64) {
	t.n = expectedInputLen
	t.child.Reset(expectedInputLen)
}

func (t *prefixForward) Transform(in, out []byte) (int, int) {
	if len(out) < 4 {
		return 0, 0
	}
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(in)))
	consumed, produced := t.child.Transform(in, out[4:])
	return consumed, produced + 4
}

type prefixReverse struct {
	child Transform
}

func (t *prefixReverse) Reset(expectedInputLen int64) {
	t.child.Reset(-1)
}

func (t *prefixReverse) Transform(in, out []byte) (int, int) {
	if len(in) < 4 {
		return 0, 0
	}
	targetLen := int(binary.LittleEndian.Uint32(in[0:4]))

	childConsumed, childProduced := t.child.Transform(in[4:], out)
	produced := childProduced
	if produced < targetLen && produced <= len(out) {
		end := targetLen
		if end > len(out) {
			end = len(out)
		}
		for i := produced; i < end; i++ {
			out[i] = 0
		}
		produced = end
	}
	return 4 + childConsumed, produced
}
