package gguf

import "fmt"

// q4KBlockSize is the number of bytes one Q4_K block occupies on disk:
// 2 (d) + 2 (dmin) + 12 (scales) + 128 (qs).
const q4KBlockSize = 144

// DequantizeQ4KRow decodes one row of Q4_K-packed data into dst. rowLen is
// the number of output elements (must be a multiple of 256); src must hold
// exactly rowLen/256 blocks of q4KBlockSize bytes each.
func DequantizeQ4KRow(src []byte, dst []float32, rowLen int) error {
	if rowLen%256 != 0 {
		return fmt.Errorf("q4_k row length %d not a multiple of 256: %w", rowLen, ErrInvalidDim)
	}
	nBlocks := rowLen / 256
	for b := 0; b < nBlocks; b++ {
		block := src[b*q4KBlockSize : (b+1)*q4KBlockSize]
		dequantizeQ4KBlock(block, dst[b*256:(b+1)*256])
	}
	return nil
}

func dequantizeQ4KBlock(block []byte, dst []float32) {
	d := decodeF16(uint16(block[0]) | uint16(block[1])<<8)
	dmin := decodeF16(uint16(block[2]) | uint16(block[3])<<8)
	scales := block[4:16]
	qs := block[16:144]

	is := 0
	qOff := 0
	outOff := 0
	for outOff < 256 {
		sc1, m1 := scaleMinK4(is, scales)
		d1 := d * float32(sc1)
		dm1 := dmin * float32(m1)
		sc2, m2 := scaleMinK4(is+1, scales)
		d2 := d * float32(sc2)
		dm2 := dmin * float32(m2)

		q := qs[qOff : qOff+32]
		for l := 0; l < 32; l++ {
			dst[outOff+l] = d1*float32(q[l]&0x0F) - dm1
		}
		for l := 0; l < 32; l++ {
			dst[outOff+32+l] = d2*float32(q[l]>>4) - dm2
		}

		qOff += 32
		outOff += 64
		is += 2
	}
}

// scaleMinK4 unpacks the 6-bit scale and 6-bit min for sub-block j from the
// 12-byte packed scales array of a Q4_K block.
func scaleMinK4(j int, scales []byte) (sc, m uint8) {
	if j < 4 {
		return scales[j] & 63, scales[j+4] & 63
	}
	return (scales[j+4] & 0x0F) | ((scales[j-4] >> 6) << 4),
		(scales[j+4] >> 4) | ((scales[j] >> 6) << 4)
}
