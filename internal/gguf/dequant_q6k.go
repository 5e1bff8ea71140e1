package gguf

import "fmt"

// q6KBlockSize is the number of bytes one Q6_K block occupies on disk:
// 128 (ql) + 64 (qh) + 16 (scales) + 2 (d).
const q6KBlockSize = 210

// DequantizeQ6KRow decodes one row of Q6_K-packed data into dst. rowLen is
// the number of output elements (must be a multiple of 256); src must hold
// exactly rowLen/256 blocks of q6KBlockSize bytes each.
func DequantizeQ6KRow(src []byte, dst []float32, rowLen int) error {
	if rowLen%256 != 0 {
		return fmt.Errorf("q6_k row length %d not a multiple of 256: %w", rowLen, ErrInvalidDim)
	}
	nBlocks := rowLen / 256
	for b := 0; b < nBlocks; b++ {
		block := src[b*q6KBlockSize : (b+1)*q6KBlockSize]
		dequantizeQ6KBlock(block, dst[b*256:(b+1)*256])
	}
	return nil
}

func dequantizeQ6KBlock(block []byte, dst []float32) {
	ql := block[0:128]
	qh := block[128:192]
	scales := block[192:208]
	d := decodeF16(uint16(block[208]) | uint16(block[209])<<8)

	for half := 0; half < 2; half++ {
		qlH := ql[half*64 : half*64+64]
		qhH := qh[half*32 : half*32+32]
		scH := scales[half*8 : half*8+8]
		yH := dst[half*128 : half*128+128]

		for l := 0; l < 32; l++ {
			is := l / 16

			q1 := int32((qlH[l]&0x0F)|((qhH[l]>>0&3)<<4)) - 32
			q2 := int32((qlH[l+32]&0x0F)|((qhH[l]>>2&3)<<4)) - 32
			q3 := int32((qlH[l]>>4)|((qhH[l]>>4&3)<<4)) - 32
			q4 := int32((qlH[l+32]>>4)|((qhH[l]>>6&3)<<4)) - 32

			yH[l] = d * float32(int8(scH[is])) * float32(q1)
			yH[l+32] = d * float32(int8(scH[is+2])) * float32(q2)
			yH[l+64] = d * float32(int8(scH[is+4])) * float32(q3)
			yH[l+96] = d * float32(int8(scH[is+6])) * float32(q4)
		}
	}
}
