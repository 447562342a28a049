package sdr

import (
	"encoding/binary"
	"fmt"
)

// DecodeInt16 converts interleaved little endian signed 16 bit I/Q samples into a Block.
// Every frame holds one I/Q pair per channel; only the first channel of each frame is kept.
func DecodeInt16(buf []byte, channels int) (Block, error) {
	if channels < 1 {
		channels = 1
	}
	frame := 4 * channels
	if len(buf)%frame != 0 {
		return nil, fmt.Errorf("buffer length %d is not a multiple of the frame size %d", len(buf), frame)
	}
	block := make(Block, len(buf)/frame)
	for i := range block {
		off := i * frame
		re := int16(binary.LittleEndian.Uint16(buf[off:]))
		im := int16(binary.LittleEndian.Uint16(buf[off+2:]))
		block[i] = complex(float32(re), float32(im))
	}
	return block, nil
}

// DecodeUint8 converts interleaved unsigned 8 bit I/Q samples (rtl_sdr format) into a Block
// normalized to [-1, 1].
func DecodeUint8(buf []byte) (Block, error) {
	if len(buf)%2 != 0 {
		return nil, fmt.Errorf("buffer length %d is odd", len(buf))
	}
	block := make(Block, len(buf)/2)
	for i := range block {
		re := (float32(buf[2*i]) - 127.5) / 127.5
		im := (float32(buf[2*i+1]) - 127.5) / 127.5
		block[i] = complex(re, im)
	}
	return block, nil
}

// DecodeInt8 converts interleaved signed 8 bit I/Q samples (hackrf_transfer format) into a Block
// normalized to [-1, 1).
func DecodeInt8(buf []byte) (Block, error) {
	if len(buf)%2 != 0 {
		return nil, fmt.Errorf("buffer length %d is odd", len(buf))
	}
	block := make(Block, len(buf)/2)
	for i := range block {
		re := float32(int8(buf[2*i])) / 128
		im := float32(int8(buf[2*i+1])) / 128
		block[i] = complex(re, im)
	}
	return block, nil
}
