package parrec

import (
	"encoding/binary"
	"fmt"
	"os"
)

// ReadRec reads a REC pixel file into a flat numeric buffer in vendor
// storage order. pixelBits is the stored bit depth from the header's
// image records (8 or 16); 16-bit pixels are little-endian.
func ReadRec(path string, pixelBits int) ([]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeRec(data, pixelBits)
}

// DecodeRec converts raw REC bytes into pixel values.
func DecodeRec(data []byte, pixelBits int) ([]float64, error) {
	switch pixelBits {
	case 8:
		out := make([]float64, len(data))
		for i, b := range data {
			out[i] = float64(b)
		}
		return out, nil
	case 16:
		if len(data)%2 != 0 {
			return nil, fmt.Errorf("parrec: REC size %d is not a whole number of 16-bit pixels", len(data))
		}
		out := make([]float64, len(data)/2)
		for i := range out {
			out[i] = float64(binary.LittleEndian.Uint16(data[2*i:]))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("parrec: unsupported pixel size %d bits", pixelBits)
	}
}
