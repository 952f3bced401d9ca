package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"voxelterrain.ai/internal/sim/catalogs"
)

// EncodeRLE encodes a block grid into base64(varint pairs).
// The pairs are (block_id, run_len) repeated.
func EncodeRLE(ids []catalogs.BlockVariant) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(ids) {
		b := ids[i]
		run := 1
		for j := i + 1; j < len(ids) && ids[j] == b; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(b))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeRLE decodes data produced by EncodeRLE. want is the expected number
// of cells; decoding fails rather than allocating past it.
func DecodeRLE(b64 string, want int) ([]catalogs.BlockVariant, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	out := make([]catalogs.BlockVariant, 0, want)
	for i := 0; i < len(raw); {
		b, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if b >= uint64(catalogs.NumVariants) {
			return nil, fmt.Errorf("unknown block id: %d", b)
		}
		if run == 0 || run > uint64(want-len(out)) {
			return nil, fmt.Errorf("run of %d overflows %d cells", run, want)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, catalogs.BlockVariant(b))
		}
	}
	if len(out) != want {
		return nil, fmt.Errorf("decoded %d cells want %d", len(out), want)
	}
	return out, nil
}
