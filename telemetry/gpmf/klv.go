package gpmf

import (
	"encoding/binary"
	"fmt"
)

// klv is one GPMF key-length-value box: a FourCC key, a type char, a
// structure size, a repeat count and either raw payload bytes or, for the
// nested type 0x00, child boxes.
type klv struct {
	key      string
	typ      byte
	size     int
	repeat   int
	data     []byte
	children []klv
}

const klvHeaderSize = 8

// parseKLV parses a flat buffer of GPMF boxes. Payloads are padded to 32-bit
// boundaries; nested boxes (type 0x00) are parsed recursively.
func parseKLV(buf []byte) ([]klv, error) {

	var boxes []klv

	offset := 0

	for offset+klvHeaderSize <= len(buf) {

		key := string(buf[offset : offset+4])
		typ := buf[offset+4]
		size := int(buf[offset+5])
		repeat := int(binary.BigEndian.Uint16(buf[offset+6 : offset+8]))

		payload_size := size * repeat
		padded := payload_size

		if padded%4 != 0 {
			padded += 4 - padded%4
		}

		if offset+klvHeaderSize+payload_size > len(buf) {
			return nil, fmt.Errorf("Truncated KLV box %q, need %d bytes but only %d remain", key, payload_size, len(buf)-offset-klvHeaderSize)
		}

		payload := buf[offset+klvHeaderSize : offset+klvHeaderSize+payload_size]

		box := klv{
			key:    key,
			typ:    typ,
			size:   size,
			repeat: repeat,
		}

		if typ == 0x00 {

			children, err := parseKLV(payload)

			if err != nil {
				return nil, err
			}

			box.children = children

		} else {
			box.data = payload
		}

		boxes = append(boxes, box)

		offset += klvHeaderSize + padded
	}

	return boxes, nil
}
