package glide

// NumSlots is the number of logical hash slots a cluster deployment
// partitions the key space into.
const NumSlots = 16384

// crc16Table is the CCITT (XModem) CRC-16 table the server uses for slot
// hashing. There is no ecosystem package in the retrieved examples that
// exposes this exact table as an importable function (go-redis, visible
// only as reference material under other_examples/, hand-rolls the
// identical table internally rather than depending on one) — the
// algorithm is a small, fixed, spec-mandated constant that must match the
// server bit-for-bit, so hand-writing it here is the right call rather
// than a corpus gap. See DESIGN.md for the stdlib-use justification.
var crc16Table = func() [256]uint16 {
	const poly = 0x1021
	var table [256]uint16
	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for j := 0; j < 8; j++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}()

func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc = (crc << 8) ^ crc16Table[byte(crc>>8)^b]
	}
	return crc
}

// HashTag extracts the substring between the first '{' and the next '}'
// in a key, so related keys can be colocated on one slot. If there is no
// such '}', or the substring is empty, the whole key is the hash tag.
func HashTag(key string) string {
	start := -1
	for i := 0; i < len(key); i++ {
		if key[i] == '{' {
			start = i
			break
		}
	}
	if start == -1 {
		return key
	}
	end := -1
	for i := start + 1; i < len(key); i++ {
		if key[i] == '}' {
			end = i
			break
		}
	}
	if end == -1 || end == start+1 {
		return key
	}
	return key[start+1 : end]
}

// SlotOf computes the cluster slot for a key: CRC16(hash_tag(key)) mod
// 16384. It is mandatory that this match the server's own computation
// exactly (§4.4, testable property #2).
func SlotOf(key string) int {
	tag := HashTag(key)
	return int(crc16([]byte(tag))) % NumSlots
}
