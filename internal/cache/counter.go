package cache

import "strconv"

func encodeCount(n int64) []byte {
	return []byte(strconv.FormatInt(n, 10))
}

func decodeCount(raw []byte) int64 {
	n, _ := strconv.ParseInt(string(raw), 10, 64)
	return n
}
