package stream

import "strconv"

func parseID(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}

func int64ToString(v int64) string {
	return strconv.FormatInt(v, 10)
}

func contentRangeHeader(r byteRange, size int64) string {
	return "bytes " + int64ToString(r.start) + "-" + int64ToString(r.end) + "/" + int64ToString(size)
}
