package metrics

import (
	"cmp"
	"slices"
	"strconv"
)

// StatusBucket counts responses for one protocol version and status code.
type StatusBucket struct {
	Protocol string
	Code     string
	Count    int
}

// Class returns the status class of the bucket, such as "2xx". Codes that
// are not three digits report "other".
func (b StatusBucket) Class() string {
	return StatusClass(b.Code)
}

// StatusClass maps a status code string to its class.
func StatusClass(code string) string {
	n, err := strconv.Atoi(code)
	if err != nil || n < 100 || n > 999 {
		return "other"
	}
	return strconv.Itoa(n/100) + "xx"
}

// FlattenStatusBuckets converts the protocol->code map kept by the collector
// into rows ordered by descending count, with protocol and code breaking ties.
func FlattenStatusBuckets(buckets map[string]map[string]int) []StatusBucket {
	var rows []StatusBucket
	for protocol, codes := range buckets {
		for code, count := range codes {
			rows = append(rows, StatusBucket{Protocol: protocol, Code: code, Count: count})
		}
	}
	slices.SortFunc(rows, func(a, b StatusBucket) int {
		return cmp.Or(
			cmp.Compare(b.Count, a.Count),
			cmp.Compare(a.Protocol, b.Protocol),
			cmp.Compare(a.Code, b.Code),
		)
	})
	return rows
}

// StatusClassCounts sums the buckets per status class across protocols.
func StatusClassCounts(buckets map[string]map[string]int) map[string]int {
	if len(buckets) == 0 {
		return nil
	}
	classes := make(map[string]int)
	for _, codes := range buckets {
		for code, count := range codes {
			classes[StatusClass(code)] += count
		}
	}
	return classes
}
