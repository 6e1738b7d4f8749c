package store

import (
	"fmt"
	"sort"
	"strconv"
)

// IndexKeys sorts the keys of an items map ("0", "1", ...) numerically.
// Some order documents store items as a map keyed by position instead of an
// array; stores decode either form into a slice using this order.
func IndexKeys(keys []string) ([]string, error) {
	idx := make([]int, len(keys))
	byIdx := make(map[int]string, len(keys))
	for i, k := range keys {
		n, err := strconv.Atoi(k)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("items key %q is not an index", k)
		}
		if _, dup := byIdx[n]; dup {
			return nil, fmt.Errorf("items key %q duplicates index %d", k, n)
		}
		idx[i] = n
		byIdx[n] = k
	}
	sort.Ints(idx)
	out := make([]string, len(idx))
	for i, n := range idx {
		out[i] = byIdx[n]
	}
	return out, nil
}
