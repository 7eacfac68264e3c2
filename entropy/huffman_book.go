package entropy

import (
	"container/heap"
)

// treeNode is an arena entry of the Huffman tree. Leaves carry a symbol,
// internal nodes carry -1.
type treeNode struct {
	count  uint64
	symbol int
	parent int
}

// nodeHeap is a min-heap of arena indices ordered by count, then by index so
// the tree shape is deterministic.
type nodeHeap struct {
	idx   []int
	nodes []treeNode
}

func (h *nodeHeap) Len() int { return len(h.idx) }

func (h *nodeHeap) Less(i, j int) bool {
	a, b := h.nodes[h.idx[i]], h.nodes[h.idx[j]]
	if a.count != b.count {
		return a.count < b.count
	}

	return h.idx[i] < h.idx[j]
}

func (h *nodeHeap) Swap(i, j int) { h.idx[i], h.idx[j] = h.idx[j], h.idx[i] }

func (h *nodeHeap) Push(x any) { h.idx = append(h.idx, x.(int)) } //nolint: forcetypeassert

func (h *nodeHeap) Pop() any {
	old := h.idx
	n := len(old)
	x := old[n-1]
	h.idx = old[:n-1]

	return x
}

// buildLengths fills lengths with Huffman code lengths for freq and returns
// the longest. Symbols with zero frequency get length 0. A lone symbol gets
// a 1-bit code.
func buildLengths(freq []uint32, lengths []uint8) int {
	clear(lengths)

	nodes := make([]treeNode, 0, 2*len(freq))
	h := &nodeHeap{}
	for s, c := range freq {
		if c > 0 {
			nodes = append(nodes, treeNode{count: uint64(c), symbol: s, parent: -1})
			h.idx = append(h.idx, len(nodes)-1)
		}
	}

	leaves := len(nodes)
	switch leaves {
	case 0:
		return 0
	case 1:
		lengths[nodes[0].symbol] = 1
		return 1
	}

	h.nodes = nodes
	heap.Init(h)
	for h.Len() > 1 {
		left, _ := heap.Pop(h).(int)
		right, _ := heap.Pop(h).(int)

		nodes = append(nodes, treeNode{count: nodes[left].count + nodes[right].count, symbol: -1, parent: -1})
		parent := len(nodes) - 1
		nodes[left].parent = parent
		nodes[right].parent = parent

		h.nodes = nodes
		heap.Push(h, parent)
	}

	// Depths by walking parents; internal nodes are appended after their
	// children, so a reverse sweep resolves each node's depth first.
	depth := make([]int, len(nodes))
	for i := len(nodes) - 2; i >= 0; i-- {
		depth[i] = depth[nodes[i].parent] + 1
	}

	maxLen := 0
	for i := range leaves {
		d := depth[i]
		if d > 255 {
			d = 255
		}
		lengths[nodes[i].symbol] = uint8(d) //nolint: gosec
		maxLen = max(maxLen, depth[i])
	}

	return maxLen
}

// canonical describes a canonical prefix code by length class. Symbols are
// listed sorted by (length, symbol); the codewords of length l are the
// consecutive values first[l] .. first[l]+count[l]-1.
type canonical struct {
	maxLen  int
	first   []uint64
	count   []uint64
	offset  []int
	symbols []uint16
}

// assignCodes computes canonical codewords from lengths into codes and the
// decode description into c. It reports false when the lengths violate the
// Kraft inequality.
func assignCodes(lengths []uint8, maxLen int, codes []uint64, c *canonical) bool {
	c.maxLen = maxLen
	c.first = resize(c.first, maxLen+1)
	c.count = resize(c.count, maxLen+1)
	c.offset = resize(c.offset, maxLen+1)
	c.symbols = c.symbols[:0]

	for _, l := range lengths {
		if l > 0 {
			c.count[l]++
		}
	}

	code := uint64(0)
	pos := 0
	for l := 1; l <= maxLen; l++ {
		code = (code + c.count[l-1]) << 1
		c.first[l] = code
		c.offset[l] = pos
		pos += int(c.count[l]) //nolint: gosec
		if c.count[l] > 0 && code+c.count[l] > uint64(1)<<l {
			return false
		}
	}

	next := make([]uint64, maxLen+1)
	copy(next, c.first)
	c.symbols = resize(c.symbols, pos)
	fill := make([]int, maxLen+1)
	copy(fill, c.offset)

	for s, l := range lengths {
		if l == 0 {
			continue
		}
		if codes != nil {
			codes[s] = next[l]
		}
		next[l]++
		c.symbols[fill[l]] = uint16(s) //nolint: gosec
		fill[l]++
	}

	return true
}

func resize[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	s = s[:n]
	clear(s)

	return s
}

// maxLengthBound returns an upper bound on the longest Huffman codeword for
// a stream of n symbols over booklen symbols, capped by limit. A codeword of
// length L needs a total weight of at least Fib(L+1).
func maxLengthBound(n, booklen, limit int) int {
	bound := max(1, min(limit, booklen-1))

	a, b := uint64(1), uint64(1) // Fib(1), Fib(2)
	l := 1
	for b <= uint64(n) && l < bound { //nolint: gosec
		a, b = b, a+b
		l++
	}

	return l
}
