package worker

// indexes tracks which of each double-buffered resource's two slots is
// "current" this cycle. vertex and vertexSub ping-pong independently so
// a cycle that only touches one sub-buffer doesn't have to recopy the
// other; image does the same for the two atlas/dedicated image slots.
//
// Grounded on original_source/src/render/worker/mod.rs's Indexes struct:
// every method here is a direct translation of its Rust counterpart,
// including the XOR-toggle advance.
type indexes struct {
	vertex    int
	vertexSub [2]int
	image     int
}

func (idx *indexes) prevVertex() int { return idx.vertex ^ 1 }
func (idx *indexes) currVertex() int { return idx.vertex }
func (idx *indexes) nextVertex() int { return idx.vertex ^ 1 }

func (idx *indexes) prevVertexSub() [2]int {
	return [2]int{idx.vertex ^ 1, idx.vertexSub[idx.vertex^1] ^ 1}
}

func (idx *indexes) currVertexSub() [2]int {
	return [2]int{idx.vertex, idx.vertexSub[idx.vertex]}
}

func (idx *indexes) currVertexPrevSub() [2]int {
	return [2]int{idx.vertex, idx.vertexSub[idx.vertex] ^ 1}
}

func (idx *indexes) advVertex() {
	idx.vertexSub[idx.vertex] ^= 1
	idx.vertex ^= 1
}

func (idx *indexes) advVertexNoSub() {
	idx.vertex ^= 1
}

func (idx *indexes) advVertexSub() {
	idx.vertexSub[idx.vertex] ^= 1
}

func (idx *indexes) prevImage() int { return idx.image ^ 1 }
func (idx *indexes) currImage() int { return idx.image }

func (idx *indexes) advImage() {
	idx.image ^= 1
}
