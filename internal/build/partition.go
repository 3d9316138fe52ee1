package build

// Chunk is a half-open range [Start, Stop) of file indices assigned to one worker.
type Chunk struct {
	Start int
	Stop  int
}

// Len returns the number of indices in the chunk.
func (c Chunk) Len() int {
	return c.Stop - c.Start
}

// Partition splits [start, stop) into at most k contiguous, disjoint chunks in
// order. Sizes differ by at most one, the first total%k chunks taking the extra
// index, so no chunk exceeds ceil(total/k). Fewer than k chunks are returned
// only when the range holds fewer than k indices; empty chunks are never returned.
func Partition(start, stop, k int) []Chunk {
	total := stop - start
	if total <= 0 || k < 1 {
		return nil
	}
	if k > total {
		k = total
	}

	base, extra := total/k, total%k
	chunks := make([]Chunk, 0, k)
	pos := start
	for i := 0; i < k; i++ {
		size := base
		if i < extra {
			size++
		}
		chunks = append(chunks, Chunk{Start: pos, Stop: pos + size})
		pos += size
	}
	return chunks
}
