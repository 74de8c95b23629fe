package similarity

// Match is a database entry scored against a query.
type Match struct {
	Index      int     `json:"index"`
	Similarity float64 `json:"similarity"`
}

// better orders matches by similarity descending, then index ascending.
func better(a, b Match) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	return a.Index < b.Index
}

// topQueue keeps the k best matches in a value-based binary heap whose
// root is the worst kept match.
type topQueue struct {
	k     int
	items []Match
}

func newTopQueue(k int) *topQueue {
	return &topQueue{k: k, items: make([]Match, 0, min(k, 1024))}
}

// less puts worse matches nearer the root.
func (q *topQueue) less(i, j int) bool {
	return better(q.items[j], q.items[i])
}

func (q *topQueue) push(m Match) {
	if len(q.items) < q.k {
		q.items = append(q.items, m)
		q.siftUp(len(q.items) - 1)
		return
	}
	if better(m, q.items[0]) {
		q.items[0] = m
		q.siftDown(0)
	}
}

// sorted drains the queue best first.
func (q *topQueue) sorted() []Match {
	out := make([]Match, len(q.items))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = q.items[0]
		n := len(q.items) - 1
		q.items[0] = q.items[n]
		q.items = q.items[:n]
		if n > 0 {
			q.siftDown(0)
		}
	}
	return out
}

func (q *topQueue) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !q.less(i, parent) {
			break
		}
		q.items[i], q.items[parent] = q.items[parent], q.items[i]
		i = parent
	}
}

func (q *topQueue) siftDown(i int) {
	n := len(q.items)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		child := left
		if right := left + 1; right < n && q.less(right, left) {
			child = right
		}
		if !q.less(child, i) {
			break
		}
		q.items[i], q.items[child] = q.items[child], q.items[i]
		i = child
	}
}
