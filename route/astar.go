package route

import (
	"container/heap"
)

// searchItem is an open-set entry
type searchItem struct {
	id    string
	g     float64
	f     float64
	index int
}

// openSet implements heap.Interface ordered by f, then id for determinism
type openSet []*searchItem

func (pq openSet) Len() int { return len(pq) }
func (pq openSet) Less(i, j int) bool {
	if pq[i].f == pq[j].f {
		return pq[i].id < pq[j].id
	}
	return pq[i].f < pq[j].f
}
func (pq openSet) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}
func (pq *openSet) Push(x interface{}) {
	it := x.(*searchItem)
	it.index = len(*pq)
	*pq = append(*pq, it)
}
func (pq *openSet) Pop() interface{} {
	old := *pq
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*pq = old[:n-1]
	return it
}

// AStar searches the node graph from startID to goalID using Manhattan
// cost and heuristic. Neighbors must be traversable, explicitly connected
// and wall-clear. It returns the node id sequence and its cost, or false
// when the open set is exhausted first.
func (g *Graph) AStar(startID, goalID string, buffer float64) ([]string, float64, bool) {
	start, ok := g.nodes[startID]
	if !ok || !start.Traversable() {
		return nil, 0, false
	}
	goal, ok := g.nodes[goalID]
	if !ok || !goal.Traversable() {
		return nil, 0, false
	}

	open := &openSet{}
	heap.Init(open)
	queued := make(map[string]*searchItem)
	closed := make(map[string]bool)
	cameFrom := make(map[string]string)

	first := &searchItem{id: startID, g: 0, f: Manhattan(start.Position, goal.Position)}
	heap.Push(open, first)
	queued[startID] = first

	for open.Len() > 0 {
		cur := heap.Pop(open).(*searchItem)
		delete(queued, cur.id)
		if cur.id == goalID {
			return reconstruct(cameFrom, goalID), cur.g, true
		}
		closed[cur.id] = true
		curNode := g.nodes[cur.id]

		for _, nid := range g.adj[cur.id] {
			if closed[nid] {
				continue
			}
			next := g.nodes[nid]
			if !next.Traversable() {
				continue
			}
			if !g.EdgeClear(curNode, next, buffer) {
				continue
			}
			tentative := cur.g + Manhattan(curNode.Position, next.Position)
			if it, ok := queued[nid]; ok {
				if tentative >= it.g {
					continue
				}
				it.g = tentative
				it.f = tentative + Manhattan(next.Position, goal.Position)
				heap.Fix(open, it.index)
				cameFrom[nid] = cur.id
				continue
			}
			it := &searchItem{
				id: nid,
				g:  tentative,
				f:  tentative + Manhattan(next.Position, goal.Position),
			}
			heap.Push(open, it)
			queued[nid] = it
			cameFrom[nid] = cur.id
		}
	}
	return nil, 0, false
}

func reconstruct(cameFrom map[string]string, goalID string) []string {
	path := []string{goalID}
	for cur := goalID; ; {
		prev, ok := cameFrom[cur]
		if !ok {
			break
		}
		path = append(path, prev)
		cur = prev
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
