package searcher

// Handle addresses a node in a Pool. Handles stay valid until the pool is
// cleared.
type Handle int

// NoHandle marks a node that has not been allocated yet.
const NoHandle Handle = -1

// Pool owns every node of a search tree. It only grows; Clear drops all nodes
// at once between independent episodes.
type Pool[N any] struct {
	nodes []*N
}

func (p *Pool[N]) Allocate(node *N) Handle {
	p.nodes = append(p.nodes, node)
	return Handle(len(p.nodes) - 1)
}

// Get panics when h was not issued by this pool since the last Clear.
func (p *Pool[N]) Get(h Handle) *N {
	return p.nodes[h]
}

func (p *Pool[N]) Len() int {
	return len(p.nodes)
}

func (p *Pool[N]) Clear() {
	clear(p.nodes)
	p.nodes = p.nodes[:0]
}
