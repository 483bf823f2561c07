package mediacache

import (
	"container/list"
)

type entry struct {
	key     string
	payload []byte
	size    int64
}

// pool is a count-capped store that evicts its oldest-inserted entry when a
// new key would exceed the limit. size always equals the sum of entry sizes.
type pool struct {
	limit   int
	entries map[string]*list.Element
	order   *list.List
	size    int64
}

func newPool(limit int) *pool {
	return &pool{
		limit:   limit,
		entries: make(map[string]*list.Element, limit),
		order:   list.New(),
	}
}

func (p *pool) get(key string) ([]byte, bool) {
	elem, ok := p.entries[key]
	if !ok {
		return nil, false
	}
	return elem.Value.(*entry).payload, true
}

// put inserts or overwrites key and reports how many entries were evicted to
// respect the count limit. An overwrite counts as a fresh insertion.
func (p *pool) put(key string, payload []byte, size int64) (evicted int) {
	if elem, ok := p.entries[key]; ok {
		e := elem.Value.(*entry)
		p.size -= e.size
		e.payload = payload
		e.size = size
		p.size += size
		p.order.MoveToBack(elem)
		return 0
	}

	for p.order.Len() >= p.limit {
		oldest := p.order.Front()
		e := oldest.Value.(*entry)
		p.order.Remove(oldest)
		delete(p.entries, e.key)
		p.size -= e.size
		evicted++
	}

	p.entries[key] = p.order.PushBack(&entry{key: key, payload: payload, size: size})
	p.size += size
	return evicted
}

func (p *pool) reset() {
	p.entries = make(map[string]*list.Element, p.limit)
	p.order.Init()
	p.size = 0
}

func (p *pool) len() int {
	return p.order.Len()
}
