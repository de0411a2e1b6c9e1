package metadata

// Iterator is a pull based lazy sequence of Items. It is not safe to
// share one iterator between goroutines, independent iterators over the
// same filesystem are.
type Iterator struct {
	next func() (Item, bool)
}

func NewIterator(next func() (Item, bool)) *Iterator {
	return &Iterator{next: next}
}

func (it *Iterator) Next() (Item, bool) {
	return it.next()
}

func (it *Iterator) Collect() []Item {
	var items []Item
	for {
		item, ok := it.Next()
		if !ok {
			return items
		}
		items = append(items, item)
	}
}

func newSliceIterator(items []Item) *Iterator {
	idx := 0
	return NewIterator(func() (Item, bool) {
		if idx >= len(items) {
			return Item{}, false
		}
		item := items[idx]
		idx++
		return item, true
	})
}

// Concat chains iterators lazily, each maker is invoked when reached.
func Concat(makers ...func() *Iterator) *Iterator {
	var current *Iterator
	idx := 0
	return NewIterator(func() (Item, bool) {
		for {
			if current == nil {
				if idx >= len(makers) {
					return Item{}, false
				}
				current = makers[idx]()
				idx++
			}
			item, ok := current.Next()
			if ok {
				return item, true
			}
			current = nil
		}
	})
}

// newTreeIterator performs two passes: a depth first walk from the root
// using an explicit stack (children in on disk order), then a residual
// scan of the master list in record order. Entries seen only in the
// residual pass are surfaced as orphans with no parent reference.
func newTreeIterator(items []Item, children map[uint64][]int, rootID uint64) *Iterator {
	visited := make([]bool, len(items))
	// the root may list itself among its children (NTFS entry 5 is its
	// own parent), it is never emitted
	for idx := range items {
		if items[idx].Id == rootID {
			visited[idx] = true
		}
	}
	stack := make([]int, 0, len(children[rootID]))
	for idx := len(children[rootID]) - 1; idx >= 0; idx-- {
		stack = append(stack, children[rootID][idx])
	}
	residualIdx := 0
	walking := true

	return NewIterator(func() (Item, bool) {
		if walking {
			for len(stack) > 0 {
				idx := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if visited[idx] {
					continue
				}
				visited[idx] = true
				item := items[idx]
				if item.IsDir {
					kids := children[item.Id]
					for kidx := len(kids) - 1; kidx >= 0; kidx-- {
						stack = append(stack, kids[kidx])
					}
				}
				return item, true
			}
			walking = false
		}

		for residualIdx < len(items) {
			idx := residualIdx
			residualIdx++
			if visited[idx] {
				continue
			}
			item := items[idx]
			item.Orphan = true
			item.Parent = nil
			return item, true
		}
		return Item{}, false
	})
}
