package index

import "sort"

// node is a single AVL tree node: one distinct token and its postings list.
type node struct {
	token    string
	postings []Posting
	left     *node
	right    *node
	height   int
}

func height(n *node) int {
	if n == nil {
		return 0
	}
	return n.height
}

func balanceFactor(n *node) int {
	return height(n.left) - height(n.right)
}

func (n *node) updateHeight() {
	lh, rh := height(n.left), height(n.right)
	if lh > rh {
		n.height = lh + 1
	} else {
		n.height = rh + 1
	}
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	y.updateHeight()
	x.updateHeight()
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	x.updateHeight()
	y.updateHeight()
	return y
}

// rebalance restores the AVL invariant at n after a child mutation,
// covering the left-left, left-right, right-right, and right-left cases.
func rebalance(n *node) *node {
	n.updateHeight()
	bf := balanceFactor(n)
	if bf > 1 {
		if balanceFactor(n.left) < 0 {
			n.left = rotateLeft(n.left)
		}
		return rotateRight(n)
	}
	if bf < -1 {
		if balanceFactor(n.right) > 0 {
			n.right = rotateRight(n.right)
		}
		return rotateLeft(n)
	}
	return n
}

// mutation reports what an insert or remove actually changed, so the Index
// can keep its token and posting counters exact.
type mutation struct {
	postingChanged bool
	nodeCreated    bool
	nodeDeleted    bool
}

// insert adds a posting under token, creating the node if needed, and
// rebalances the access path. Duplicate postings are ignored.
func insert(n *node, token string, p Posting, m *mutation) *node {
	if n == nil {
		m.postingChanged = true
		m.nodeCreated = true
		return &node{
			token:    token,
			postings: []Posting{p},
			height:   1,
		}
	}
	switch {
	case token < n.token:
		n.left = insert(n.left, token, p, m)
	case token > n.token:
		n.right = insert(n.right, token, p, m)
	default:
		m.postingChanged = n.addPosting(p)
		return n
	}
	return rebalance(n)
}

// remove deletes a posting from token's node. A node whose postings list
// becomes empty is removed from the tree via its in-order successor.
func remove(n *node, token string, p Posting, m *mutation) *node {
	if n == nil {
		return nil
	}
	switch {
	case token < n.token:
		n.left = remove(n.left, token, p, m)
	case token > n.token:
		n.right = remove(n.right, token, p, m)
	default:
		m.postingChanged = n.removePosting(p)
		if len(n.postings) > 0 {
			return n
		}
		m.nodeDeleted = true
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		rest, succ := deleteMin(n.right)
		succ.left = n.left
		succ.right = rest
		return rebalance(succ)
	}
	return rebalance(n)
}

// deleteMin unlinks and returns the leftmost node of the subtree, along with
// the rebalanced remainder.
func deleteMin(n *node) (rest *node, min *node) {
	if n.left == nil {
		return n.right, n
	}
	n.left, min = deleteMin(n.left)
	return rebalance(n), min
}

// find returns the node for token, or nil.
func find(n *node, token string) *node {
	for n != nil {
		switch {
		case token < n.token:
			n = n.left
		case token > n.token:
			n = n.right
		default:
			return n
		}
	}
	return nil
}

// walk visits nodes in token order.
func walk(n *node, visit func(*node)) {
	if n == nil {
		return
	}
	walk(n.left, visit)
	visit(n)
	walk(n.right, visit)
}

func postingLess(a, b Posting) bool {
	if a.DocID != b.DocID {
		return a.DocID < b.DocID
	}
	return a.SentenceIndex < b.SentenceIndex
}

// addPosting inserts p into the sorted postings list, keeping it free of
// duplicates. Reports whether the list changed.
func (n *node) addPosting(p Posting) bool {
	i := sort.Search(len(n.postings), func(i int) bool {
		return !postingLess(n.postings[i], p)
	})
	if i < len(n.postings) && n.postings[i] == p {
		return false
	}
	n.postings = append(n.postings, Posting{})
	copy(n.postings[i+1:], n.postings[i:])
	n.postings[i] = p
	return true
}

// removePosting deletes p from the sorted postings list. Reports whether the
// list changed.
func (n *node) removePosting(p Posting) bool {
	i := sort.Search(len(n.postings), func(i int) bool {
		return !postingLess(n.postings[i], p)
	})
	if i >= len(n.postings) || n.postings[i] != p {
		return false
	}
	n.postings = append(n.postings[:i], n.postings[i+1:]...)
	return true
}
