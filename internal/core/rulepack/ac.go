package rulepack

// Aho-Corasick keyword matcher over folded UTF-8 bytes.
// Build turns the trie into a full DFA so scanning never walks failure links

const noState = -1

type acNode struct {
	next [256]int32
	fail int32
	out  []int // pattern ids ending here, including those reached through fail
}

type acAutomaton struct {
	nodes []acNode
	built bool
}

func newNode() acNode {
	var n acNode
	for i := range n.next {
		n.next[i] = noState
	}
	return n
}

func newAutomaton() *acAutomaton {
	return &acAutomaton{nodes: []acNode{newNode()}}
}

// AddPattern inserts pat under id; empty patterns are ignored
func (a *acAutomaton) AddPattern(pat []byte, id int) {
	if len(pat) == 0 || a.built {
		return
	}
	s := int32(0)
	for _, b := range pat {
		nx := a.nodes[s].next[b]
		if nx == noState {
			nx = int32(len(a.nodes))
			a.nodes[s].next[b] = nx
			a.nodes = append(a.nodes, newNode())
		}
		s = nx
	}
	a.nodes[s].out = append(a.nodes[s].out, id)
}

// Build computes failure links breadth first and fills missing transitions
func (a *acAutomaton) Build() {
	queue := make([]int32, 0, len(a.nodes))
	root := &a.nodes[0]
	for b := 0; b < 256; b++ {
		if nx := root.next[b]; nx != noState {
			a.nodes[nx].fail = 0
			queue = append(queue, nx)
		} else {
			root.next[b] = 0
		}
	}
	for i := 0; i < len(queue); i++ {
		s := queue[i]
		f := a.nodes[s].fail
		if o := a.nodes[f].out; len(o) > 0 {
			a.nodes[s].out = append(a.nodes[s].out, o...)
		}
		for b := 0; b < 256; b++ {
			nx := a.nodes[s].next[b]
			if nx == noState {
				a.nodes[s].next[b] = a.nodes[f].next[b]
				continue
			}
			a.nodes[nx].fail = a.nodes[f].next[b]
			queue = append(queue, nx)
		}
	}
	a.built = true
}

// FindAll calls cb(end, id) for every match, end being the exclusive byte offset.
// Returning false from cb stops the scan
func (a *acAutomaton) FindAll(text []byte, cb func(end int, id int) bool) {
	s := int32(0)
	for i, b := range text {
		s = a.nodes[s].next[b]
		for _, id := range a.nodes[s].out {
			if !cb(i+1, id) {
				return
			}
		}
	}
}
