package passes

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"tsreduce/internal/reduce"
)

// byteRange is a half-open span of the original source, [Start, End).
type byteRange struct {
	Start, End uint
}

func (r byteRange) size() uint { return r.End - r.Start }

// interestingNode is one entry of an InterestingNodeList: a node the
// matcher accepted, together with the replacement the matcher
// proposed and the nested list of its own interesting descendants.
// Grounded on spec.md §4.3 step 3.
type interestingNode struct {
	Range       byteRange
	Replacement []byte
	Children    interestingNodeList
}

// ownBytes returns the node's range size minus the total covered by
// its interesting children — the portion of this node's span that
// disappears only if the node itself (not just its children) is
// opened and partially peeled.
func (n *interestingNode) ownBytes() uint {
	return n.Range.size() - n.Children.totalBytes()
}

// interestingNodeList is the ordered, non-overlapping sequence of
// interesting nodes at one nesting level.
type interestingNodeList []*interestingNode

func (l interestingNodeList) totalBytes() uint {
	var total uint
	for _, n := range l {
		total += n.Range.size()
	}
	return total
}

func (l interestingNodeList) clone() interestingNodeList {
	out := make(interestingNodeList, len(l))
	for i, n := range l {
		cp := *n
		cp.Children = n.Children.clone()
		out[i] = &cp
	}
	return out
}

// edit is one (range, replacement) splice instruction collected from a
// final, peeled InterestingNodeList.
type edit struct {
	Range       byteRange
	Replacement []byte
}

// flatten walks the list in source order and collects every node still
// present as an edit instruction.
func (l interestingNodeList) flatten(out []edit) []edit {
	for _, n := range l {
		out = appendFlatten(out, n)
	}
	return out
}

func appendFlatten(out []edit, n *interestingNode) []edit {
	if len(n.Children) == 0 {
		return append(out, edit{Range: n.Range, Replacement: n.Replacement})
	}
	// node was opened: its own bytes plus whatever children remain are
	// represented by recursing into the children list, splicing the
	// node's replacement only where no child covers a sub-range.
	// Since children are the only parts of the node that can vary
	// independently, re-emit them directly.
	for _, c := range n.Children {
		out = appendFlatten(out, c)
	}
	return out
}

// Matcher decides whether a tree-sitter node is worth trying to
// replace, returning the replacement bytes and true if so.
type Matcher func(fullInput []byte, node *tree_sitter.Node) (replacement []byte, ok bool)

// TreeSitterReplaceConfig collects the construction parameters spec.md
// §4.3 names: a grammar, a name, a matcher, and the
// try_match_all_nodes escape hatch.
type TreeSitterReplaceConfig struct {
	Language         *tree_sitter.Language
	Name             string
	Matcher          Matcher
	TryMatchAllNodes bool
}

// NewTreeSitterReplace builds the structural DichotomyPass described in
// spec.md §4.3. Grounded on the DichotomyPass adapter in
// internal/reduce/dichotomy.go; the tree-sitter parsing and cursor walk
// follow github.com/tree-sitter/go-tree-sitter's Parser/Tree/TreeCursor
// API, the same API _examples/other_examples' indexing pipeline uses
// for its own parse step.
func NewTreeSitterReplace(cfg TreeSitterReplaceConfig) reduce.Pass {
	return reduce.NewDichotomyPass(reduce.DichotomyPassFuncs{
		Name:     cfg.Name,
		HashSeed: fnvSeedFor(cfg.Name),
		ListAttempts: func(ctx context.Context, workdir string, job reduce.Job, cancel <-chan struct{}) (any, []reduce.Attempt, bool, error) {
			return listNodeAttempts(workdir, job, cfg)
		},
		AttemptReduce: func(ctx context.Context, workdir string, test reduce.Test, attempt reduce.Attempt, attemptNumber int, job reduce.Job, parsed any, cancel <-chan struct{}) (reduce.JobStatus, error) {
			return attemptNodeReplace(ctx, workdir, test, attempt.([]edit), attemptNumber, job, parsed.([]byte), cancel)
		},
	})
}

func fnvSeedFor(name string) uint64 {
	var h uint64 = 1469598103934665603
	for _, b := range []byte(name) {
		h ^= uint64(b)
		h *= 1099511628211
	}
	return h
}

func listNodeAttempts(workdir string, job reduce.Job, cfg TreeSitterReplaceConfig) (any, []reduce.Attempt, bool, error) {
	full := filepath.Join(workdir, job.Path)
	source, err := os.ReadFile(full)
	if err != nil {
		return nil, nil, false, err
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(cfg.Language); err != nil {
		return nil, nil, false, err
	}
	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, nil, false, nil
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return nil, nil, false, nil
	}

	top := collectInteresting(root, source, cfg)
	if top.totalBytes() == 0 {
		return nil, nil, false, nil
	}

	rng := rand.New(rand.NewSource(int64(job.Seed)))
	attemptLists := dichotomyAttempts(top, rng)
	if len(attemptLists) == 0 {
		return nil, nil, false, nil
	}

	attempts := make([]reduce.Attempt, len(attemptLists))
	for i, lst := range attemptLists {
		attempts[i] = lst.flatten(nil)
	}

	return source, attempts, true, nil
}

// collectInteresting walks node depth-first and builds the
// InterestingNodeList per spec.md §4.3 step 3: an uninteresting node
// contributes no entry of its own, its interesting descendants become
// siblings in the current list.
func collectInteresting(node *tree_sitter.Node, source []byte, cfg TreeSitterReplaceConfig) interestingNodeList {
	var walk func(n *tree_sitter.Node) interestingNodeList
	walk = func(n *tree_sitter.Node) interestingNodeList {
		var siblings interestingNodeList
		c := n.Walk()
		defer c.Close()
		if !c.GotoFirstChild() {
			return nil
		}
		for {
			child := c.Node()
			if repl, ok := matchNode(child, source, cfg); ok {
				children := walk(child)
				siblings = append(siblings, &interestingNode{
					Range:       byteRange{Start: child.StartByte(), End: child.EndByte()},
					Replacement: repl,
					Children:    children,
				})
			} else {
				siblings = append(siblings, walk(child)...)
			}
			if !c.GotoNextSibling() {
				break
			}
		}
		return siblings
	}

	return walk(node)
}

func matchNode(n *tree_sitter.Node, source []byte, cfg TreeSitterReplaceConfig) ([]byte, bool) {
	repl, ok := cfg.Matcher(source, n)
	if !ok {
		return nil, false
	}
	if cfg.TryMatchAllNodes {
		return repl, true
	}
	own := source[n.StartByte():n.EndByte()]
	if isPureWhitespace(own) {
		return nil, false
	}
	if len(repl) > 0 && bytes.Contains(repl, own) {
		return nil, false
	}
	return repl, true
}

func isPureWhitespace(b []byte) bool {
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
		b = b[size:]
	}
	return true
}

// dichotomyAttempts runs spec.md §4.3 step 4's dichotomy loop: starting
// from the full InterestingNodeList, repeatedly halve the "aim" byte
// budget and peel nodes from a random end until under budget, pushing
// each distinct, strictly-smaller attempt.
func dichotomyAttempts(top interestingNodeList, rng *rand.Rand) []interestingNodeList {
	cur := top.totalBytes()
	if cur == 0 {
		return nil
	}

	attempts := []interestingNodeList{top.clone()}
	aim := cur

	for {
		aim = aim / 2
		if aim == 0 {
			break
		}

		clone := attempts[len(attempts)-1].clone()
		removedThisRound := uint(0)

		for aim*4/3 < cur {
			lo := (cur - aim + 1) / 2
			hi := cur - aim + 1
			if hi <= lo {
				break
			}
			want := lo + uint(rng.Intn(int(hi-lo)))

			var removed uint
			if rng.Intn(2) == 0 {
				clone, removed = tryRemoveFront(clone, want)
			} else {
				clone, removed = tryRemoveBack(clone, want)
			}
			if removed == 0 {
				break
			}
			cur -= removed
			removedThisRound += removed
		}

		if removedThisRound > 0 {
			attempts = append(attempts, clone)
		} else {
			break
		}
	}

	return attempts
}

// tryRemoveFront peels whole nodes from the front of list until the
// next node would exceed want, then opens that node (recursing into
// its children) to continue peeling. Returns the updated list and the
// number of bytes actually removed.
func tryRemoveFront(list interestingNodeList, want uint) (interestingNodeList, uint) {
	var removed uint
	for len(list) > 0 && removed < want {
		head := list[0]
		if head.Range.size() <= want-removed {
			removed += head.Range.size()
			list = list[1:]
			continue
		}
		// open head: account for its own bytes, recurse into children
		own := head.ownBytes()
		remaining := want - removed
		if own > 0 && own <= remaining {
			removed += own
			remaining -= own
		}
		newChildren, childRemoved := tryRemoveFront(head.Children, remaining)
		removed += childRemoved
		if len(newChildren) == 0 && own == 0 {
			list = list[1:]
			continue
		}
		updated := *head
		updated.Children = newChildren
		out := make(interestingNodeList, 0, len(list))
		out = append(out, &updated)
		out = append(out, list[1:]...)
		list = out
		break
	}
	return list, removed
}

// tryRemoveBack is tryRemoveFront's mirror image, peeling from the end
// of the list.
func tryRemoveBack(list interestingNodeList, want uint) (interestingNodeList, uint) {
	var removed uint
	for len(list) > 0 && removed < want {
		idx := len(list) - 1
		tail := list[idx]
		if tail.Range.size() <= want-removed {
			removed += tail.Range.size()
			list = list[:idx]
			continue
		}
		own := tail.ownBytes()
		remaining := want - removed
		if own > 0 && own <= remaining {
			removed += own
			remaining -= own
		}
		newChildren, childRemoved := tryRemoveBack(tail.Children, remaining)
		removed += childRemoved
		if len(newChildren) == 0 && own == 0 {
			list = list[:idx]
			continue
		}
		updated := *tail
		updated.Children = newChildren
		out := make(interestingNodeList, 0, len(list))
		out = append(out, list[:idx]...)
		out = append(out, &updated)
		list = out
		break
	}
	return list, removed
}

func attemptNodeReplace(ctx context.Context, workdir string, test reduce.Test, edits []edit, attemptNumber int, job reduce.Job, original []byte, cancel <-chan struct{}) (reduce.JobStatus, error) {
	var out bytes.Buffer
	cursor := uint(0)
	for _, e := range edits {
		if e.Range.Start < cursor {
			continue
		}
		out.Write(original[cursor:e.Range.Start])
		out.Write(e.Replacement)
		cursor = e.Range.End
	}
	out.Write(original[cursor:])

	full := filepath.Join(workdir, job.Path)
	if err := os.WriteFile(full, out.Bytes(), 0o644); err != nil {
		return reduce.JobStatus{}, err
	}

	attemptName := fmt.Sprintf("TreeSitterReplace#%d", attemptNumber)
	verdict, err := test.TestInteresting(ctx, workdir, cancel, attemptName, job.Hash()+uint64(attemptNumber))
	if err != nil {
		_ = os.WriteFile(full, original, 0o644)
		return reduce.JobStatus{}, err
	}

	switch verdict {
	case reduce.InterestingResult:
		return reduce.JobStatus{Kind: reduce.Reduced, Description: fmt.Sprintf("%d structural edits applied", len(edits))}, nil
	case reduce.InterruptedResult:
		_ = os.WriteFile(full, original, 0o644)
		return reduce.JobStatus{Kind: reduce.Interrupted}, nil
	default:
		_ = os.WriteFile(full, original, 0o644)
		return reduce.JobStatus{Kind: reduce.DidNotReduce}, nil
	}
}
