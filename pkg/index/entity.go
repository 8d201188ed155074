package index

import (
	"regexp"
	"sort"
)

// Entity extraction v1 is restricted to file-path-like and identifier-like
// tokens (SPEC_FULL.md Ambiguity (c)); person-name detection is left for a
// later iteration.
var (
	filePathPattern   = regexp.MustCompile(`\b[\w.\-]+(?:/[\w.\-]+)+\.\w+\b|\b[\w\-]+\.(?:go|rs|py|js|ts|md|json|yaml|yml|toml)\b`)
	identifierPattern = regexp.MustCompile(`\b[a-zA-Z_][a-zA-Z0-9_]*(?:[A-Z][a-z0-9]*){2,}\b|\b[a-z][a-z0-9]*(?:_[a-z0-9]+){2,}\b`)
)

// ExtractEntities returns the distinct entity keys found in text: file
// paths (containing a `/` or a recognized source-file extension) and
// identifier-like tokens (camelCase or snake_case with >=3 segments).
func ExtractEntities(text string) []string {
	seen := make(map[string]bool)
	var keys []string
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for _, m := range filePathPattern.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range identifierPattern.FindAllString(text, -1) {
		add(m)
	}
	sort.Strings(keys)
	return keys
}

// EntityIndex maps each extracted entity key to a posting list of node ids
// mentioning it, kept sorted by node id (rebuildable, so ordering is
// not load-bearing beyond determinism within a single build).
type EntityIndex struct {
	postings map[string][]uint64
}

func NewEntityIndex() *EntityIndex {
	return &EntityIndex{postings: make(map[string][]uint64)}
}

func (e *EntityIndex) AddNode(id uint64, content string) {
	for _, key := range ExtractEntities(content) {
		list := e.postings[key]
		pos := sort.Search(len(list), func(i int) bool { return list[i] >= id })
		if pos < len(list) && list[pos] == id {
			continue
		}
		list = append(list, 0)
		copy(list[pos+1:], list[pos:])
		list[pos] = id
		e.postings[key] = list
	}
}

func (e *EntityIndex) RemoveNode(id uint64, content string) {
	for _, key := range ExtractEntities(content) {
		list := e.postings[key]
		pos := sort.Search(len(list), func(i int) bool { return list[i] >= id })
		if pos < len(list) && list[pos] == id {
			list = append(list[:pos], list[pos+1:]...)
			if len(list) == 0 {
				delete(e.postings, key)
			} else {
				e.postings[key] = list
			}
		}
	}
}

func (e *EntityIndex) Get(key string) []uint64 { return append([]uint64(nil), e.postings[key]...) }

func (e *EntityIndex) Keys() []string {
	keys := make([]string, 0, len(e.postings))
	for k := range e.postings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
