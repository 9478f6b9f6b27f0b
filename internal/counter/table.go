// Package counter holds the cumulative skill count table and its JSON file.
package counter

import (
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/starford/skilltally/internal/models"
)

// Table maps skill names to occurrence counts. Insertion order is kept so
// that equal counts sort in their original order.
type Table struct {
	m *orderedmap.OrderedMap[string, int]
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{m: orderedmap.New[string, int]()}
}

// Get returns the count for name, zero when absent.
func (t *Table) Get(name string) int {
	n, _ := t.m.Get(name)
	return n
}

// Has reports whether name is present.
func (t *Table) Has(name string) bool {
	_, ok := t.m.Get(name)
	return ok
}

// Add increments name by n, appending it when new.
func (t *Table) Add(name string, n int) {
	cur, _ := t.m.Get(name)
	t.m.Set(name, cur+n)
}

// Len returns the number of distinct skills.
func (t *Table) Len() int {
	return t.m.Len()
}

// Total returns the sum of all counts.
func (t *Table) Total() int {
	total := 0
	for p := t.m.Oldest(); p != nil; p = p.Next() {
		total += p.Value
	}
	return total
}

// Merge adds every entry of other into t.
func (t *Table) Merge(other *Table) {
	if other == nil {
		return
	}
	for p := other.m.Oldest(); p != nil; p = p.Next() {
		t.Add(p.Key, p.Value)
	}
}

// Entries returns the entries in insertion order.
func (t *Table) Entries() []models.SkillCount {
	out := make([]models.SkillCount, 0, t.m.Len())
	for p := t.m.Oldest(); p != nil; p = p.Next() {
		out = append(out, models.SkillCount{Name: p.Key, Count: p.Value})
	}
	return out
}

// Sorted returns the entries by count descending; ties keep insertion order.
func (t *Table) Sorted() []models.SkillCount {
	out := t.Entries()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}

// Map returns a plain copy of the table.
func (t *Table) Map() map[string]int {
	out := make(map[string]int, t.m.Len())
	for p := t.m.Oldest(); p != nil; p = p.Next() {
		out[p.Key] = p.Value
	}
	return out
}

// Top returns at most n entries of Sorted. n <= 0 returns all of them.
func Top(entries []models.SkillCount, n int) []models.SkillCount {
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[:n]
}
