package layout

import (
	"github.com/utafrali/mediafeed/internal/domain"
)

// DefaultColumnCount is the number of grid columns used when none is configured.
const DefaultColumnCount = 3

// HeightFunc returns the rendered height of an item.
type HeightFunc func(item *domain.MediaItem) float64

// Columns holds, per column, the items placed in it in placement order. The
// items are shared with the caller's list, not copied.
type Columns [][]*domain.MediaItem

// Len returns the total number of placed items.
func (c Columns) Len() int {
	n := 0
	for _, col := range c {
		n += len(col)
	}
	return n
}

// Balancer distributes items over a fixed number of columns with a greedy
// shortest-column-first rule. It is stateless; every call recomputes the full
// assignment, so the result only depends on the input order.
type Balancer struct {
	columns int
	height  HeightFunc
}

// NewBalancer creates a balancer for the given column count. Values below one
// fall back to DefaultColumnCount. A nil height function measures items with
// MediaItem.ContentHeight at domain.DefaultViewportWidth.
func NewBalancer(columns int, height HeightFunc) *Balancer {
	if columns < 1 {
		columns = DefaultColumnCount
	}
	if height == nil {
		height = ViewportHeight(domain.DefaultViewportWidth)
	}
	return &Balancer{columns: columns, height: height}
}

// ViewportHeight measures items by their content height at the given width.
func ViewportHeight(viewportWidth float64) HeightFunc {
	return func(item *domain.MediaItem) float64 {
		return item.ContentHeight(viewportWidth)
	}
}

// ColumnCount returns the number of columns produced by Balance.
func (b *Balancer) ColumnCount() int {
	return b.columns
}

// Balance places every item, in order, into the column with the strictly
// smallest accumulated height, the lowest index winning ties. An empty input
// yields ColumnCount empty columns.
func (b *Balancer) Balance(items []*domain.MediaItem) Columns {
	cols := make(Columns, b.columns)
	for i := range cols {
		cols[i] = make([]*domain.MediaItem, 0, len(items)/b.columns+1)
	}
	heights := make([]float64, b.columns)

	for _, item := range items {
		shortest := 0
		for i := 1; i < len(heights); i++ {
			if heights[i] < heights[shortest] {
				shortest = i
			}
		}
		cols[shortest] = append(cols[shortest], item)
		heights[shortest] += b.height(item)
	}

	return cols
}
