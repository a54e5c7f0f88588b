package game

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// CriticalCount is the piece count at which a cell explodes.
const CriticalCount = 4

// Cell is one occupied board square.
type Cell struct {
	Owner string `json:"owner"`
	Count int    `json:"count"`
}

// Coord is a (row, col) board coordinate.
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Board is a sparse N x N grid. A missing key is an empty cell.
// Cells never hold a count below 1; a cell that drops to zero is
// removed from the map entirely.
type Board map[int]map[int]Cell

// NewBoard returns an empty board.
func NewBoard() Board {
	return make(Board)
}

// At returns the cell at (r, c) and whether it is occupied.
func (b Board) At(r, c int) (Cell, bool) {
	row, ok := b[r]
	if !ok {
		return Cell{}, false
	}
	cell, ok := row[c]
	return cell, ok
}

// Set places a cell at (r, c), creating the row as needed.
func (b Board) Set(r, c int, cell Cell) {
	row, ok := b[r]
	if !ok {
		row = make(map[int]Cell)
		b[r] = row
	}
	row[c] = cell
}

// Remove empties the cell at (r, c).
func (b Board) Remove(r, c int) {
	row, ok := b[r]
	if !ok {
		return
	}
	delete(row, c)
	if len(row) == 0 {
		delete(b, r)
	}
}

// Clone returns a deep copy of the board.
func (b Board) Clone() Board {
	out := make(Board, len(b))
	for r, row := range b {
		cols := make(map[int]Cell, len(row))
		for c, cell := range row {
			cols[c] = cell
		}
		out[r] = cols
	}
	return out
}

// Neighbors returns the 4-connected neighbors of (r, c) inside an
// n x n board, in up, down, left, right order.
func Neighbors(r, c, n int) []Coord {
	candidates := [4]Coord{
		{r - 1, c}, // up
		{r + 1, c}, // down
		{r, c - 1}, // left
		{r, c + 1}, // right
	}

	valid := make([]Coord, 0, 4)
	for _, nb := range candidates {
		if nb.Row >= 0 && nb.Row < n && nb.Col >= 0 && nb.Col < n {
			valid = append(valid, nb)
		}
	}
	return valid
}

// CriticalCells returns every cell with count >= CriticalCount, sorted
// row-major so broadcast frames are stable. Callers treat the result
// as a set: within one wave, Explode is order-independent.
func (b Board) CriticalCells() []Coord {
	var critical []Coord
	for r, row := range b {
		for c, cell := range row {
			if cell.Count >= CriticalCount {
				critical = append(critical, Coord{r, c})
			}
		}
	}
	sort.Slice(critical, func(i, j int) bool {
		if critical[i].Row != critical[j].Row {
			return critical[i].Row < critical[j].Row
		}
		return critical[i].Col < critical[j].Col
	})
	return critical
}

// Explode detonates the cell at (r, c): it loses CriticalCount pieces
// (emptying if that leaves nothing) and each valid neighbor gains one
// piece and is captured by attacker. No-op if the cell is empty.
func (b Board) Explode(r, c int, attacker string, n int) {
	cell, ok := b.At(r, c)
	if !ok {
		return
	}

	remaining := cell.Count - CriticalCount
	if remaining <= 0 {
		b.Remove(r, c)
	} else {
		cell.Count = remaining
		b.Set(r, c, cell)
	}

	for _, nb := range Neighbors(r, c, n) {
		existing, ok := b.At(nb.Row, nb.Col)
		if !ok {
			b.Set(nb.Row, nb.Col, Cell{Owner: attacker, Count: 1})
			continue
		}
		existing.Count++
		existing.Owner = attacker
		b.Set(nb.Row, nb.Col, existing)
	}
}

// CountPieces returns how many cells the player owns.
func (b Board) CountPieces(owner string) int {
	count := 0
	for _, row := range b {
		for _, cell := range row {
			if cell.Owner == owner {
				count++
			}
		}
	}
	return count
}

// Owners returns the set of distinct owners present on the board.
func (b Board) Owners() map[string]bool {
	owners := make(map[string]bool)
	for _, row := range b {
		for _, cell := range row {
			owners[cell.Owner] = true
		}
	}
	return owners
}

// MarshalJSON encodes the board as a sparse nested object with string
// keys, e.g. {"0":{"3":{"owner":"alice","count":2}}}, so it survives
// JSON object-key round-trips on the wire and in the store.
func (b Board) MarshalJSON() ([]byte, error) {
	out := make(map[string]map[string]Cell, len(b))
	for r, row := range b {
		cols := make(map[string]Cell, len(row))
		for c, cell := range row {
			cols[strconv.Itoa(c)] = cell
		}
		out[strconv.Itoa(r)] = cols
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the string-keyed wire format back into
// integer-keyed form, dropping null and zero-count cells.
func (b *Board) UnmarshalJSON(data []byte) error {
	var raw map[string]map[string]*Cell
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(Board, len(raw))
	for rKey, row := range raw {
		r, err := strconv.Atoi(rKey)
		if err != nil {
			return fmt.Errorf("board row key %q: %w", rKey, err)
		}
		for cKey, cell := range row {
			if cell == nil || cell.Count <= 0 {
				continue
			}
			c, err := strconv.Atoi(cKey)
			if err != nil {
				return fmt.Errorf("board col key %q: %w", cKey, err)
			}
			out.Set(r, c, *cell)
		}
	}
	*b = out
	return nil
}
