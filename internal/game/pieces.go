package game

// Cell is a filled position inside a piece form, offset from the form's
// top-left corner.
type Cell struct {
	Col int
	Row int
}

// Form is one rotation of a piece, normalized so the minimum column and row
// offsets are zero.
type Form struct {
	Cells  []Cell
	Width  int
	Height int
}

// Piece is a tetromino with its distinct rotation forms. Symmetric pieces
// carry only their unique forms, so the placement search never enumerates a
// duplicate orientation.
type Piece struct {
	Name  string
	Forms []Form
}

func form(cells ...Cell) Form {
	width, height := 0, 0
	for _, c := range cells {
		if c.Col+1 > width {
			width = c.Col + 1
		}
		if c.Row+1 > height {
			height = c.Row + 1
		}
	}
	return Form{Cells: cells, Width: width, Height: height}
}

// Pieces is the standard 7-piece set.
var Pieces = []Piece{
	{Name: "I", Forms: []Form{
		form(Cell{0, 0}, Cell{1, 0}, Cell{2, 0}, Cell{3, 0}),
		form(Cell{0, 0}, Cell{0, 1}, Cell{0, 2}, Cell{0, 3}),
	}},
	{Name: "O", Forms: []Form{
		form(Cell{0, 0}, Cell{1, 0}, Cell{0, 1}, Cell{1, 1}),
	}},
	{Name: "T", Forms: []Form{
		form(Cell{0, 0}, Cell{1, 0}, Cell{2, 0}, Cell{1, 1}),
		form(Cell{1, 0}, Cell{0, 1}, Cell{1, 1}, Cell{1, 2}),
		form(Cell{1, 0}, Cell{0, 1}, Cell{1, 1}, Cell{2, 1}),
		form(Cell{0, 0}, Cell{0, 1}, Cell{1, 1}, Cell{0, 2}),
	}},
	{Name: "S", Forms: []Form{
		form(Cell{1, 0}, Cell{2, 0}, Cell{0, 1}, Cell{1, 1}),
		form(Cell{0, 0}, Cell{0, 1}, Cell{1, 1}, Cell{1, 2}),
	}},
	{Name: "Z", Forms: []Form{
		form(Cell{0, 0}, Cell{1, 0}, Cell{1, 1}, Cell{2, 1}),
		form(Cell{1, 0}, Cell{0, 1}, Cell{1, 1}, Cell{0, 2}),
	}},
	{Name: "J", Forms: []Form{
		form(Cell{0, 0}, Cell{0, 1}, Cell{1, 1}, Cell{2, 1}),
		form(Cell{0, 0}, Cell{1, 0}, Cell{0, 1}, Cell{0, 2}),
		form(Cell{0, 0}, Cell{1, 0}, Cell{2, 0}, Cell{2, 1}),
		form(Cell{1, 0}, Cell{1, 1}, Cell{0, 2}, Cell{1, 2}),
	}},
	{Name: "L", Forms: []Form{
		form(Cell{2, 0}, Cell{0, 1}, Cell{1, 1}, Cell{2, 1}),
		form(Cell{0, 0}, Cell{0, 1}, Cell{0, 2}, Cell{1, 2}),
		form(Cell{0, 0}, Cell{1, 0}, Cell{2, 0}, Cell{0, 1}),
		form(Cell{0, 0}, Cell{1, 0}, Cell{1, 1}, Cell{1, 2}),
	}},
}

// PieceByName returns the piece with the given name.
func PieceByName(name string) (Piece, bool) {
	for _, p := range Pieces {
		if p.Name == name {
			return p, true
		}
	}
	return Piece{}, false
}
