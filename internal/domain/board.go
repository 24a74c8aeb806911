package domain

// 棋盘尺寸与胜利条件
const (
	BoardSize = 20
	WinLength = 5
)

// Cell 是棋盘格子的取值：0 空，1 X，2 O
type Cell int

const (
	CellEmpty Cell = iota
	CellX
	CellO
)

// Symbol 玩家的棋子标记
type Symbol string

const (
	SymbolX Symbol = "X"
	SymbolO Symbol = "O"
)

// Cell 返回棋子对应的格子值
func (s Symbol) Cell() Cell {
	switch s {
	case SymbolX:
		return CellX
	case SymbolO:
		return CellO
	default:
		return CellEmpty
	}
}

// Opponent 返回对手的棋子
func (s Symbol) Opponent() Symbol {
	if s == SymbolX {
		return SymbolO
	}
	return SymbolX
}

// Board 是 20x20 的棋盘，按 [row][col] 索引。
// 序列化为 JSON 时是二维数字数组，客户端直接渲染。
type Board [BoardSize][BoardSize]Cell

// 四个方向：横、竖、主对角线、副对角线
var axes = [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}

// InBounds 判断坐标是否在棋盘内
func InBounds(row, col int) bool {
	return row >= 0 && row < BoardSize && col >= 0 && col < BoardSize
}

// ApplyMove 在 (row, col) 落子。越界返回 ErrOutOfBounds，已有棋子返回 ErrCellOccupied，
// 失败时棋盘不变。
func (b *Board) ApplyMove(row, col int, symbol Symbol) error {
	if !InBounds(row, col) {
		return ErrOutOfBounds
	}
	if b[row][col] != CellEmpty {
		return ErrCellOccupied
	}
	b[row][col] = symbol.Cell()
	return nil
}

// CheckWin 判断以 (row, col) 为锚点、值为 cell 的连子是否达到 WinLength。
// 每个方向分别向两侧计数，再加上锚点本身。
func (b *Board) CheckWin(row, col int, cell Cell) bool {
	if cell == CellEmpty || !InBounds(row, col) {
		return false
	}
	for _, d := range axes {
		count := 1 + b.run(row, col, d[0], d[1], cell) + b.run(row, col, -d[0], -d[1], cell)
		if count >= WinLength {
			return true
		}
	}
	return false
}

func (b *Board) run(row, col, dr, dc int, cell Cell) int {
	n := 0
	for r, c := row+dr, col+dc; InBounds(r, c) && b[r][c] == cell; r, c = r+dr, c+dc {
		n++
	}
	return n
}

// IsFull 棋盘没有空格时返回 true
func (b *Board) IsFull() bool {
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			if b[r][c] == CellEmpty {
				return false
			}
		}
	}
	return true
}
