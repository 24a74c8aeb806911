package domain

// TurnSeconds 每回合倒计时的初始值（仅供客户端显示）
const TurnSeconds = 60

// 棋局结果。X/O 之外的取值
const (
	WinnerDraw    = "Draw"
	WinnerReset   = "Reset"
	WinnerAborted = "Aborted"
)

// GameStatus 棋局状态机的状态
type GameStatus string

const (
	StatusNotStarted GameStatus = "NotStarted"
	StatusInProgress GameStatus = "InProgress"
	StatusWon        GameStatus = "Won"
	StatusDrawn      GameStatus = "Drawn"
)

// MoveOutcome 一步棋之后的结果
type MoveOutcome int

const (
	OutcomeContinue MoveOutcome = iota
	OutcomeWin
	OutcomeDraw
)

// GameState 房间内的一局棋。零值不可用，使用 NewGameState。
type GameState struct {
	Started     bool   `json:"started"`
	CurrentTurn Symbol `json:"currentTurn"`
	Board       Board  `json:"board"`
	TimeBudget  int    `json:"timeBudget"`
	Winner      string `json:"winner"`
}

// NewGameState 返回初始状态
func NewGameState() GameState {
	return GameState{
		CurrentTurn: SymbolX,
		TimeBudget:  TurnSeconds,
	}
}

// Status 由字段推导当前状态
func (g *GameState) Status() GameStatus {
	switch {
	case !g.Started:
		return StatusNotStarted
	case g.Winner == WinnerDraw:
		return StatusDrawn
	case g.Winner != "":
		return StatusWon
	default:
		return StatusInProgress
	}
}

// Start 只能从 NotStarted 进入 InProgress
func (g *GameState) Start() error {
	if g.Status() != StatusNotStarted {
		return ErrGameAlreadyStarted
	}
	g.Started = true
	g.CurrentTurn = SymbolX
	g.TimeBudget = TurnSeconds
	g.Winner = ""
	return nil
}

// Move 校验并应用一步棋。先判胜再判和；否则换手并重置倒计时。
func (g *GameState) Move(symbol Symbol, row, col int) (MoveOutcome, error) {
	if !g.Started {
		return OutcomeContinue, ErrGameNotStarted
	}
	if g.Winner != "" {
		return OutcomeContinue, ErrGameAlreadyEnded
	}
	if symbol != g.CurrentTurn {
		return OutcomeContinue, ErrNotYourTurn
	}
	if err := g.Board.ApplyMove(row, col, symbol); err != nil {
		return OutcomeContinue, err
	}
	if g.Board.CheckWin(row, col, symbol.Cell()) {
		g.Winner = string(symbol)
		return OutcomeWin, nil
	}
	if g.Board.IsFull() {
		g.Winner = WinnerDraw
		return OutcomeDraw, nil
	}
	g.CurrentTurn = symbol.Opponent()
	g.TimeBudget = TurnSeconds
	return OutcomeContinue, nil
}

// Reset 回到初始状态，任何状态下均可调用
func (g *GameState) Reset() {
	*g = NewGameState()
}
