package dto

// GameSummary REST 历史列表中的一局
type GameSummary struct {
	HistoryEntry
	MoveCount int64 `json:"moveCount"`
}

// HistoryPage 分页后的全局历史
type HistoryPage struct {
	Games      []GameSummary `json:"games"`
	Page       int           `json:"page"`
	TotalPages int           `json:"totalPages"`
	Total      int64         `json:"total"`
}
