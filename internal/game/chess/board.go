package chess

import "strings"

// BoardSize is the number of ranks and files.
const BoardSize = 8

// InitialFEN encodes the standard starting position.
const InitialFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// fenSuffix is the fixed metadata tail appended to every derived encoding.
// Side to move, castling rights, and clocks are carried in session state
// rather than re-derived here.
const fenSuffix = " w KQkq - 0 1"

// initialBoard returns the standard starting arrangement. Row 0 is black's
// back rank (lowercase), row 7 is white's back rank (uppercase). Empty
// squares hold "".
func initialBoard() [][]string {
	board := make([][]string, BoardSize)
	for i := range board {
		board[i] = make([]string, BoardSize)
	}
	back := []string{"r", "n", "b", "q", "k", "b", "n", "r"}
	for col := 0; col < BoardSize; col++ {
		board[0][col] = back[col]
		board[1][col] = "p"
		board[6][col] = "P"
		board[7][col] = strings.ToUpper(back[col])
	}
	return board
}

// DeriveBoard replays a move history from the initial arrangement and
// returns the resulting position. The derivation is a pure function of the
// history: the same input always yields the same board, and the caller owns
// the returned slices.
//
// Tokens that do not name two squares on the board are skipped; the token
// shape is enforced at move acceptance, not here.
func DeriveBoard(history []string) [][]string {
	board := initialBoard()
	for _, token := range history {
		applyToken(board, token)
	}
	return board
}

// applyToken relocates the piece named by a from-square/to-square token,
// overwriting whatever occupies the destination.
func applyToken(board [][]string, token string) {
	if len(token) != MoveTokenLength {
		return
	}
	fromCol, fromRow, ok := square(token[0], token[1])
	if !ok {
		return
	}
	toCol, toRow, ok := square(token[2], token[3])
	if !ok {
		return
	}
	board[toRow][toCol] = board[fromRow][fromCol]
	board[fromRow][fromCol] = ""
}

// square maps algebraic file and rank characters onto board indices.
// Rank 8 is row 0.
func square(file, rank byte) (col, row int, ok bool) {
	if file < 'a' || file > 'h' || rank < '1' || rank > '8' {
		return 0, 0, false
	}
	return int(file - 'a'), BoardSize - int(rank-'0'), true
}

// FEN derives the position encoding for a move history. The piece placement
// field is computed from the replayed board; the remaining fields are the
// fixed suffix.
func FEN(history []string) string {
	board := DeriveBoard(history)
	var b strings.Builder
	for row := 0; row < BoardSize; row++ {
		if row > 0 {
			b.WriteByte('/')
		}
		empty := 0
		for col := 0; col < BoardSize; col++ {
			piece := board[row][col]
			if piece == "" {
				empty++
				continue
			}
			if empty > 0 {
				b.WriteByte(byte('0' + empty))
				empty = 0
			}
			b.WriteString(piece)
		}
		if empty > 0 {
			b.WriteByte(byte('0' + empty))
		}
	}
	b.WriteString(fenSuffix)
	return b.String()
}
