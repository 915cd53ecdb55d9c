package chess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDeriveBoardInitialArrangement(t *testing.T) {
	board := DeriveBoard(nil)

	require.Len(t, board, BoardSize)
	for _, row := range board {
		require.Len(t, row, BoardSize)
	}

	assert.Equal(t, []string{"r", "n", "b", "q", "k", "b", "n", "r"}, board[0])
	assert.Equal(t, []string{"R", "N", "B", "Q", "K", "B", "N", "R"}, board[7])
	for col := 0; col < BoardSize; col++ {
		assert.Equal(t, "p", board[1][col])
		assert.Equal(t, "P", board[6][col])
	}
	for row := 2; row <= 5; row++ {
		for col := 0; col < BoardSize; col++ {
			assert.Empty(t, board[row][col])
		}
	}
}

func TestDeriveBoardRelocatesPiece(t *testing.T) {
	board := DeriveBoard([]string{"e2e4"})

	// e2 is row 6 col 4, e4 is row 4 col 4.
	assert.Empty(t, board[6][4])
	assert.Equal(t, "P", board[4][4])
}

func TestDeriveBoardCaptureOverwrites(t *testing.T) {
	board := DeriveBoard([]string{"e2e4", "d7d5", "e4d5"})

	assert.Equal(t, "P", board[3][3])
	assert.Empty(t, board[4][4])
	assert.Empty(t, board[1][3])
}

func TestDeriveBoardSkipsOutOfRangeTokens(t *testing.T) {
	board := DeriveBoard([]string{"z9a1", "e2i4", "e2e9", "e2"})
	assert.Equal(t, DeriveBoard(nil), board)
}

func TestFENInitialPosition(t *testing.T) {
	assert.Equal(t, InitialFEN, FEN(nil))
}

func TestFENAfterOpeningMoves(t *testing.T) {
	fen := FEN([]string{"e2e4"})
	assert.Equal(t, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 1", fen)

	fen = FEN([]string{"e2e4", "c7c5"})
	assert.Equal(t, "rnbqkbnr/pp1ppppp/8/2p5/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 1", fen)
}

func TestPropertyDeriveBoardIsPure(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		history := rapid.SliceOfN(
			rapid.StringMatching(`[a-h][1-8][a-h][1-8]`), 0, 30,
		).Draw(t, "history")

		first := DeriveBoard(history)
		second := DeriveBoard(history)
		require.Equal(t, first, second)

		// Mutating the returned board must not leak into later derivations.
		first[0][0] = "X"
		require.Equal(t, second, DeriveBoard(history))
	})
}

func TestPropertyFENHasEightRanksAndSuffix(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		history := rapid.SliceOfN(
			rapid.StringMatching(`[a-h][1-8][a-h][1-8]`), 0, 30,
		).Draw(t, "history")

		fen := FEN(history)
		require.Regexp(t, `^([rnbqkpRNBQKP1-8]+/){7}[rnbqkpRNBQKP1-8]+ w KQkq - 0 1$`, fen)
	})
}

func TestPropertyPieceCountNeverGrows(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		history := rapid.SliceOfN(
			rapid.StringMatching(`[a-h][1-8][a-h][1-8]`), 0, 30,
		).Draw(t, "history")

		count := 0
		for _, row := range DeriveBoard(history) {
			for _, piece := range row {
				if piece != "" {
					count++
				}
			}
		}
		require.LessOrEqual(t, count, 32)
	})
}
