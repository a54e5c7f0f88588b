package game

// BoardSizeFor maps the player count to the board dimension chosen at
// game start: 2 players get 5x5, 3 get 6x6, everything above gets 7x7.
func BoardSizeFor(playerCount int) int {
	switch {
	case playerCount <= 2:
		return 5
	case playerCount == 3:
		return 6
	default:
		return 7
	}
}

// MaxWaves is the safety cap on chain-reaction waves for one move on
// an n x n board. A well-formed game terminates far earlier; hitting
// the cap aborts the game.
func MaxWaves(n int) int {
	return 8 * n * n
}

// DetectEliminated returns the players holding zero cells, in players
// order. Before every player has taken one initial placement
// (moveCount < len(players)) it returns nothing, so a player is not
// declared dead merely for not having placed yet.
func DetectEliminated(b Board, players []string, moveCount int) []string {
	if moveCount < len(players) {
		return nil
	}

	var eliminated []string
	for _, p := range players {
		if b.CountPieces(p) == 0 {
			eliminated = append(eliminated, p)
		}
	}
	return eliminated
}

// ResolveWinner reports whether the game is over: at most one distinct
// owner remains on the board and more than one player is in the game.
// The winner is the sole remaining owner, or fallback (the player who
// just moved) when the board is completely empty.
func ResolveWinner(b Board, players []string, fallback string) (finished bool, winner string) {
	if len(players) <= 1 {
		return false, ""
	}

	owners := b.Owners()
	if len(owners) > 1 {
		return false, ""
	}

	for owner := range owners {
		return true, owner
	}
	return true, fallback
}

// NextTurn returns the next player after mover in rotation order,
// skipping anyone in eliminated. Returns mover itself when no other
// live player exists (the winner check fires before that matters).
func NextTurn(players []string, mover string, eliminated map[string]bool) string {
	idx := 0
	for i, p := range players {
		if p == mover {
			idx = i
			break
		}
	}

	for step := 1; step <= len(players); step++ {
		candidate := players[(idx+step)%len(players)]
		if !eliminated[candidate] {
			return candidate
		}
	}
	return mover
}
