package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDeltaEvenMatch(t *testing.T) {
	// Equal ratings: expected score 0.5, so the winner takes half of K.
	delta := computeDelta(1000, 1000)
	require.Equal(t, 16, delta)
}

func TestComputeDeltaSymmetry(t *testing.T) {
	cases := []struct {
		winner int
		loser  int
	}{
		{1000, 1000},
		{1200, 800},
		{800, 1200},
		{2500, 100},
		{100, 2500},
	}

	for _, tc := range cases {
		delta := computeDelta(tc.winner, tc.loser)
		newWinner := tc.winner + delta
		newLoser := tc.loser - delta
		assert.Equal(t, newWinner-tc.winner, -(newLoser - tc.loser),
			"winner %d vs loser %d", tc.winner, tc.loser)
	}
}

func TestComputeDeltaUpsetPaysMore(t *testing.T) {
	upset := computeDelta(1000, 1400)
	expected := computeDelta(1000, 600)
	assert.Greater(t, upset, expected)
}

func TestComputeDeltaMonotonicInOpponent(t *testing.T) {
	prev := computeDelta(1000, 200)
	for loser := 300; loser <= 1800; loser += 100 {
		delta := computeDelta(1000, loser)
		assert.GreaterOrEqual(t, delta, prev, "loser rating %d", loser)
		prev = delta
	}
}

func TestComputeDeltaFloor(t *testing.T) {
	// Beating a vastly weaker opponent rounds to zero; the floor keeps the
	// win worth at least a point.
	delta := computeDelta(3000, 100)
	assert.Equal(t, 1, delta)
}

func TestRankFor(t *testing.T) {
	assert.Equal(t, "Movie Intern", rankFor(0).Title)
	assert.Equal(t, "Movie Intern", rankFor(150).Title)
	assert.Equal(t, "Film Enthusiast", rankFor(400).Title)
	assert.Equal(t, "Script Analyst", rankFor(1200).Title)
	assert.Equal(t, "Six Degrees Master", rankFor(1999).Title)
	assert.Equal(t, "Cinematic Genius", rankFor(2500).Title)
}
