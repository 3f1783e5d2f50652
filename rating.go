package main

import "math"

// Elo-style rating adjustment. The winner gains computeDelta points and the
// loser drops by the same amount, keeping the total rating pool constant.

const ratingKFactor = 32

// computeDelta returns the rating adjustment for a decisive outcome. The
// logistic expected score makes upsets worth more than expected wins; the
// result is floored at 1 so a win is never worthless.
func computeDelta(winnerRating, loserRating int) int {
	expected := 1 / (1 + math.Pow(10, float64(loserRating-winnerRating)/400))
	delta := int(math.Round(ratingKFactor * (1 - expected)))
	if delta < 1 {
		return 1
	}
	return delta
}

// Rank is a display title granted at a rating threshold.
type Rank struct {
	Title     string `json:"title"`
	Icon      string `json:"icon"`
	MinRating int    `json:"min_rating"`
}

// Ordered highest threshold first; rankFor takes the first match.
var ranks = []Rank{
	{Title: "Cinematic Genius", Icon: "👑", MinRating: 2500},
	{Title: "Hollywood Strategist", Icon: "🏆", MinRating: 2000},
	{Title: "Six Degrees Master", Icon: "🦸", MinRating: 1600},
	{Title: "Script Analyst", Icon: "🧠", MinRating: 1200},
	{Title: "Scene Seeker", Icon: "🎥", MinRating: 800},
	{Title: "Film Enthusiast", Icon: "🍿", MinRating: 400},
	{Title: "Movie Intern", Icon: "🎬", MinRating: 100},
}

func rankFor(rating int) Rank {
	for _, r := range ranks {
		if rating >= r.MinRating {
			return r
		}
	}
	return ranks[len(ranks)-1]
}
