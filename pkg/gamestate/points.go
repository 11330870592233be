package gamestate

// PointsDivisor converts raw score into points.
const PointsDivisor = 10000

// Points derives the points value for a score. Scores below zero clamp
// to zero points.
func Points(score int64) int64 {
	if score < 0 {
		return 0
	}
	return score / PointsDivisor
}
