package llm

import "math"

const (
	minTokensCap = 1
	maxTokensCap = 8192
)

func clampTemperature(temp float64) float64 {
	if math.IsNaN(temp) || math.IsInf(temp, 0) {
		return 0
	}
	rounded := math.Round(temp*100) / 100
	if rounded < 0 {
		return 0
	}
	if rounded > 2 {
		return 2
	}
	return rounded
}

func clampMaxTokens(tokens int) int {
	if tokens <= 0 {
		return 0
	}
	if tokens < minTokensCap {
		return minTokensCap
	}
	if tokens > maxTokensCap {
		return maxTokensCap
	}
	return tokens
}
