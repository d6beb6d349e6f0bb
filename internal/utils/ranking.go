package utils

import (
	"math"
	"time"
)

type RankConfig struct {
	Gravity       float64
	WeightLike    float64
	WeightComment float64
	WeightView    float64
	ScaleFactor   float64
}

var DefaultRankConfig = RankConfig{
	Gravity:       1.5,
	WeightLike:    1.0,
	WeightComment: 2.0,
	WeightView:    0.01,
	ScaleFactor:   100.0, // keeps fresh scores roughly in 0-100
}

// CalculateScore is a log-smoothed engagement sum with a time decay.
func CalculateScore(publishedAt, now time.Time, likes, views, comments int) float64 {
	hours := now.Sub(publishedAt).Hours()
	if hours < 0 {
		hours = 0
	}

	weightedSum := float64(likes)*DefaultRankConfig.WeightLike +
		float64(comments)*DefaultRankConfig.WeightComment +
		float64(views)*DefaultRankConfig.WeightView

	if weightedSum < 0 {
		weightedSum = 0
	}

	// log10(sum + 1) keeps an unengaged post at 0
	numerator := math.Log10(weightedSum+1) * DefaultRankConfig.ScaleFactor

	decay := math.Pow(hours+2, DefaultRankConfig.Gravity)

	return numerator / decay
}
