// Package elo 是整个项目中唯一的评分算法实现。
// 所有需要更新ELO分数的调用方都必须经过这里，不允许在别处复制公式。
package elo

import "math"

const (
	// KFactor 是固定的K值，对所有meme一视同仁。
	// 不根据场次、分段或新手期调整K值，这是有意的简化。
	KFactor = 32

	// DefaultRating 是新meme的初始分数
	DefaultRating = 1500

	// ratingScale 是逻辑曲线的尺度参数
	ratingScale = 400.0
)

// ExpectedScore 返回分数为rating的一方对阵opponent时的期望胜率。
// E = 1 / (1 + 10^((opponent - rating) / 400))
func ExpectedScore(rating, opponent int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(opponent-rating)/ratingScale))
}

// Change 返回一场对决中胜者获得（同时也是败者失去）的未取整分数。
// K * (1 - E胜) 与 K * E败 相等，因此两边只计算一次。
func Change(winnerRating, loserRating int) float64 {
	expectedWinner := ExpectedScore(winnerRating, loserRating)
	expectedLoser := 1 - expectedWinner
	return KFactor * expectedLoser
}

// Update 计算对决后胜者与败者的新分数。
// 两边各自四舍五入（远离零），所以两者之和可能与原先相差±1。
func Update(winnerRating, loserRating int) (newWinnerRating, newLoserRating int) {
	delta := Change(winnerRating, loserRating)
	newWinnerRating = int(math.Round(float64(winnerRating) + delta))
	newLoserRating = int(math.Round(float64(loserRating) - delta))
	return
}
