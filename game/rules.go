package game

import "time"

// Rules 一局比赛的几何与调参常量
type Rules struct {
	CanvasWidth  float64
	CanvasHeight float64
	PaddleOffset float64 // 球拍距左右边缘的距离
	PaddleWidth  float64
	PaddleHeight float64
	PaddleSpeed  float64 // 像素/秒
	BallRadius   float64
	BallMaxSpeed float64
	LaunchSpeed  float64
	HitSpeedup   float64 // 击球后水平速度放大倍数，必须 > 1
	Spin         float64 // 偏离球拍中心时附加的纵向速度
	WinningScore int
	TickRate     int // 每秒 Tick 数
}

// DefaultRules 800x600 画布，先得 5 分获胜，60 TPS
func DefaultRules() Rules {
	return Rules{
		CanvasWidth:  800,
		CanvasHeight: 600,
		PaddleOffset: 30,
		PaddleWidth:  20,
		PaddleHeight: 100,
		PaddleSpeed:  400,
		BallRadius:   10,
		BallMaxSpeed: 600,
		LaunchSpeed:  300,
		HitSpeedup:   1.05,
		Spin:         100,
		WinningScore: 5,
		TickRate:     60,
	}
}

// FramePeriod 名义帧间隔
func (r Rules) FramePeriod() time.Duration {
	return time.Second / time.Duration(r.TickRate)
}

// maxStep dt 上限：两倍名义帧间隔，防止卡顿后穿透
func (r Rules) maxStep() float64 {
	return 2 / float64(r.TickRate)
}
