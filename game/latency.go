package game

// LatencySamples 每个玩家保留的延迟样本上限
const LatencySamples = 20

// LatencyWindow 固定容量的环形缓冲区，写入 O(1)，满时覆盖最旧样本
type LatencyWindow struct {
	samples [LatencySamples]float64
	next    int
	count   int
	sum     float64
}

// Push 追加一个样本，超过容量时淘汰最旧的样本
func (w *LatencyWindow) Push(ms float64) {
	if w.count == LatencySamples {
		w.sum -= w.samples[w.next]
	} else {
		w.count++
	}
	w.samples[w.next] = ms
	w.sum += ms
	w.next = (w.next + 1) % LatencySamples
	// 每绕一圈重新求和，消除增量更新累积的浮点误差
	if w.next == 0 {
		w.resum()
	}
}

func (w *LatencyWindow) resum() {
	w.sum = 0
	for i := 0; i < w.count; i++ {
		w.sum += w.samples[i]
	}
}

// Len 当前样本数
func (w *LatencyWindow) Len() int { return w.count }

// Mean 滚动平均值
func (w *LatencyWindow) Mean() float64 {
	if w.count == 0 {
		return 0
	}
	return w.sum / float64(w.count)
}

// Samples 按写入顺序（旧 → 新）返回样本副本
func (w *LatencyWindow) Samples() []float64 {
	out := make([]float64, 0, w.count)
	start := (w.next - w.count + LatencySamples) % LatencySamples
	for i := 0; i < w.count; i++ {
		out = append(out, w.samples[(start+i)%LatencySamples])
	}
	return out
}
