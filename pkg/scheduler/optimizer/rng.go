package optimizer

import (
	"math/rand"
	"time"
)

// RNG 随机源，测试可注入固定序列
type RNG interface {
	// Intn 返回 [0,n) 内的整数
	Intn(n int) int
	// Float64 返回 [0,1) 内的浮点数
	Float64() float64
}

// NewRNG 由种子创建可复现的随机源
func NewRNG(seed uint64) RNG {
	return rand.New(rand.NewSource(int64(seed)))
}

// TimeSeed 生产环境默认种子
func TimeSeed() uint64 {
	return uint64(time.Now().UnixNano())
}
