package fairness

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"strconv"
)

const twoPow32 = float64(1 << 32)

// DeterministicRNG 基于HMAC-SHA256的可复现随机数生成器
// 第n次抽取 = HMAC(key=seed, msg=十进制n)，n从1开始
// 非并发安全，一个实例只服务一个回合
type DeterministicRNG struct {
	key     []byte
	counter uint64
}

// NewDeterministicRNG 用种子创建生成器
func NewDeterministicRNG(seed string) *DeterministicRNG {
	return &DeterministicRNG{key: []byte(seed)}
}

// Next 返回[0,1)区间的下一个数
func (r *DeterministicRNG) Next() float64 {
	r.counter++
	mac := hmac.New(sha256.New, r.key)
	mac.Write([]byte(strconv.FormatUint(r.counter, 10)))
	digest := mac.Sum(nil)
	return float64(binary.BigEndian.Uint32(digest[:4])) / twoPow32
}

// NextInt 返回[min,max)区间的整数
func (r *DeterministicRNG) NextInt(min, max int) int {
	if max <= min {
		return min
	}
	return min + int(r.Next()*float64(max-min))
}

// Draws 已消耗的抽取次数
func (r *DeterministicRNG) Draws() int {
	return int(r.counter)
}
