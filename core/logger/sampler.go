package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// sampler lets through num of every den calls. A zero ratio lets everything through.
type sampler struct {
	ratio atomic.Uint64 // num<<32 | den
	n     atomic.Uint64
}

func (s *sampler) set(num, den int) {
	if num <= 0 || den <= 0 {
		s.ratio.Store(0)
		return
	}
	num = min(num, den)
	s.ratio.Store(uint64(num)<<32 | uint64(den))
	s.n.Store(0)
}

func (s *sampler) allow() bool {
	r := s.ratio.Load()
	if r == 0 {
		return true
	}
	num, den := r>>32, r&0xffffffff
	return (s.n.Add(1)-1)%den < num
}

// parseRatio reads "1/50" or "50" (meaning 1/50). Invalid input yields 0, 0.
func parseRatio(ratio string) (int, int) {
	ratio = strings.TrimSpace(ratio)
	if a, b, ok := strings.Cut(ratio, "/"); ok {
		num, err1 := strconv.Atoi(strings.TrimSpace(a))
		den, err2 := strconv.Atoi(strings.TrimSpace(b))
		if err1 != nil || err2 != nil {
			return 0, 0
		}
		return num, den
	}
	if v, err := strconv.Atoi(ratio); err == nil && v > 0 {
		return 1, v
	}
	return 0, 0
}
