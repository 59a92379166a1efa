package replacement

import "github.com/ooosim/coretrace/channel"

const maxRRPV = 3

// SRRIP is the static re-reference interval prediction policy, grounded on
// replacement/srrip/srrip.h.
type SRRIP struct {
	numWay int
	rrpv   []int
}

// NewSRRIP builds an SRRIP replacer for a cache of the given geometry.
func NewSRRIP(numSet, numWay int) *SRRIP {
	rrpv := make([]int, numSet*numWay)
	for i := range rrpv {
		rrpv[i] = maxRRPV - 1
	}
	return &SRRIP{numWay: numWay, rrpv: rrpv}
}

func (s *SRRIP) Initialize() {}

func (s *SRRIP) FindVictim(_ uint32, _ uint64, set int, _ []BlockView, _, _ uint64, _ channel.AccessType) int {
	begin := set * s.numWay
	for {
		for way := 0; way < s.numWay; way++ {
			if s.rrpv[begin+way] == maxRRPV {
				return way
			}
		}
		for way := 0; way < s.numWay; way++ {
			s.rrpv[begin+way]++
		}
	}
}

func (s *SRRIP) Update(_ uint32, set, way int, _, _, _ uint64, _ channel.AccessType, hit bool) {
	idx := set*s.numWay + way
	if hit {
		s.rrpv[idx] = 0
		return
	}
	s.rrpv[idx] = maxRRPV - 1
}

func (s *SRRIP) FinalStats() {}
