package harness

import (
	"github.com/ooosim/coretrace/channel"
	"github.com/ooosim/coretrace/ptw"
)

// ptwService drains a translation-request channel into a walker and
// relays completed page-table-page reads back in, standing in for the
// direct method coupling cache.Controller has with its own lower level:
// ptw.Walker has no channel of its own to read requests from, since
// nothing besides this harness ever drove it before.
type ptwService struct {
	walker   *ptw.Walker
	requests *channel.Channel // translateLink: RQ carries HandleRead input, Returned carries completions
	pageMem  *channel.Channel // ptwMemLink: page-table-page reads/fills
}

func newPTWService(walker *ptw.Walker, requests, pageMem *channel.Channel) *ptwService {
	return &ptwService{walker: walker, requests: requests, pageMem: pageMem}
}

// Operate feeds page-table-page fills in, starts as many new walks as the
// walker's MSHR has room for, and lets the walker deliver whatever
// completed, in that fill-then-read-then-deliver order.
func (s *ptwService) Operate(now uint64, warmup bool) {
	for _, resp := range s.pageMem.PopReturned() {
		s.walker.HandleFill(now, resp, warmup)
	}

	kept := s.requests.RQ[:0]
	for _, req := range s.requests.RQ {
		if s.walker.CanAcceptRead() && s.walker.HandleRead(req, s.requests) {
			continue
		}
		kept = append(kept, req)
	}
	s.requests.RQ = kept

	s.walker.Operate(now)
}
