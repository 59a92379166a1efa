package harness

import (
	"github.com/ooosim/coretrace/channel"
	"github.com/ooosim/coretrace/dram"
)

// memRouter fans a single memory-side channel out across the DRAM
// channels a dram.Controller maps addresses to. ChampSim's own
// MEMORY_CONTROLLER owns one channel.Channel per DRAM_CHANNEL directly;
// this repo's dram.Channel keeps that same one-Queue-per-channel shape,
// so routing a single upstream link across N of them is this router's
// job rather than dram.Controller's.
type memRouter struct {
	link     *channel.Channel
	ctrl     *dram.Controller
	channels []*dram.Channel
}

func newMemRouter(link *channel.Channel, ctrl *dram.Controller, channels []*dram.Channel) *memRouter {
	return &memRouter{link: link, ctrl: ctrl, channels: channels}
}

// Operate pushes every pending request on the shared link into its
// mapped DRAM channel's own queue, advances every channel by one cycle,
// and relays every response a DRAM channel produced back onto the
// shared link.
func (m *memRouter) Operate() {
	route := func(queue *[]channel.Request, add func(*dram.Channel, channel.Request) bool) {
		kept := (*queue)[:0]
		for _, req := range *queue {
			if add(m.ctrl.ChannelFor(req.Address), req) {
				continue
			}
			kept = append(kept, req)
		}
		*queue = kept
	}

	route(&m.link.RQ, func(ch *dram.Channel, req channel.Request) bool { return ch.Queue.AddRQ(req) })
	route(&m.link.PQ, func(ch *dram.Channel, req channel.Request) bool { return ch.Queue.AddPQ(req) })
	route(&m.link.WQ, func(ch *dram.Channel, req channel.Request) bool { return ch.Queue.AddWQ(req) })

	m.ctrl.Operate()

	for _, ch := range m.channels {
		for _, resp := range ch.Queue.PopReturned() {
			m.link.Deliver(resp)
		}
	}
}
