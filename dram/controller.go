package dram

// Controller fans a single memory-side channel.Channel traffic stream
// out across per-channel DRAM_CHANNEL instances by address mapping,
// grounded on MEMORY_CONTROLLER's channel dispatch in
// src/dram_controller.cc (dram_get_channel and friends).
type Controller struct {
	geom     Geometry
	channels []*Channel
}

// NewController builds a controller over already-constructed per-channel
// Channel instances; geom must match the geometry every Channel was
// built with.
func NewController(geom Geometry, channels []*Channel) *Controller {
	return &Controller{geom: geom, channels: channels}
}

// ChannelFor returns the DRAM channel that owns address.
func (c *Controller) ChannelFor(address uint64) *Channel {
	return c.channels[c.geom.Channel(address)]
}

// Operate advances every channel by one cycle.
func (c *Controller) Operate() {
	for _, ch := range c.channels {
		ch.Operate()
	}
}
