package cache

import "github.com/ooosim/coretrace/channel"

// Operate runs one cycle of the controller: finishes returns and
// translations, performs fills, admits new tag checks, issues
// translations for untranslated entries, and runs the ready tag
// checks, grounded on CACHE::operate.
func (c *Controller) Operate(now uint64, warmup bool) {
	c.now = now
	c.warmup = warmup

	for _, resp := range c.lower.PopReturned() {
		c.finishPacket(resp)
	}

	if c.lowerTranslate != nil {
		for _, resp := range c.lowerTranslate.PopReturned() {
			c.finishTranslation(resp)
		}
	}

	c.performFills()
	c.initiateTagChecks()
	c.issueTranslations()
	c.stashUntranslated()
	c.performTagChecks()

	if c.prefetcher != nil {
		c.prefetcher.CycleOperate()
	}
}

func (c *Controller) performFills() {
	fillBW := c.cfg.MaxFill

	kept := c.mshr[:0]
	for _, m := range c.mshr {
		if fillBW > 0 && m.eventCycle != 0 && m.eventCycle <= c.now {
			if c.handleFill(m) {
				fillBW--
				continue
			}
		}
		kept = append(kept, m)
	}
	c.mshr = kept

	keptW := c.inflightWrites[:0]
	for _, w := range c.inflightWrites {
		if fillBW > 0 && w.eventCycle <= c.now {
			m := mshrEntry{req: w.req, cycleEnqueued: w.eventCycle}
			if c.handleFill(m) {
				fillBW--
				continue
			}
		}
		keptW = append(keptW, w)
	}
	c.inflightWrites = keptW
}

func (c *Controller) initiateTagChecks() {
	tagBW := c.cfg.MaxTag

	admit := func(req channel.Request, withReturn bool, prefetchFromThis, skipFill bool) tagLookup {
		cycle := c.now
		if !c.warmup {
			cycle += c.cfg.HitLatency
		}
		entry := tagLookup{req: req, prefetchFromThis: prefetchFromThis, skipFill: skipFill, eventCycle: cycle}
		if withReturn && req.ResponseRequested {
			entry.toReturn = []*channel.Channel{c.upper}
		}
		return entry
	}

	drain := func(queue *[]channel.Request, withReturn bool) {
		kept := (*queue)[:0]
		for _, req := range *queue {
			if tagBW <= 0 {
				kept = append(kept, req)
				continue
			}
			tagBW--
			c.inflightTagCheck = append(c.inflightTagCheck, admit(req, withReturn, false, false))
		}
		*queue = kept
	}

	drain(&c.upper.WQ, true)
	drain(&c.upper.RQ, true)
	drain(&c.upper.PQ, true)

	keptPQ := c.internalPQ[:0]
	for _, pkt := range c.internalPQ {
		if tagBW <= 0 {
			keptPQ = append(keptPQ, pkt)
			continue
		}
		tagBW--
		cycle := c.now
		if !c.warmup {
			cycle += c.cfg.HitLatency
		}
		pkt.eventCycle = cycle
		c.inflightTagCheck = append(c.inflightTagCheck, pkt)
	}
	c.internalPQ = keptPQ
}

// issueTranslations forwards every untranslated tag-check entry to the
// translation channel once, grounded on CACHE::issue_translation.
func (c *Controller) issueTranslations() {
	if c.lowerTranslate == nil {
		return
	}
	for i := range c.inflightTagCheck {
		entry := &c.inflightTagCheck[i]
		if entry.req.IsTranslated || entry.translateIssued {
			continue
		}
		req := channel.Request{
			VAddress:          entry.req.VAddress,
			CPU:                entry.req.CPU,
			ASID:              entry.req.ASID,
			Type:               channel.Translation,
			ResponseRequested:  true,
		}
		if c.lowerTranslate.AddRQ(req) {
			entry.translateIssued = true
		}
	}
}

// finishTranslation marks a matching stashed or in-flight entry
// translated once its virtual-to-physical mapping returns, grounded on
// CACHE::finish_translation.
func (c *Controller) finishTranslation(resp channel.Response) {
	apply := func(entries []tagLookup) {
		for i := range entries {
			if entries[i].req.VAddress == resp.VAddress && !entries[i].req.IsTranslated {
				entries[i].req.Address = resp.Data
				entries[i].req.IsTranslated = true
			}
		}
	}
	apply(c.inflightTagCheck)
	apply(c.translationStash)
}

// stashUntranslated moves entries whose translation is still pending
// past their event_cycle into the stash so they don't occupy the tag
// pipeline slot, grounded on the extract_if call in CACHE::operate.
func (c *Controller) stashUntranslated() {
	kept := c.inflightTagCheck[:0]
	for _, entry := range c.inflightTagCheck {
		if entry.eventCycle < c.now && !entry.req.IsTranslated && entry.translateIssued {
			c.translationStash = append(c.translationStash, entry)
			continue
		}
		kept = append(kept, entry)
	}
	c.inflightTagCheck = kept

	keptStash := c.translationStash[:0]
	for _, entry := range c.translationStash {
		if entry.req.IsTranslated {
			c.inflightTagCheck = append(c.inflightTagCheck, entry)
			continue
		}
		keptStash = append(keptStash, entry)
	}
	c.translationStash = keptStash
}

func (c *Controller) performTagChecks() {
	tagBW := c.cfg.MaxTag
	kept := c.inflightTagCheck[:0]
	for _, pkt := range c.inflightTagCheck {
		if tagBW <= 0 || pkt.eventCycle > c.now || (!pkt.req.IsTranslated && c.lowerTranslate != nil) {
			kept = append(kept, pkt)
			continue
		}
		tagBW--

		if c.tryHit(pkt) {
			continue
		}
		if pkt.req.Type == channel.Write && !c.cfg.MatchOffsetBits {
			c.handleWrite(pkt)
			continue
		}
		if !c.handleMiss(pkt) {
			kept = append(kept, pkt)
		}
	}
	c.inflightTagCheck = kept
}
