package cpu

import (
	"github.com/ooosim/coretrace/addr"
	"github.com/ooosim/coretrace/channel"
	"github.com/ooosim/coretrace/instr"
)

// Operate runs one tick of the pipeline. Stages are called in reverse
// stage order — retire first, initialize_instruction last — so a younger
// stage never observes what an older stage just produced this same cycle,
// grounded on O3_CPU::operate and its stage-order rule.
//
// The relative order of scheduleMemoryInstruction and executeInstruction
// is swapped from the prose description (LQ/SQ entries are allocated
// before a load can issue its read, not after) since the prose's own
// ordering is ambiguous about which cycle's allocation an execute call
// observes; every other stage keeps the documented reverse order.
//
// translate_fetch has no separate call here: fetchInstruction submits
// untranslated requests and the L1I controller's own translation
// coupling resolves them before its tag check runs, the same split
// O3_CPU itself delegates to CACHE::issue_translation.
func (c *Core) Operate(now uint64) {
	c.now = now

	c.retire()
	c.completeExecution()
	c.operateLSQ()
	c.executeInstruction()
	c.scheduleMemoryInstruction()
	c.scheduleInstruction()
	c.dispatchInstruction()
	c.decodeInstruction()
	c.promoteToDecode()
	c.fetchInstruction()
	c.checkDIB()
	c.initializeInstruction()
}

func (c *Core) findROB(instrID uint64) *instr.Instr {
	for _, in := range c.rob {
		if in.InstrID == instrID {
			return in
		}
	}
	return nil
}

// initializeInstruction pulls up to FETCH_WIDTH instructions from the
// input queue, resolves register producer/consumer edges, and predicts
// branches, grounded on O3_CPU::do_init_instruction.
func (c *Core) initializeInstruction() {
	if c.now < c.fetchResumeCycle {
		return
	}
	for i := 0; i < c.cfg.FetchWidth && len(c.inputQueue) > 0; i++ {
		if len(c.ifetchBuffer) >= c.cfg.IFetchBufferSize {
			return
		}
		in := c.inputQueue[0]
		c.inputQueue = c.inputQueue[1:]

		in.RegisterProducer = make([]uint64, len(in.SourceRegisters))
		for idx, reg := range in.SourceRegisters {
			if reg == instr.NoRegister {
				continue
			}
			in.RegisterProducer[idx] = c.regProducers[reg]
		}
		for _, reg := range in.DestinationRegisters {
			if reg == instr.NoRegister {
				continue
			}
			c.regProducers[reg] = in.InstrID
		}

		c.ifetchBuffer = append(c.ifetchBuffer, in)

		if !in.IsBranch {
			continue
		}
		c.Stats.TotalBranchTypes[in.BranchType]++
		predictedTaken := c.predictor.Predict(in.IP)
		_, _ = c.btb.Predict(in.IP)
		c.predictor.LastBranchResult(in.IP, in.BranchTarget, in.BranchTaken, in.BranchType)
		c.btb.Update(in.IP, in.BranchTarget, in.BranchTaken, in.BranchType)

		if predictedTaken != in.BranchTaken {
			c.Stats.BranchTypeMisses[in.BranchType]++
			c.Stats.TotalROBOccupancyAtMispredict += uint64(len(c.rob))
			c.fetchResumeCycle = c.now + c.cfg.BranchMispredictPenalty
			return
		}
	}
}

// checkDIB marks instructions whose ip hits the decoded-instruction
// buffer as already decoded, grounded on O3_CPU::do_check_dib.
func (c *Core) checkDIB() {
	for _, in := range c.ifetchBuffer {
		if in.Decoded {
			continue
		}
		if _, hit := c.dib.CheckHit(in.IP); hit {
			in.Decoded = true
		}
	}
}

// fetchInstruction issues coalesced I-cache reads for every un-fetched
// block in IFETCH_BUFFER and marks the instructions waiting on a block
// fetched once the response lands, grounded on
// O3_CPU::do_translate_fetch/do_fetch_instruction. Requests carry the
// virtual block address in both Address and VAddress with IsTranslated
// false; the L1I controller's own translation coupling overwrites
// Address with the resolved physical block before the tag check runs.
func (c *Core) fetchInstruction() {
	issued := 0
	for _, in := range c.ifetchBuffer {
		if in.Fetched {
			continue
		}
		block := addr.NewBlockAddress(in.IP).Value
		if _, already := c.fetchPending[block]; already {
			c.fetchPending[block] = append(c.fetchPending[block], in)
			continue
		}
		if issued >= c.cfg.FetchWidth {
			continue
		}
		ok := c.l1i.AddRQ(channel.Request{
			Address:           block << addr.BlockOffsetBits,
			VAddress:          block << addr.BlockOffsetBits,
			IP:                in.IP,
			Type:              channel.Load,
			IsTranslated:      false,
			ResponseRequested: true,
			InstrDependOnMe:   []uint64{in.InstrID},
		})
		if !ok {
			continue
		}
		c.fetchPending[block] = []*instr.Instr{in}
		issued++
	}

	for _, resp := range c.l1i.PopReturned() {
		block := addr.NewBlockAddress(resp.VAddress).Value
		for _, in := range c.fetchPending[block] {
			in.Fetched = true
		}
		delete(c.fetchPending, block)
	}
}

// promoteToDecode moves fetched instructions into DECODE_BUFFER, charging
// decode latency only for instructions the DIB did not already decode.
func (c *Core) promoteToDecode() {
	kept := c.ifetchBuffer[:0]
	for _, in := range c.ifetchBuffer {
		if !in.Fetched || len(c.decodeBuffer) >= c.cfg.DecodeBufferSize {
			kept = append(kept, in)
			continue
		}
		if in.Decoded {
			in.EventCycle = c.now
		} else {
			in.EventCycle = c.now + c.cfg.DecodeLatency
		}
		c.decodeBuffer = append(c.decodeBuffer, in)
	}
	c.ifetchBuffer = kept
}

// decodeInstruction moves ready entries into DISPATCH_BUFFER, filling the
// DIB for instructions that were not already a hit, grounded on
// O3_CPU::decode_instruction.
func (c *Core) decodeInstruction() {
	width := c.cfg.DecodeWidth
	kept := c.decodeBuffer[:0]
	for _, in := range c.decodeBuffer {
		if width <= 0 || in.EventCycle > c.now || len(c.dispatchBuffer) >= c.cfg.DispatchBufferSize {
			kept = append(kept, in)
			continue
		}
		width--
		if !in.Decoded {
			in.Decoded = true
			c.dib.Fill(in.IP, struct{}{})
		}
		in.EventCycle = c.now + c.cfg.DispatchLatency
		c.dispatchBuffer = append(c.dispatchBuffer, in)
	}
	c.decodeBuffer = kept
}

// dispatchInstruction moves ready entries into the ROB, respecting
// ROB_SIZE, grounded on O3_CPU::dispatch_instruction.
func (c *Core) dispatchInstruction() {
	width := c.cfg.DispatchWidth
	kept := c.dispatchBuffer[:0]
	for _, in := range c.dispatchBuffer {
		if width <= 0 || in.EventCycle > c.now || len(c.rob) >= c.cfg.ROBSize {
			kept = append(kept, in)
			continue
		}
		width--
		c.rob = append(c.rob, in)
	}
	c.dispatchBuffer = kept
}

// scheduleInstruction marks ROB entries whose source-register producers
// have all executed as scheduled, grounded on O3_CPU::do_scheduling.
func (c *Core) scheduleInstruction() {
	executed := func(id uint64) bool {
		in := c.findROB(id)
		return in == nil || in.Executed
	}
	width := c.cfg.ScheduleWidth
	for _, in := range c.rob {
		if width <= 0 {
			return
		}
		if in.Scheduled {
			continue
		}
		if !in.AllDependenciesSatisfied(executed) {
			continue
		}
		in.Scheduled = true
		in.EventCycle = c.now + c.cfg.ScheduleLatency
		width--
	}
}

// scheduleMemoryInstruction allocates LQ/SQ entries for scheduled memory
// instructions that have not yet been allocated, running the store-to-load
// forwarding search, grounded on O3_CPU::do_memory_scheduling.
func (c *Core) scheduleMemoryInstruction() {
	for _, in := range c.rob {
		if !in.Scheduled || in.MemOpsAllocated || in.EventCycle > c.now {
			continue
		}
		if len(in.SourceMemory) == 0 && len(in.DestinationMemory) == 0 {
			continue
		}
		for _, src := range in.SourceMemory {
			slot, ok := c.lq.FreeSlot()
			if !ok {
				continue
			}
			entry := instr.LSQEntry{InstrID: in.InstrID, VirtualAddress: src, IP: in.IP}
			if producer, found := c.sq.FindForwardingStore(src, in.InstrID); found {
				entry.ProducerID = producer.InstrID
			}
			c.lq.Allocate(slot, entry)
			in.NumMemOpsRemaining++
		}
		for _, dst := range in.DestinationMemory {
			c.sq.Push(instr.LSQEntry{InstrID: in.InstrID, VirtualAddress: dst, IP: in.IP})
			in.NumMemOpsRemaining++
		}
		in.MemOpsAllocated = true
	}
}

// executeInstruction advances scheduled, allocated instructions: a
// non-memory instruction completes in the cycle it is executed
// (Config.ExecuteLatency is not applied); a memory
// instruction's completion is instead driven by operateLSQ/
// completeExecution once NumMemOpsRemaining reaches zero, grounded on
// O3_CPU::do_execution.
func (c *Core) executeInstruction() {
	width := c.cfg.ExecuteWidth
	for _, in := range c.rob {
		if width <= 0 {
			return
		}
		if !in.Scheduled || in.Executed || in.EventCycle > c.now {
			continue
		}
		if len(in.SourceMemory) == 0 && len(in.DestinationMemory) == 0 {
			in.Executed = true
			width--
			continue
		}
		if !in.MemOpsAllocated {
			continue
		}
		width--
	}
}

// operateLSQ issues outstanding load-queue reads and store-queue writes up
// to LQ_WIDTH/SQ_WIDTH, and resolves loads whose read has returned,
// grounded on O3_CPU::operate_lsq and O3_CPU::handle_memory_return.
func (c *Core) operateLSQ() {
	lqIssued := 0
	for i := 0; i < c.lq.Size() && lqIssued < c.cfg.LQWidth; i++ {
		entry, present := c.lq.Get(i)
		if !present || entry.FetchIssued || entry.ProducerID != 0 {
			continue
		}
		ok := c.l1d.AddRQ(channel.Request{
			Address:           entry.VirtualAddress,
			VAddress:          entry.VirtualAddress,
			IP:                entry.IP,
			InstrID:           entry.InstrID,
			Type:              channel.Load,
			IsTranslated:      false,
			ResponseRequested: true,
			InstrDependOnMe:   []uint64{entry.InstrID},
		})
		if !ok {
			continue
		}
		entry.FetchIssued = true
		c.lq.Allocate(i, entry)
		lqIssued++
	}

	for _, resp := range c.l1d.PopReturned() {
		for _, id := range resp.InstrDependOnMe {
			c.resolveLoad(id)
		}
	}

	sqIssued := 0
	for i := 0; i < c.sq.Size() && sqIssued < c.cfg.SQWidth; i++ {
		if c.sq.IsIssued(i) {
			continue
		}
		e := c.sq.At(i)
		ok := c.l1d.AddWQ(channel.Request{
			Address:           e.VirtualAddress,
			VAddress:          e.VirtualAddress,
			IP:                e.IP,
			InstrID:           e.InstrID,
			Type:              channel.Write,
			IsTranslated:      false,
			ResponseRequested: false,
		})
		if !ok {
			continue
		}
		c.sq.MarkIssued(i)
		if owner := c.findROB(e.InstrID); owner != nil {
			owner.NumMemOpsRemaining--
		}
		sqIssued++
	}
}

func (c *Core) resolveLoad(instrID uint64) {
	for i := 0; i < c.lq.Size(); i++ {
		entry, present := c.lq.Get(i)
		if !present || entry.InstrID != instrID {
			continue
		}
		if owner := c.findROB(entry.InstrID); owner != nil {
			owner.NumMemOpsRemaining--
		}
		c.lq.Release(i)
		return
	}
}

// completeExecution marks memory instructions whose operations have all
// landed as executed, and resolves loads that were waiting on a store's
// completion for forwarding, grounded on O3_CPU::do_complete_execution.
func (c *Core) completeExecution() {
	for _, in := range c.rob {
		if !in.Scheduled || in.Executed || !in.MemOpsAllocated {
			continue
		}
		if in.NumMemOpsRemaining == 0 {
			in.Executed = true
		}
	}

	for i := 0; i < c.lq.Size(); i++ {
		entry, present := c.lq.Get(i)
		if !present || entry.ProducerID == 0 {
			continue
		}
		producer := c.findROB(entry.ProducerID)
		if producer != nil && !producer.Executed {
			continue
		}
		if owner := c.findROB(entry.InstrID); owner != nil {
			owner.NumMemOpsRemaining--
		}
		c.lq.Release(i)
	}
}

// retire pops completed instructions from the ROB head, up to
// RETIRE_WIDTH, dropping their store-queue entries, grounded on
// O3_CPU::retire_rob.
func (c *Core) retire() {
	width := c.cfg.RetireWidth
	for width > 0 && len(c.rob) > 0 {
		head := c.rob[0]
		if !head.Executed || head.NumMemOpsRemaining != 0 {
			break
		}
		for c.sq.Size() > 0 && c.sq.At(0).InstrID == head.InstrID {
			c.sq.PopFront()
		}
		c.rob = c.rob[1:]
		c.numRetired++
		width--
	}
}
