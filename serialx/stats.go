package serialx

import "sync/atomic"

// Stats holds UART counters since Begin or the last ResetStats. They are
// observations only: dropped bytes and line errors stay silent on the data
// path.
type Stats struct {
	ISRCount     uint32 // handler entries
	RxBytes      uint32 // bytes moved from the holding register into the rx ring
	RxDropped    uint32 // bytes read while the rx ring was full
	TxBytes      uint32 // bytes the handler moved from the tx ring to hardware
	DirectWrites uint32 // bytes written straight to an idle transmitter
	Overrun      uint32 // OVRE acknowledgements
	Framing      uint32 // FRAME acknowledgements
}

type counters struct {
	isr, rxBytes, rxDropped, txBytes, direct, overrun, framing atomic.Uint32
}

func (c *counters) snapshot() Stats {
	return Stats{
		ISRCount:     c.isr.Load(),
		RxBytes:      c.rxBytes.Load(),
		RxDropped:    c.rxDropped.Load(),
		TxBytes:      c.txBytes.Load(),
		DirectWrites: c.direct.Load(),
		Overrun:      c.overrun.Load(),
		Framing:      c.framing.Load(),
	}
}

func (c *counters) reset() {
	c.isr.Store(0)
	c.rxBytes.Store(0)
	c.rxDropped.Store(0)
	c.txBytes.Store(0)
	c.direct.Store(0)
	c.overrun.Store(0)
	c.framing.Store(0)
}
