package serialx

import "sync/atomic"

// Handler is serviced when its interrupt line fires.
type Handler interface {
	HandleInterrupt()
}

// Dispatcher binds a Handler to an interrupt source.
type Dispatcher interface {
	Register(h Handler)
}

// Vector is a Dispatcher for targets whose vector table is fixed at compile
// time: the vector stub calls Dispatch, which forwards to whatever handler was
// registered at startup.
//
//	var vec serialx.Vector
//	uart := serialx.NewUART(p, &vec)
//	interrupt.New(irq, func(interrupt.Interrupt) { vec.Dispatch() })
type Vector struct {
	h atomic.Pointer[handlerBox]
}

type handlerBox struct{ Handler }

// Register implements Dispatcher.
func (v *Vector) Register(h Handler) {
	if h == nil {
		v.h.Store(nil)
		return
	}
	v.h.Store(&handlerBox{h})
}

// Dispatch runs the registered handler, if any.
func (v *Vector) Dispatch() {
	if b := v.h.Load(); b != nil {
		b.HandleInterrupt()
	}
}
