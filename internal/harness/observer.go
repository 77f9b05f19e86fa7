package harness

import "github.com/wolfman30/whatsapp-test-harness/internal/runlog"

// Observer receives progress notifications for operator-facing output.
// Implementations must be safe for concurrent use: Received is called from
// listener goroutines while the dispatcher is sending.
type Observer interface {
	PhaseStarted(name string, count int)
	Sending(index, total int, body string)
	Sent(attempt runlog.OutboundAttempt)
	Failed(attempt runlog.OutboundAttempt)
	Received(event runlog.InboundEvent)
}

type nopObserver struct{}

func (nopObserver) PhaseStarted(string, int)      {}
func (nopObserver) Sending(int, int, string)      {}
func (nopObserver) Sent(runlog.OutboundAttempt)   {}
func (nopObserver) Failed(runlog.OutboundAttempt) {}
func (nopObserver) Received(runlog.InboundEvent)  {}

// MultiObserver fans notifications out to every non-nil observer in order.
func MultiObserver(observers ...Observer) Observer {
	var list multiObserver
	for _, o := range observers {
		if o != nil {
			list = append(list, o)
		}
	}
	return list
}

type multiObserver []Observer

func (m multiObserver) PhaseStarted(name string, count int) {
	for _, o := range m {
		o.PhaseStarted(name, count)
	}
}

func (m multiObserver) Sending(index, total int, body string) {
	for _, o := range m {
		o.Sending(index, total, body)
	}
}

func (m multiObserver) Sent(a runlog.OutboundAttempt) {
	for _, o := range m {
		o.Sent(a)
	}
}

func (m multiObserver) Failed(a runlog.OutboundAttempt) {
	for _, o := range m {
		o.Failed(a)
	}
}

func (m multiObserver) Received(e runlog.InboundEvent) {
	for _, o := range m {
		o.Received(e)
	}
}
