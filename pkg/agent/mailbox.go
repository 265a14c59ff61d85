package agent

import "github.com/hoposhell/agent/pkg/wire"

// frameMsg is one item destined for the outbound stream.
type frameMsg struct {
	Kind wire.Kind
	Body []byte
}

// mailbox is the unbounded single-producer-many-writer, single-consumer
// queue spec.md §5 calls for between the PTY/dispatcher pumps and the
// connection writer: backpressure is deliberately absent here and relies
// on TCP's write-side blocking instead, so a slow peer can never block the
// PTY output pump.
type mailbox struct {
	in  chan frameMsg
	out chan frameMsg
}

func newMailbox() *mailbox {
	m := &mailbox{in: make(chan frameMsg), out: make(chan frameMsg)}
	go m.run()
	return m
}

func (m *mailbox) run() {
	var queue []frameMsg
	for {
		if len(queue) == 0 {
			v, ok := <-m.in
			if !ok {
				close(m.out)
				return
			}
			queue = append(queue, v)
			continue
		}
		select {
		case v, ok := <-m.in:
			if !ok {
				for _, q := range queue {
					m.out <- q
				}
				close(m.out)
				return
			}
			queue = append(queue, v)
		case m.out <- queue[0]:
			queue = queue[1:]
		}
	}
}

// Send enqueues msg. It never blocks on a slow reader.
func (m *mailbox) Send(msg frameMsg) { m.in <- msg }

// Recv exposes the consumer side for a select statement.
func (m *mailbox) Recv() <-chan frameMsg { return m.out }
