package mesh

import (
	"net"
	"testing"

	"github.com/clipmesh/clipmesh/internal/message"
)

// Send must report drops: Broadcast counts a message as sent only when it was
// actually accepted into the connection's queue.
func TestSendReportsQueueFull(t *testing.T) {
	ac, bc := net.Pipe()
	t.Cleanup(func() {
		ac.Close()
		bc.Close()
	})

	// No writeLoop running, so nothing drains the queue.
	c := newConn(ac, nil, "outbound")
	defer c.Close()

	msg := &message.Message{Type: message.TypePing}
	for i := 0; i < sendBuffer; i++ {
		if !c.Send(msg) {
			t.Fatalf("send %d rejected with queue space left", i)
		}
	}
	if c.Send(msg) {
		t.Error("send into a full queue should report a drop")
	}
}
