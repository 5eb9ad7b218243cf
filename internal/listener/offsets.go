package listener

import (
	"sync"

	"github.com/segmentio/kafka-go"
)

type trackedOffset struct {
	msg  kafka.Message
	done bool
}

// offsetTracker decides which offset may be committed per partition.
// Messages are tracked in fetch order and may be acknowledged in any order;
// an offset becomes committable only when it and every earlier tracked offset
// of its partition were acknowledged.
type offsetTracker struct {
	mu         sync.Mutex
	partitions map[int][]*trackedOffset
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{partitions: make(map[int][]*trackedOffset)}
}

// track registers a fetched message. A message at or below the newest tracked
// offset means the partition was rewound after a rebalance, so its pending
// entries are dropped.
func (t *offsetTracker) track(msg kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pending := t.partitions[msg.Partition]
	if n := len(pending); n > 0 && pending[n-1].msg.Offset >= msg.Offset {
		pending = nil
	}
	t.partitions[msg.Partition] = append(pending, &trackedOffset{msg: msg})
}

// ack marks msg done and returns the highest message that can now be
// committed. ok is false when an earlier offset is still in flight.
func (t *offsetTracker) ack(msg kafka.Message) (commit kafka.Message, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pending := t.partitions[msg.Partition]
	for _, p := range pending {
		if p.msg.Offset == msg.Offset {
			p.done = true
			break
		}
	}

	i := 0
	for i < len(pending) && pending[i].done {
		commit, ok = pending[i].msg, true
		i++
	}
	t.partitions[msg.Partition] = pending[i:]
	return commit, ok
}

// inFlight reports the number of tracked, unacknowledged messages.
func (t *offsetTracker) inFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, pending := range t.partitions {
		for _, p := range pending {
			if !p.done {
				n++
			}
		}
	}
	return n
}
