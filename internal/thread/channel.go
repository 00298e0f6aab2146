package thread

// Channel is an unbuffered rendezvous point: Send blocks until a matching
// Receive has taken the message, and vice versa. It is what backs
// Thread.Join (joinChannel in original_source/threads/thread.cc), built
// from two locks and two semaphores exactly as
// original_source/threads/channel.cc does.
type Channel struct {
	buffer int

	sendLock, receiveLock *Lock
	sendSem, receiveSem   *Semaphore
}

// NewChannel creates an empty rendezvous channel.
func NewChannel() *Channel {
	return &Channel{
		sendLock:    NewLock("channel-send"),
		receiveLock: NewLock("channel-receive"),
		sendSem:     NewSemaphore("channel-send-sem", 0),
		receiveSem:  NewSemaphore("channel-receive-sem", 0),
	}
}

// Send blocks until a Receive has consumed message.
func (c *Channel) Send(message int) {
	c.sendLock.Acquire()
	c.buffer = message
	c.receiveSem.V()
	c.sendSem.P()
	c.sendLock.Release()
}

// Receive blocks until a Send has produced a message, then returns it.
func (c *Channel) Receive() int {
	c.receiveLock.Acquire()
	c.receiveSem.P()
	message := c.buffer
	c.sendSem.V()
	c.receiveLock.Release()
	return message
}

// Stat reports how many senders and receivers are currently blocked
// waiting for a partner, for diagnostics only.
func (c *Channel) Stat() (sendersWaiting, receiversWaiting int) {
	_, sendersWaiting = c.sendSem.Stat()
	_, receiversWaiting = c.receiveSem.Stat()
	return
}
