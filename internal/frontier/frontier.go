package frontier

import (
	"context"
	"sync"
	"time"
)

// sendTimeout bounds Offer: a stalled actor drops URLs instead of
// stalling the proxy's scraping pass.
const sendTimeout = time.Second

type reply struct {
	path string
	ok   bool
}

// message carries either a batch of discovered URLs or, when replyTo is
// set, a dequeue request.
type message struct {
	urls    []string
	replyTo chan reply
}

// Frontier is the crawl's URL queue: a single-goroutine actor owning a
// FIFO and a seen set. Every path is enqueued at most once for the
// frontier's lifetime.
type Frontier struct {
	msgs chan message
	quit chan struct{}
	once sync.Once
}

// New starts the actor, seeded with the given paths.
func New(seed []string) *Frontier {
	f := &Frontier{
		msgs: make(chan message),
		quit: make(chan struct{}),
	}
	go f.loop(seed)
	return f
}

func (f *Frontier) loop(seed []string) {
	var queue []string
	seen := make(map[string]struct{})
	enqueue := func(paths []string) {
		for _, p := range paths {
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			queue = append(queue, p)
		}
	}
	enqueue(seed)

	for {
		select {
		case m := <-f.msgs:
			if m.replyTo == nil {
				enqueue(m.urls)
				continue
			}
			if len(queue) == 0 {
				m.replyTo <- reply{}
				continue
			}
			m.replyTo <- reply{path: queue[0], ok: true}
			queue = queue[1:]
		case <-f.quit:
			return
		}
	}
}

// Offer hands scraped paths to the actor, dropping them if the actor is
// unavailable for more than a second.
func (f *Frontier) Offer(paths []string) {
	if len(paths) == 0 {
		return
	}
	t := time.NewTimer(sendTimeout)
	defer t.Stop()
	select {
	case f.msgs <- message{urls: paths}:
	case <-t.C:
	case <-f.quit:
	}
}

// Next dequeues the head of the frontier. ok is false when the frontier
// is empty, closed, or ctx is done.
func (f *Frontier) Next(ctx context.Context) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}
	r := make(chan reply, 1)
	select {
	case f.msgs <- message{replyTo: r}:
	case <-f.quit:
		return "", false
	case <-ctx.Done():
		return "", false
	}
	select {
	case res := <-r:
		return res.path, res.ok
	case <-ctx.Done():
		return "", false
	}
}

// Close terminates the actor.
func (f *Frontier) Close() {
	f.once.Do(func() { close(f.quit) })
}
