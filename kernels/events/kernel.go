// Package main implements the events kernel: a topic-isolated publish /
// subscribe bus exposed to sxs programs via subscribe, publish, poll, and
// unsubscribe.
//
// Grounded on original_source/libs/tests/unit/events/events_test.cpp's
// event_system_c contract: per-topic subscriber isolation, in-order
// delivery to every subscriber of a topic, and a rate-limited publisher
// bounded to the [1, 4096] requests-per-second range the original
// validates get_publisher against. The original's push model (publishers
// call subscriber callbacks directly on worker threads) is reworked here
// into a pull model — publish enqueues, poll drains — since sxs has no
// callback-into-interpreter path from a kernel goroutine; subscription
// and delivery ordering are preserved, only the consumption mechanism
// changes.
package main

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bosley/sxs/pkg/kernelapi"
)

// rate bounds mirror event_system_c::get_publisher's validated range.
const (
	minRPS     = 1
	maxRPS     = 4096
	defaultRPS = 1024
)

type subscriber struct {
	topic string
	queue *list.List
	mu    sync.Mutex
}

func (s *subscriber) push(payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.PushBack(payload)
}

func (s *subscriber) pop() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	front := s.queue.Front()
	if front == nil {
		return "", false
	}
	s.queue.Remove(front)
	return front.Value.(string), true
}

// bucket is a token-bucket limiter keyed by topic, refilling at a fixed
// rate and bounded by a burst ceiling, matching the original's
// burst-then-throttle publish behavior.
type bucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64
	last     time.Time
}

func newBucket(rps float64) *bucket {
	return &bucket{tokens: rps, capacity: rps, rate: rps, last: time.Now()}
}

func (b *bucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	elapsed := now.Sub(b.last).Seconds()
	b.last = now
	b.tokens += elapsed * b.rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

var (
	mu          sync.Mutex
	subsByID    = make(map[string]*subscriber)
	subsByTopic = make(map[string][]*subscriber)
	buckets     = make(map[string]*bucket)
)

func topicBucket(topic string) *bucket {
	b, ok := buckets[topic]
	if !ok {
		b = newBucket(defaultRPS)
		buckets[topic] = b
	}
	return b
}

func kernelError(api kernelapi.APITable, message string) kernelapi.Object {
	return api.CreateError(api.CreateString(message))
}

// KernelInit is the plugin entry point the sxs runtime looks up via
// plugin.Lookup after plugin.Open.
func KernelInit(registry kernelapi.Registry, api kernelapi.APITable) {
	registry.Register("subscribe", func(args []kernelapi.Object) kernelapi.Object {
		if len(args) < 1 {
			return kernelError(api, "subscribe requires 1 argument")
		}
		topic := api.AsString(args[0])
		if topic == "" {
			return kernelError(api, "subscribe: topic must not be empty")
		}

		id := uuid.New().String()
		sub := &subscriber{topic: topic, queue: list.New()}

		mu.Lock()
		subsByID[id] = sub
		subsByTopic[topic] = append(subsByTopic[topic], sub)
		mu.Unlock()

		return api.CreateSymbol(id)
	}, []kernelapi.Kind{kernelapi.KindString}, kernelapi.KindSymbol, false)

	registry.Register("publish", func(args []kernelapi.Object) kernelapi.Object {
		if len(args) < 2 {
			return kernelError(api, "publish requires 2 arguments")
		}
		topic := api.AsString(args[0])
		payload := api.AsString(args[1])
		if topic == "" {
			return kernelError(api, "publish: topic must not be empty")
		}

		mu.Lock()
		b := topicBucket(topic)
		subs := subsByTopic[topic]
		mu.Unlock()

		if !b.allow() {
			return kernelError(api, "publish: rate limit exceeded")
		}

		delivered := 0
		for _, sub := range subs {
			sub.push(payload)
			delivered++
		}
		return api.CreateInt(int64(delivered))
	}, []kernelapi.Kind{kernelapi.KindString, kernelapi.KindString}, kernelapi.KindInteger, false)

	registry.Register("poll", func(args []kernelapi.Object) kernelapi.Object {
		if len(args) < 1 {
			return kernelError(api, "poll requires 1 argument")
		}
		id := api.AsSymbol(args[0])

		mu.Lock()
		sub, ok := subsByID[id]
		mu.Unlock()
		if !ok {
			return kernelError(api, "poll: unknown subscription")
		}

		payload, ok := sub.pop()
		if !ok {
			return api.CreateNone()
		}
		return api.CreateString(payload)
	}, []kernelapi.Kind{kernelapi.KindSymbol}, kernelapi.KindNone, false)

	registry.Register("unsubscribe", func(args []kernelapi.Object) kernelapi.Object {
		if len(args) < 1 {
			return kernelError(api, "unsubscribe requires 1 argument")
		}
		id := api.AsSymbol(args[0])

		mu.Lock()
		defer mu.Unlock()
		sub, ok := subsByID[id]
		if !ok {
			return api.CreateInt(0)
		}
		delete(subsByID, id)
		remaining := subsByTopic[sub.topic][:0]
		for _, s := range subsByTopic[sub.topic] {
			if s != sub {
				remaining = append(remaining, s)
			}
		}
		subsByTopic[sub.topic] = remaining
		return api.CreateInt(1)
	}, []kernelapi.Kind{kernelapi.KindSymbol}, kernelapi.KindInteger, false)
}
