package notify

import (
	"context"
	"crypto/rand"
	"log"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Sender is what the queue workers deliver through; *Dispatcher implements it.
type Sender interface {
	SendToUsers(ctx context.Context, userIDs []int64, msg Message) BatchResult
}

type QueueConfig struct {
	Size        int
	Workers     int
	MaxRetries  int
	BaseBackoff time.Duration
	SendTimeout time.Duration
}

type job struct {
	id      string
	userIDs []int64
	msg     Message
}

// Queue delivers notifications outside the request cycle. Enqueue never blocks: a full
// queue drops the job. Users whose send failed with an infrastructure error are retried
// with exponential backoff, up to MaxRetries times.
type Queue struct {
	sender Sender
	cfg    QueueConfig
	jobs   chan job

	mu      sync.RWMutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewQueue(sender Sender, cfg QueueConfig) *Queue {
	if cfg.Size <= 0 {
		cfg.Size = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 2 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	return &Queue{sender: sender, cfg: cfg, jobs: make(chan job, cfg.Size)}
}

func (q *Queue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	log.Printf("[INFO] notify: queue started (workers=%d size=%d)", q.cfg.Workers, q.cfg.Size)
}

// Stop refuses new jobs, lets workers drain what is queued and waits for them.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
	if q.cancel != nil {
		q.cancel()
	}
	log.Printf("[INFO] notify: queue stopped")
}

// Enqueue schedules msg for userIDs and reports whether it was accepted.
func (q *Queue) Enqueue(userIDs []int64, msg Message) bool {
	userIDs = dedupe(userIDs)
	if len(userIDs) == 0 {
		return false
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		log.Printf("[WARN] notify: queue stopped, dropping %q for %d users", msg.Title, len(userIDs))
		return false
	}

	j := job{id: newJobID(), userIDs: userIDs, msg: msg}
	select {
	case q.jobs <- j:
		return true
	default:
		log.Printf("[WARN] notify: queue full, dropping job %s %q for %d users", j.id, msg.Title, len(userIDs))
		return false
	}
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for j := range q.jobs {
		q.process(ctx, j)
	}
}

func (q *Queue) process(ctx context.Context, j job) {
	pending := j.userIDs
	for attempt := 0; ; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, q.cfg.SendTimeout)
		res := q.sender.SendToUsers(sendCtx, pending, j.msg)
		cancel()

		var retry []int64
		for _, r := range res.Results {
			if r.retryable {
				retry = append(retry, r.UserID)
			}
		}
		if len(retry) == 0 {
			return
		}
		if attempt >= q.cfg.MaxRetries {
			log.Printf("[ERROR] notify: job %s gave up after %d retries, %d users undelivered", j.id, attempt, len(retry))
			return
		}

		delay := Backoff(q.cfg.BaseBackoff, attempt)
		log.Printf("[WARN] notify: job %s retry %d/%d for %d users in %s", j.id, attempt+1, q.cfg.MaxRetries, len(retry), delay)
		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
		pending = retry
	}
}

// Backoff returns base * 2^attempt.
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt > 16 {
		attempt = 16
	}
	return base << uint(attempt)
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func newJobID() string {
	return ulid.MustNew(ulid.Now(), ulid.Monotonic(rand.Reader, 0)).String()
}
