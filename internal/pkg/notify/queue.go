package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// QueueKey is the Redis list the notification jobs live on.
	QueueKey = "notify_queue"

	DefaultMaxRetries = 3
	popTimeout        = 2 * time.Second
)

// JobType defines the kind of notification
type JobType string

const (
	JobTypeSubscriptionActivated JobType = "subscription_activated"
	JobTypeOrderPaid             JobType = "order_paid"
	JobTypePaymentReceipt        JobType = "payment_receipt"
)

// Job is one queued notification. Delivery is best effort: a job that
// keeps failing past MaxRetries is logged and dropped, never surfaced
// to the payment path.
type Job struct {
	ID         string            `json:"id"`
	Type       JobType           `json:"type"`
	Recipient  string            `json:"recipient"`
	Payload    map[string]string `json:"payload"`
	CreatedAt  time.Time         `json:"created_at"`
	RetryCount int               `json:"retry_count"`
	MaxRetries int               `json:"max_retries"`
}

// Mailer is the outbound email collaborator.
type Mailer interface {
	Send(to, subject, body string) error
}

// Queue is a small Redis-backed worker queue for notification emails.
type Queue struct {
	client  *redis.Client
	mailer  Mailer
	workers int
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewQueue creates a notification queue with the given worker count.
func NewQueue(client *redis.Client, mailer Mailer, workers int) *Queue {
	if workers <= 0 {
		workers = 2
	}
	return &Queue{
		client:  client,
		mailer:  mailer,
		workers: workers,
		stopCh:  make(chan struct{}),
	}
}

// Enqueue pushes a notification job onto the queue.
func (q *Queue) Enqueue(ctx context.Context, jobType JobType, recipient string, payload map[string]string) error {
	job := Job{
		ID:         uuid.NewString(),
		Type:       jobType,
		Recipient:  recipient,
		Payload:    payload,
		CreatedAt:  time.Now(),
		MaxRetries: DefaultMaxRetries,
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, QueueKey, raw).Err()
}

// Start launches the worker goroutines.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return
	}
	q.running = true
	log.Infof("[Notify] Starting %d workers", q.workers)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
}

// Stop signals the workers and waits for them to drain.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	close(q.stopCh)
	q.mu.Unlock()

	q.wg.Wait()
	log.Info("[Notify] Workers stopped")
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	ctx := context.Background()

	for {
		select {
		case <-q.stopCh:
			return
		default:
		}

		res, err := q.client.BRPop(ctx, popTimeout, QueueKey).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			log.Errorf("[Notify] Worker %d: pop failed: %v", id, err)
			time.Sleep(time.Second)
			continue
		}
		if len(res) < 2 {
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			log.Errorf("[Notify] Worker %d: dropping undecodable job: %v", id, err)
			continue
		}
		q.process(ctx, &job)
	}
}

func (q *Queue) process(ctx context.Context, job *Job) {
	subject, body := render(job)
	if err := q.mailer.Send(job.Recipient, subject, body); err == nil {
		return
	} else if job.RetryCount >= job.MaxRetries {
		log.Errorf("[Notify] Dropping job %s (%s) for %s after %d attempts: %v",
			job.ID, job.Type, job.Recipient, job.RetryCount+1, err)
		return
	} else {
		job.RetryCount++
		raw, merr := json.Marshal(job)
		if merr != nil {
			log.Errorf("[Notify] Failed to requeue job %s: %v", job.ID, merr)
			return
		}
		if perr := q.client.LPush(ctx, QueueKey, raw).Err(); perr != nil {
			log.Errorf("[Notify] Failed to requeue job %s: %v", job.ID, perr)
		}
	}
}
