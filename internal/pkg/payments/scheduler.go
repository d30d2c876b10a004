package payments

import (
	"context"
	"log"
	"time"
)

const defaultSweepBatchSize = 500

// Scheduler expires subscriptions whose renewal date has passed and
// resets the owners' entitlements to the free tier. It holds no state
// of its own; an external trigger (cron, admin endpoint) invokes the
// sweep on a fixed interval.
type Scheduler struct {
	repo      Repository
	batchSize int
}

func NewScheduler(repo Repository) *Scheduler {
	return &Scheduler{repo: repo, batchSize: defaultSweepBatchSize}
}

// ProcessExpired runs one sweep as of now and returns how many
// subscription cycles it expired.
//
// Every flip is a compare-and-set on (status, renewal_date), so a
// subscription renewed between the scan and the update is left alone,
// and overlapping sweep invocations cannot double-count. The user
// downgrade is likewise conditional on the user's own pointer having
// lapsed, so expiring a superseded cycle never touches a renewed user.
func (s *Scheduler) ProcessExpired(ctx context.Context, now time.Time) (int, error) {
	expired := 0
	for {
		if err := ctx.Err(); err != nil {
			return expired, err
		}

		subs, err := s.repo.ListExpiredSubscriptions(now, s.batchSize)
		if err != nil {
			return expired, err
		}
		if len(subs) == 0 {
			return expired, nil
		}

		progressed := false
		for _, sub := range subs {
			ok, err := s.repo.ExpireSubscription(sub.ID, now)
			if err != nil {
				return expired, err
			}
			if !ok {
				// Lost the race to a concurrent renewal or another sweep.
				continue
			}
			progressed = true
			expired++

			downgraded, err := s.repo.DowngradeLapsedUser(sub.UserID, now)
			if err != nil {
				log.Printf("sweep: downgrade for user %d failed: %v", sub.UserID, err)
				continue
			}
			if downgraded {
				log.Printf("sweep: subscription %s expired, user %d reset to free tier", sub.SubscriptionID, sub.UserID)
			}
		}

		if !progressed || len(subs) < s.batchSize {
			return expired, nil
		}
	}
}
