// Package bootstrap holds the idempotent startup steps. Both take their
// inputs explicitly (clock, last-run timestamp) instead of reading
// ambient stored state, so they are independently testable.
package bootstrap

import (
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/jarvis-app/jarvis-backend/internal/clock"
	"github.com/jarvis-app/jarvis-backend/internal/domain"
	"github.com/jarvis-app/jarvis-backend/internal/repository"
)

// SeedDefaultLists creates the starter lists on a fresh store. It does
// nothing when any user list exists, so re-running is safe.
func SeedDefaultLists(repos *repository.Repositories, clk clock.Clock) error {
	count, err := repos.Lists.CountUserLists()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	now := clk.Now()
	return repos.InTx(func(r *repository.Repositories) error {
		for _, name := range []string{"Personal", "Work"} {
			list := &domain.List{
				ID:        uuid.New(),
				Name:      name,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := r.Lists.Create(list); err != nil {
				return err
			}
		}
		log.Println("seeded default lists")
		return nil
	})
}

// RolloverMyDay clears the ephemeral my-day membership once per calendar
// day. It returns the timestamp the caller should persist as the new
// last-run marker; when lastRun is already today, nothing changes.
func RolloverMyDay(repos *repository.Repositories, lastRun, now time.Time) (time.Time, error) {
	if sameDay(lastRun, now) {
		return lastRun, nil
	}
	err := repos.InTx(func(r *repository.Repositories) error {
		tasks, err := r.Tasks.MyDay()
		if err != nil {
			return err
		}
		// Completed my-day tasks are cleared too.
		completed, err := r.Tasks.Completed()
		if err != nil {
			return err
		}
		for _, t := range completed {
			if t.MyDay {
				tasks = append(tasks, t)
			}
		}
		for i := range tasks {
			tasks[i].MyDay = false
			tasks[i].UpdatedAt = now
			if err := r.Tasks.Save(&tasks[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return lastRun, err
	}
	return now, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.In(b.Location()).Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
