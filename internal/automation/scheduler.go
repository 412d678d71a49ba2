package automation

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// GroupLister returns the groups that own enabled schedule workflows.
type GroupLister interface {
	ScheduledGroups(ctx context.Context) ([]string, error)
}

// Scheduler emits a ScheduledTick for every scheduled group once a minute.
type Scheduler struct {
	engine *Engine
	groups GroupLister
	loc    *time.Location
	cron   *cron.Cron
}

func NewScheduler(engine *Engine, groups GroupLister, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		engine: engine,
		groups: groups,
		loc:    loc,
		cron:   cron.New(cron.WithLocation(loc)),
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("* * * * *", func() {
		s.Tick(context.Background(), time.Now())
	}); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("Scheduler started (%s)", s.loc)
	return nil
}

// Stop halts the ticker. The returned context is done once a running tick
// has returned.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Tick dispatches the minute containing at to every scheduled group.
func (s *Scheduler) Tick(ctx context.Context, at time.Time) int {
	groups, err := s.groups.ScheduledGroups(ctx)
	if err != nil {
		log.Printf("Error listing scheduled groups: %v", err)
		return 0
	}

	minute := at.In(s.loc).Truncate(time.Minute)
	fired := 0
	for _, groupID := range groups {
		matches, err := s.engine.Process(ctx, ScheduledTick{Chat: Chat{ID: groupID}, Time: minute})
		if err != nil {
			log.Printf("Error processing schedule tick for %s: %v", groupID, err)
			continue
		}
		fired += len(matches)
	}
	return fired
}
