package queries

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/omniquery/omniquery-backend/internal/platform/envutil"
	"github.com/omniquery/omniquery-backend/internal/platform/logger"
)

// Janitor prunes terminal background query entries on a schedule so the
// in-memory store does not grow without bound.
type Janitor struct {
	cron  *cron.Cron
	store *Store
	ttl   time.Duration
	log   *logger.Logger
}

func NewJanitor(store *Store, baseLog *logger.Logger) *Janitor {
	ttl := time.Duration(envutil.Int("QUERY_RESULT_TTL_SECONDS", 86400)) * time.Second
	return &Janitor{
		cron:  cron.New(),
		store: store,
		ttl:   ttl,
		log:   baseLog.With("service", "QueryJanitor"),
	}
}

func (j *Janitor) Start() error {
	_, err := j.cron.AddFunc("@every 1h", func() {
		removed := j.store.PruneOlderThan(j.ttl)
		if removed > 0 {
			j.log.Info("Pruned expired query results", "removed", removed, "ttl", j.ttl.String())
		}
	})
	if err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}
