package net

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/robfig/cron/v3"
)

// StartStats logs room and session counts on the cron schedule until the
// returned stop func is called.
func StartStats(server *Server, schedule string) (func(), error) {
	if schedule == "" {
		return func() {}, nil
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		stats := server.Registry().Stats()
		glog.Infof("[stats] sessions=%d rooms=%d memberships=%d",
			server.Sessions(), stats.Rooms, stats.Memberships)
	})
	if err != nil {
		return nil, fmt.Errorf("stats schedule %q: %w", schedule, err)
	}
	c.Start()
	return func() {
		<-c.Stop().Done()
	}, nil
}
