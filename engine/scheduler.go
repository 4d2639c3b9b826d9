package engine

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// InitializeSchedules starts all the cron jobs (currently just one)
func (serverHandler *ServerHandler) InitializeSchedules() {
	interval := serverHandler.ServerConfig.StatsInterval
	if interval <= 0 {
		Logger.Info("Cache statistics job disabled", "interval_minutes", interval)
		return
	}

	c := cron.New()
	var statsJob cron.Job
	statsJob = cron.FuncJob(func() { serverHandler.logCacheStats() })
	statsJob = cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(statsJob) //ensure we don't kick off another if old one is still running
	c.AddJob(fmt.Sprintf("@every %dm", interval), statsJob)
	Logger.Info("Adding cache statistics job scheduler", "interval_minutes", interval)
	c.Start()
}

// logCacheStats writes one log line per open session with its thumbnail
// cache state.
func (serverHandler *ServerHandler) logCacheStats() {
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered in cache statistics job", "panic", r)
		}
	}()

	sessions := serverHandler.Sessions()
	if len(sessions) == 0 {
		Logger.Debug("No open document sessions")
		return
	}
	for _, session := range sessions {
		ready, inProgress := session.Source.Stats()
		win := session.Source.Window()
		Logger.Info("Session cache statistics",
			"id", session.ID.String(),
			"path", session.Path,
			"pages", session.Source.Len(),
			"ready", ready,
			"rendering", inProgress,
			"windowFirst", win.First,
			"windowLast", win.Last)
	}
}
