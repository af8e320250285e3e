package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reminderRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goalpath_reminder_runs_total",
		Help: "Goal reminder batch invocations by result.",
	}, []string{"result"})

	reminderMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goalpath_reminder_messages_total",
		Help: "Reminder messages produced, by kind.",
	}, []string{"kind"})

	reminderDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goalpath_reminder_dispatches_total",
		Help: "Per-user reminder notifications, by result.",
	}, []string{"result"})

	scheduleEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "goalpath_schedule_evictions_total",
		Help: "Daily schedules removed by the retention policy.",
	})
)
