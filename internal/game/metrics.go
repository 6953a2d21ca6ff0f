package game

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	gamesStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "contact_games_started_total",
			Help: "Rooms that filled up and started a game",
		},
	)
	gamesFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contact_games_finished_total",
			Help: "Finished games by finish reason",
		},
		[]string{"reason"},
	)
	actionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contact_actions_total",
			Help: "Game actions processed by the engine",
		},
		[]string{"event"},
	)
	actionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contact_action_errors_total",
			Help: "Game actions rejected, by error kind",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(gamesStarted)
	prometheus.MustRegister(gamesFinished)
	prometheus.MustRegister(actionsTotal)
	prometheus.MustRegister(actionErrors)
}
