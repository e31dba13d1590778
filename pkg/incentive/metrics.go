// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package incentive

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gitlab.com/accumulatenetwork/incentive/pkg/events"
)

var mTasksCreated = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "incentive",
	Name:      "tasks_created",
	Help:      "The number of tasks created",
})

var mTasksReopened = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "incentive",
	Name:      "tasks_reopened",
	Help:      "The number of tasks reopened after a solver's secret leaked",
})

var mTasksFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "incentive",
	Name:      "tasks_finalized",
	Help:      "The number of tasks finalized, by finality",
}, []string{"finality"})

var mTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "incentive",
	Name:      "task_transitions",
	Help:      "The number of task state transitions, by the state entered",
}, []string{"state"})

var mChallenges = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "incentive",
	Name:      "challenges",
	Help:      "The number of challenges committed",
})

func observe(e events.Event) {
	switch e := e.(type) {
	case events.TaskReopened:
		mTasksReopened.Inc()
	case events.ChallengeCommitted:
		mChallenges.Inc()
	case events.TaskStateChange:
		mTransitions.WithLabelValues(State(e.State).String()).Inc()
	case events.TaskFinalized:
		mTasksFinalized.WithLabelValues(Finality(e.Finality).String()).Inc()
	}
}
