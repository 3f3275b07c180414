// Package join pairs rectifier alarms with the outages that followed them
// at the same site.
package join

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/backupoor/pkg/record"
)

// DefaultAlarmClass is the alarm name fragment that marks a rectifier
// failure.
const DefaultAlarmClass = "MINOR RECT FAILURE"

// Stats counts the rows surviving each join stage.
type Stats struct {
	Alarms     int `json:"alarms"`
	Filtered   int `json:"filtered"`
	Candidates int `json:"candidates"`
	Joined     int `json:"joined"`
}

// Engine performs the site-keyed temporal join.
type Engine struct {
	log        logrus.FieldLogger
	alarmClass string
}

// NewEngine creates a join engine for the given alarm class. An empty class
// selects DefaultAlarmClass.
func NewEngine(log logrus.FieldLogger, alarmClass string) *Engine {
	if alarmClass == "" {
		alarmClass = DefaultAlarmClass
	}

	return &Engine{
		log:        log.WithField("component", "join"),
		alarmClass: strings.ToUpper(alarmClass),
	}
}

// AlarmClass returns the uppercased alarm name fragment the engine filters on.
func (e *Engine) AlarmClass() string {
	return e.alarmClass
}

// Matches reports whether an alarm name belongs to the target class.
func (e *Engine) Matches(name string) bool {
	return strings.Contains(strings.ToUpper(name), e.alarmClass)
}

// Join returns every (alarm, outage) pair where the alarm belongs to the
// target class, both share a site id and the outage did not precede the
// alarm. Pairs with a missing occurrence time are dropped. Every qualifying
// outage is kept, so one alarm may yield several rows. Output follows alarm
// order, then outage order.
func (e *Engine) Join(alarms []record.Alarm, outages []record.Outage) []record.Joined {
	joined, _ := e.JoinWithStats(alarms, outages)

	return joined
}

// JoinWithStats is Join that also reports per-stage counts.
func (e *Engine) JoinWithStats(
	alarms []record.Alarm, outages []record.Outage,
) ([]record.Joined, Stats) {
	stats := Stats{Alarms: len(alarms)}

	bySite := make(map[string][]int, len(outages))
	for i := range outages {
		bySite[outages[i].SiteID] = append(bySite[outages[i].SiteID], i)
	}

	var out []record.Joined

	for ai := range alarms {
		a := &alarms[ai]
		if !e.Matches(a.Name) {
			continue
		}

		stats.Filtered++

		for _, oi := range bySite[a.SiteID] {
			stats.Candidates++

			j, err := record.NewJoined(*a, outages[oi])
			if err != nil {
				continue
			}

			out = append(out, j)
		}
	}

	stats.Joined = len(out)

	e.log.WithFields(logrus.Fields{
		"alarm_class": e.alarmClass,
		"alarms":      stats.Alarms,
		"filtered":    stats.Filtered,
		"candidates":  stats.Candidates,
		"joined":      stats.Joined,
	}).Info("Joined alarms with outages")

	return out, stats
}
