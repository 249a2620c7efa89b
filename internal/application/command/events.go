// Package command contains write operations (CQRS - Commands).
package command

import (
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/student"
	"github.com/KaripeHS/BlayStorm-sub001/pkg/logger"
)

// publishEvents hands events to the bus after commit. Delivery failures never
// change the result of the command that produced them.
func publishEvents(pub shared.EventPublisher, events []shared.Event, log *logger.Logger) {
	if pub == nil {
		return
	}
	for _, event := range events {
		if err := pub.Publish(event); err != nil {
			log.Warn("failed to publish event",
				logger.String("event_type", string(event.EventType())),
				logger.StudentID(event.AggregateID()),
				logger.Err(err),
			)
		}
	}
}

// levelUpEvents returns a level_up event when the change raised the level.
func levelUpEvents(st *student.State, change student.LevelChange, clock shared.Clock) []shared.Event {
	if st == nil || !change.DidLevelUp() {
		return nil
	}
	return []shared.Event{shared.NewLevelUpEvent(st.ID, change.OldLevel, change.NewLevel, st.TotalXP, clock.Now())}
}

// mergeLevelChange joins two consecutive level changes.
func mergeLevelChange(first, second student.LevelChange) student.LevelChange {
	if first == (student.LevelChange{}) {
		return second
	}
	if second == (student.LevelChange{}) {
		return first
	}
	return student.LevelChange{OldLevel: first.OldLevel, NewLevel: second.NewLevel}
}
