package events

import (
	"github.com/kelindar/event"

	"github.com/smazurov/camctl/internal/metrics"
)

// busDropLabel is the channel label for events dropped by SubscribeToChannel.
const busDropLabel = "bus"

// SubscribeToChannel feeds events of type T into ch for select-loop consumers
// such as the /api/events stream. The bus never blocks on a slow consumer: an
// event that does not fit in ch is dropped and counted.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
			metrics.IncEventsDropped(busDropLabel)
		}
	})
}
