package ingest

// Event is the message body published to the history topic.
// Key identifies the publishing service, not the device.
type Event struct {
	Key  string    `json:"key"`
	Data EventData `json:"data"`
}

type EventData struct {
	Temperature Number  `json:"temperature"`
	Battery     *Number `json:"battery"`
	Angle       *Number `json:"angle"`
	RSSI        *Number `json:"rssi"`
	Gravity     *Number `json:"gravity"`
}

func NewEvent(key string, r Report) Event {
	ev := Event{
		Key: key,
		Data: EventData{
			Battery: r.Battery,
			Angle:   r.Angle,
			RSSI:    r.RSSI,
			Gravity: r.Gravity,
		},
	}
	if r.Temperature != nil {
		ev.Data.Temperature = *r.Temperature
	}
	return ev
}
