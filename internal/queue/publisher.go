package queue

import "context"

// Publisher delivers one message body to a topic on the bus and reports
// whether the broker accepted it. Implementations must be safe for
// concurrent use by in-flight requests.
type Publisher interface {
	Publish(ctx context.Context, topic string, body []byte) error
}

// Closer is implemented by publishers that hold a broker connection.
type Closer interface {
	Close()
}
