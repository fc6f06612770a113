package provider

import "context"

// Message is a rendered notification ready for transmission. Subject is
// channel-dependent; the SMS channel ignores it.
type Message struct {
	Recipient string
	Subject   string
	Body      string
	// HTMLBody is an optional HTML alternative, email only.
	HTMLBody string
}

// Channel is the outbound delivery port, implemented per transport. A
// delivery failure is an error return; channels never retry on their own —
// all retry policy lives in the dispatcher.
type Channel interface {
	// Send performs one outbound call against the external transport.
	Send(ctx context.Context, msg Message) error
	// SendTemplated resolves the named template with the given context and
	// delegates to Send. Subject applies to email only.
	SendTemplated(ctx context.Context, recipient string, subject string, templateName string, data map[string]any) error
	// Available reports whether the channel is configured for delivery.
	// Unavailable channels fail sends cleanly instead of crashing.
	Available() bool
	// Probe checks connectivity against the external provider.
	Probe(ctx context.Context) bool
}
