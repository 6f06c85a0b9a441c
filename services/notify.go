package services

// Notifier delivers a best-effort message to a user. Implementations must not
// block: they are called after a transaction commits and their outcome never
// affects the committed mutation.
type Notifier interface {
	Notify(userID int64, text string)
}

type nopNotifier struct{}

func (nopNotifier) Notify(int64, string) {}

// NopNotifier drops every message.
var NopNotifier Notifier = nopNotifier{}

func orNop(n Notifier) Notifier {
	if n == nil {
		return NopNotifier
	}
	return n
}
