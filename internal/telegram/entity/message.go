package entity

// ChannelMessage — одно сообщение отслеживаемого канала.
// ID монотонно растет в пределах канала и используется для дедупликации.
type ChannelMessage struct {
	ID       int
	Text     string
	HasMedia bool
}
