package domain

import "time"

type Notification struct {
	ID        string
	Recipient string
	Subject   string
	Body      string
	CreatedAt time.Time
}
