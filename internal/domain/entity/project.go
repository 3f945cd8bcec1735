package entity

import "github.com/google/uuid"

// Project is solely an ownership container for tasks, generations, and
// shots. It carries no scheduling behavior of its own.
type Project struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Name        string
	Description string
}
