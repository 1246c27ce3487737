package userstore

import "fmt"

type (
	UserNotFound struct {
		ID int64
	}

	ReadOnly struct{}
)

func (u UserNotFound) Error() string {
	return fmt.Sprintf("user %v not found", u.ID)
}

func (ReadOnly) Error() string {
	return "user store was opened in read-only mode"
}
