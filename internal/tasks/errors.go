package tasks

import (
	"errors"
	"fmt"
)

var ErrNotStarted = errors.New("task manager not started")

type TaskNotFoundError struct {
	Name string
}

func (e TaskNotFoundError) Error() string {
	return fmt.Sprintf("task '%s' not found", e.Name)
}
