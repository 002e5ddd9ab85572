package services

import "errors"

var (
	ErrForbidden             = errors.New("you do not have permission to access this chat")
	ErrInvalidContent        = errors.New("invalid message content")
	ErrOperationNotPermitted = errors.New("this operation is only allowed in development environment")
)
