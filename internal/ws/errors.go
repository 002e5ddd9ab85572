package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"chat-hub/internal/models"
	"chat-hub/internal/repositories"
	"chat-hub/internal/services"
)

// Wire codes carried in the status field of an error event.
const (
	CodeForbidden             = "forbidden"
	CodeInvalidContent        = "invalid_content"
	CodeRoomInitFailed        = "room_init_failed"
	CodeReadMarkFailed        = "read_mark_failed"
	CodeOperationNotPermitted = "operation_not_permitted"
	CodeValidation            = "validation_error"
	CodeInternal              = "error"
)

var errMalformed = errors.New("malformed payload")

func errorPayload(err error) models.ErrorPayload {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return models.ErrorPayload{Status: CodeForbidden, Message: services.ErrForbidden.Error()}
	case errors.Is(err, services.ErrInvalidContent), errors.Is(err, repositories.ErrInvalidMembers):
		return models.ErrorPayload{Status: CodeInvalidContent, Message: err.Error()}
	case errors.Is(err, repositories.ErrRoomInitFailed):
		return models.ErrorPayload{Status: CodeRoomInitFailed, Message: repositories.ErrRoomInitFailed.Error()}
	case errors.Is(err, repositories.ErrReadMarkFailed):
		return models.ErrorPayload{Status: CodeReadMarkFailed, Message: repositories.ErrReadMarkFailed.Error()}
	case errors.Is(err, services.ErrOperationNotPermitted):
		return models.ErrorPayload{Status: CodeOperationNotPermitted, Message: services.ErrOperationNotPermitted.Error()}
	case errors.Is(err, errMalformed):
		return models.ErrorPayload{Status: CodeValidation, Message: err.Error()}
	}
	return models.ErrorPayload{Status: CodeInternal, Message: "internal server error"}
}

func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: missing data", errMalformed)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	return nil
}

func requireRoomID(roomID string) error {
	if roomID == "" {
		return fmt.Errorf("%w: roomId is required", errMalformed)
	}
	return nil
}
