package domain

import "errors"

var (
	ErrAuthentication    = errors.New("authentication error")
	ErrUnauthorized      = errors.New("user is not a member of this workspace")
	ErrWorkspaceNotFound = errors.New("workspace not found")
	ErrMessageNotFound   = errors.New("message not found")
	ErrParentNotFound    = errors.New("parent message not found")
	ErrStore             = errors.New("store operation failed")
	ErrShutdown          = errors.New("store is shutting down")
)
