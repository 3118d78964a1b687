package usecase

import "chatwidget/internal/domain"

// sessionHooks lets sub-controllers report back to the owning session
// without holding their own locks.
type sessionHooks struct {
	changed func(reason domain.ChangeReason)
	notice  func(code domain.ErrorCode, detail string)
}

func (h sessionHooks) publish(reason domain.ChangeReason) {
	if h.changed != nil {
		h.changed(reason)
	}
}

func (h sessionHooks) raise(code domain.ErrorCode, detail string) {
	if h.notice != nil {
		h.notice(code, detail)
	}
}
