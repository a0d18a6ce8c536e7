package service

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound        = errors.New("session not found")
	ErrRoundNotActive         = errors.New("no round is active")
	ErrStaleRound             = errors.New("round is no longer active")
	ErrRoundAlreadyActive     = errors.New("a round is already active")
	ErrPollNotActive          = errors.New("poll not active")
	ErrMalformedPayload       = errors.New("malformed payload")
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	ErrDuplicateCode          = errors.New("could not allocate a unique session code")
	ErrNotInSession           = errors.New("connection has not joined a session")
	ErrQnaNotFound            = errors.New("qna item not found")
	ErrUnknownEvent           = errors.New("unknown event")
)

// errorCodes 依序比對，第一個符合者決定回傳給客戶端的錯誤代碼
var errorCodes = []struct {
	err  error
	code string
}{
	{ErrSessionNotFound, "session_not_found"},
	{ErrRoundNotActive, "round_not_active"},
	{ErrStaleRound, "stale_round"},
	{ErrRoundAlreadyActive, "round_already_active"},
	{ErrPollNotActive, "poll_not_active"},
	{ErrMalformedPayload, "malformed_payload"},
	{ErrPersistenceUnavailable, "persistence_unavailable"},
	{ErrDuplicateCode, "duplicate_code"},
	{ErrNotInSession, "not_in_session"},
	{ErrQnaNotFound, "qna_not_found"},
	{ErrUnknownEvent, "unknown_event"},
}

// ErrorCode 將錯誤轉為穩定的代碼字串
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "internal"
}

// ErrorPayload 是 error 事件的內容，只送給發出請求的連線
type ErrorPayload struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

func NewErrorPayload(err error) ErrorPayload {
	return ErrorPayload{Code: ErrorCode(err), Msg: err.Error()}
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedPayload, fmt.Sprintf(format, args...))
}
