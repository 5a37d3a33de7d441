package validate

// messages.go turns errors into user-facing messages carrying a code that
// can be quoted to support.
//
//	SCH001  Schema file not found
//	SCH002  Schema file could not be parsed
//	INP001  Input CSV not found
//	INP002  Input is not a valid CSV
//	VAL001  Validation failed
//	RPT001  Report could not be saved
//	RPT002  Report not found
//	RUN001  Too many validations in progress
//	RUN002  Request was cancelled
//	RUN003  Request timed out
//	RUN004  Run history is not enabled
//	RUN005  Run not found
//	ERR000  An unexpected error occurred
//
// Known sentinels are matched with errors.Is. Errors that only survive as
// text (other packages, other processes) fall back to a case-insensitive
// substring match.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/csvgate/internal/report"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

// errorRule maps one kind of error to a message. A rule matches when match
// accepts err or, failing that, when the error text contains text.
type errorRule struct {
	match func(error) bool
	text  string
	msg   UserMessage
}

func (r errorRule) matches(err error, lower string) bool {
	if r.match != nil && r.match(err) {
		return true
	}
	return r.text != "" && strings.Contains(lower, r.text)
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

func isPersistError(err error) bool {
	var pe *report.PersistError
	return errors.As(err, &pe)
}

// errorRules is ordered: the first match wins.
var errorRules = []errorRule{
	{match: is(ErrSchemaNotFound), text: "schema not found", msg: UserMessage{
		Code: "SCH001", Message: "Schema file not found",
		Action: "Check SCHEMA_PATH or pass --config",
	}},
	{match: is(ErrSchemaMalformed), text: "schema malformed", msg: UserMessage{
		Code: "SCH002", Message: "Schema file could not be parsed",
		Action: "Fix the YAML syntax of the schema file",
	}},
	{match: is(ErrInputNotFound), text: "input not found", msg: UserMessage{
		Code: "INP001", Message: "Input CSV not found",
		Action: "Stage the file first or check the path",
	}},
	{match: is(ErrInputMalformed), text: "malformed csv", msg: UserMessage{
		Code: "INP002", Message: "Input is not a valid CSV",
		Action: "Ensure every row has at most as many fields as the header",
	}},
	{match: is(ErrValidationFailed), text: "validation failed", msg: UserMessage{
		Code: "VAL001", Message: "Validation failed",
		Action: "Review the report for the failing expectations",
	}},
	{match: isPersistError, text: "persist report", msg: UserMessage{
		Code: "RPT001", Message: "Report could not be saved",
		Action: "Check that REPORT_DIR is writable",
	}},
	{match: is(report.ErrNotFound), text: "report not found", msg: UserMessage{
		Code: "RPT002", Message: "Report not found",
		Action: "Run a validation with saving enabled first",
	}},
	{match: is(ErrTooManyRuns), text: "too many concurrent validation runs", msg: UserMessage{
		Code: "RUN001", Message: "Too many validations in progress",
		Action: "Please wait a moment and try again",
	}},
	{match: is(context.Canceled), msg: UserMessage{
		Code: "RUN002", Message: "Request was cancelled",
		Action: "Please try again",
	}},
	{match: is(context.DeadlineExceeded), msg: UserMessage{
		Code: "RUN003", Message: "Request timed out",
		Action: "Try again later or validate a smaller file",
	}},
	{text: "run history not configured", msg: UserMessage{
		Code: "RUN004", Message: "Run history is not enabled",
		Action: "Set DATABASE_URL to record validation runs",
	}},
	{text: "run not found", msg: UserMessage{
		Code: "RUN005", Message: "Run not found",
		Action: "Check the run id from the runs list",
	}},
}

// defaultMessage is returned when no rule matches (ERR000).
var defaultMessage = UserMessage{
	Code:    "ERR000",
	Message: "An unexpected error occurred",
	Action:  "Please try again or check the server logs",
}

// MapError converts an error to a user-facing message. Internal errors
// always map to ERR000 so their causes never leak to clients.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	var internal *InternalError
	if errors.As(err, &internal) {
		return defaultMessage
	}

	lower := strings.ToLower(err.Error())
	for _, r := range errorRules {
		if r.matches(err, lower) {
			return r.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Code == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err has a specific message rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	return err != nil && MapError(err).Code != defaultMessage.Code
}
