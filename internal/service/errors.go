package service

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure.
type Kind string

const (
	KindItemNotFound          Kind = "ItemNotFound"
	KindInsufficientStock     Kind = "InsufficientStock"
	KindDiscountIneligible    Kind = "DiscountIneligible"
	KindCartEmpty             Kind = "CartEmpty"
	KindDuplicateReference    Kind = "DuplicateReference"
	KindRewardIssuanceFailed  Kind = "RewardIssuanceFailed"
	KindInvalidRequest        Kind = "InvalidRequest"
	KindRewardNotFound        Kind = "RewardNotFound"
	KindRewardAlreadyRedeemed Kind = "RewardAlreadyRedeemed"
	KindRewardExpired         Kind = "RewardExpired"
	KindInvalidTransition     Kind = "InvalidTransition"
	KindAlreadyReceived       Kind = "AlreadyReceived"
)

// Sentinels for errors.Is. Any *Error of the same kind matches.
var (
	ErrItemNotFound          = &Error{Kind: KindItemNotFound}
	ErrInsufficientStock     = &Error{Kind: KindInsufficientStock}
	ErrDiscountIneligible    = &Error{Kind: KindDiscountIneligible}
	ErrCartEmpty             = &Error{Kind: KindCartEmpty}
	ErrDuplicateReference    = &Error{Kind: KindDuplicateReference}
	ErrRewardIssuanceFailed  = &Error{Kind: KindRewardIssuanceFailed}
	ErrInvalidRequest        = &Error{Kind: KindInvalidRequest}
	ErrRewardNotFound        = &Error{Kind: KindRewardNotFound}
	ErrRewardAlreadyRedeemed = &Error{Kind: KindRewardAlreadyRedeemed}
	ErrRewardExpired         = &Error{Kind: KindRewardExpired}
	ErrInvalidTransition     = &Error{Kind: KindInvalidTransition}
	ErrAlreadyReceived       = &Error{Kind: KindAlreadyReceived}
)

// Error is a domain failure surfaced to callers.
type Error struct {
	Kind      Kind
	ProductID int64
	Message   string
	Err       error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func productError(kind Kind, productID int64, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, ProductID: productID, Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the domain kind of err, or "" for infrastructure failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// AsError extracts the domain error from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
