package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeFetch represents network and transport errors while getting a page
	ErrorTypeFetch ErrorType = "fetch"
	// ErrorTypeBotDetected represents a challenge page served instead of content
	ErrorTypeBotDetected ErrorType = "bot_detected"
	// ErrorTypeNoItems represents a page without any listing entries
	ErrorTypeNoItems ErrorType = "no_items"
	// ErrorTypeParsing represents HTML parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeStoreCorrupt represents persisted state that cannot be read or decoded
	ErrorTypeStoreCorrupt ErrorType = "store_corrupt"
	// ErrorTypeStore represents other persisted state failures (write, connection)
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeNotify represents notification transport errors
	ErrorTypeNotify ErrorType = "notify"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// Sentinels for errors.Is checks. A *ScanError matches the sentinel of its type.
var (
	ErrFetch         = &ScanError{Type: ErrorTypeFetch}
	ErrBotDetected   = &ScanError{Type: ErrorTypeBotDetected}
	ErrNoItemsFound  = &ScanError{Type: ErrorTypeNoItems}
	ErrParsing       = &ScanError{Type: ErrorTypeParsing}
	ErrStoreCorrupt  = &ScanError{Type: ErrorTypeStoreCorrupt}
	ErrStore         = &ScanError{Type: ErrorTypeStore}
	ErrNotify        = &ScanError{Type: ErrorTypeNotify}
	ErrConfiguration = &ScanError{Type: ErrorTypeConfiguration}
)

// ScanError represents a failure in one step of a topic scan
type ScanError struct {
	Type    ErrorType
	Topic   string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *ScanError) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Type)
	if e.Topic != "" {
		prefix += " " + e.Topic + ":"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s - %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap returns the underlying error
func (e *ScanError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a ScanError of the same type.
func (e *ScanError) Is(target error) bool {
	t, ok := target.(*ScanError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// TypeOf returns the ErrorType of the first ScanError in err's chain, or "".
func TypeOf(err error) ErrorType {
	var se *ScanError
	if stderrors.As(err, &se) {
		return se.Type
	}
	return ""
}

// MessageOf returns the human readable cause for err. For a ScanError this is
// its Message, otherwise the plain error text.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var se *ScanError
	if stderrors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}

// New creates a new ScanError
func New(errType ErrorType, topic, message string, err error) *ScanError {
	return &ScanError{
		Type:    errType,
		Topic:   topic,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewFetch creates a new fetch error
func NewFetch(topic, message string, err error) *ScanError {
	return New(ErrorTypeFetch, topic, message, err)
}

// NewBotDetected creates a new bot detection error
func NewBotDetected(topic, title string) *ScanError {
	return New(ErrorTypeBotDetected, topic, "bot detection", fmt.Errorf("challenge page title %q", title))
}

// NewNoItemsFound creates a new missing listing entries error
func NewNoItemsFound(topic, selector string) *ScanError {
	return New(ErrorTypeNoItems, topic, "could not find feed items", fmt.Errorf("no nodes match %q", selector))
}

// NewParsing creates a new parsing error
func NewParsing(topic, message string, err error) *ScanError {
	return New(ErrorTypeParsing, topic, message, err)
}

// NewStoreCorrupt creates a new corrupt state error
func NewStoreCorrupt(topic, message string, err error) *ScanError {
	return New(ErrorTypeStoreCorrupt, topic, message, err)
}

// NewStore creates a new store error
func NewStore(topic, message string, err error) *ScanError {
	return New(ErrorTypeStore, topic, message, err)
}

// NewNotify creates a new notification error
func NewNotify(topic, message string, err error) *ScanError {
	return New(ErrorTypeNotify, topic, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *ScanError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// WithTopic returns a copy of err with Topic set when err is a ScanError
// without one. Other errors are returned unchanged.
func WithTopic(err error, topic string) error {
	var se *ScanError
	if !stderrors.As(err, &se) || se.Topic != "" {
		return err
	}
	cp := *se
	cp.Topic = topic
	return &cp
}
