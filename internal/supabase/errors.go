package supabase

import (
	"errors"
	"regexp"
	"strings"

	"github.com/lib/pq"
)

// SQLSTATE codes the handlers care about.
const (
	uniqueViolation = "23505"
	checkViolation  = "23514"
)

var (
	ErrAlreadyExists  = errors.New("record already exists")
	ErrCheckViolation = errors.New("check constraint violated")
	ErrBucketNotFound = errors.New("bucket not found")
)

// DBError is an insert failure carrying the database's SQLSTATE and message.
type DBError struct {
	Code    string
	Message string
	Err     error
}

func (e *DBError) Error() string {
	return e.Message
}

func (e *DBError) Unwrap() error {
	return e.Err
}

func (e *DBError) Is(target error) bool {
	switch target {
	case ErrAlreadyExists:
		return e.Code == uniqueViolation
	case ErrCheckViolation:
		return e.Code == checkViolation
	}
	return false
}

// fromPQ converts a lib/pq error into a DBError; other errors pass through.
func fromPQ(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &DBError{Code: string(pqErr.Code), Message: pqErr.Message, Err: err}
	}
	return err
}

// postgrest-go reports failures as "(<code>) <message>".
var postgrestErrPattern = regexp.MustCompile(`^\(([0-9A-Z]{5})\)\s*(.*)$`)

func fromPostgrest(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if m := postgrestErrPattern.FindStringSubmatch(msg); m != nil {
		return &DBError{Code: m[1], Message: m[2], Err: err}
	}
	if strings.Contains(msg, uniqueViolation) || strings.Contains(msg, "duplicate key value") {
		return &DBError{Code: uniqueViolation, Message: msg, Err: err}
	}
	return &DBError{Message: msg, Err: err}
}

func isMissingBucketError(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "bucket not found")
}

func isBucketAlreadyExistsError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "409") ||
		strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "duplicate")
}
