package processor

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyText         = errors.New("empty text")
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrTooLarge          = errors.New("document too large")
	ErrDuplicate         = errors.New("duplicate document")
	ErrPersist           = errors.New("persisting result failed")
)

// ProcessError carries the document and step a failure belongs to.
type ProcessError struct {
	DocumentID string
	Op         string
	BaseErr    error
	Detail     string
}

func (e *ProcessError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (op: %s, document: %s): %s", e.BaseErr, e.Op, e.DocumentID, e.Detail)
	}
	return fmt.Sprintf("%s (op: %s, document: %s)", e.BaseErr, e.Op, e.DocumentID)
}

func (e *ProcessError) Unwrap() error {
	return e.BaseErr
}

func (e *ProcessError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

func newValidationError(documentID string, base error, detail string) error {
	return &ProcessError{DocumentID: documentID, Op: "validate", BaseErr: base, Detail: detail}
}

func newDuplicateError(documentID, existing string) error {
	return &ProcessError{DocumentID: documentID, Op: "dedup", BaseErr: ErrDuplicate, Detail: "same content as " + existing}
}

func newPersistError(documentID string, err error) error {
	return &ProcessError{DocumentID: documentID, Op: "persist", BaseErr: ErrPersist, Detail: err.Error()}
}
