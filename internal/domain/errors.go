package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState the cache was used out of order, e.g. initialized twice.
	ErrInvalidState = errors.New("invalid cache state")
	// ErrNotFound no balance is known for the asset.
	ErrNotFound = errors.New("balance not found")
	// ErrEmptyAsset a record without an asset identifier.
	ErrEmptyAsset = errors.New("empty asset identifier")
	// ErrNegativeAmount a record with a negative free or locked amount.
	ErrNegativeAmount = errors.New("negative amount")
)

// ParseError a balance record that could not be converted and was dropped.
type ParseError struct {
	Asset string
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s balance field %s=%q: %v", e.Asset, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
