package services

import "errors"

var (
	ErrApartmentNotFound = errors.New("apartment not found")
	ErrInvalidMeterType  = errors.New("invalid meter type")
	ErrInvalidValue      = errors.New("invalid meter value")
	ErrNoReading         = errors.New("no meter value found")
	ErrTokenInvalid      = errors.New("invalid or already used token")
	ErrTokenExpired      = errors.New("token has expired")
)
