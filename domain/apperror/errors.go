// Package apperror defines the failure kinds surfaced by the extraction pipeline.
//
// Every typed error matches its sentinel with errors.Is, so callers can branch on
// the kind without caring which stage produced it:
//
//	if errors.Is(err, apperror.ErrNotFound) { ... }
//
//	var upErr *apperror.UpstreamError
//	if errors.As(err, &upErr) {
//		fmt.Println(upErr.Stage, upErr.Status)
//	}
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrUpstream  = errors.New("upstream failure")
	ErrIO        = errors.New("io failure")
	ErrConfig    = errors.New("invalid configuration")
	ErrPageLimit = errors.New("page limit exceeded")
)

// NotFoundError is returned when a channel handle resolves to nothing.
type NotFoundError struct {
	Handle string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("channel %q not found", e.Handle)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// UpstreamError wraps a transport failure or a non-success response from the API.
type UpstreamError struct {
	// Stage is the API resource being called ("channels", "playlistItems", "videos").
	Stage string
	// Resource identifies what was requested (handle, playlist id, batch range).
	Resource string
	// Status is the HTTP status code, 0 when the request never got a response.
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Stage, e.Resource, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Resource, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// IOError is returned when output cannot be persisted.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }

// ConfigError reports a missing or invalid configuration option.
type ConfigError struct {
	Option string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Option, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }
