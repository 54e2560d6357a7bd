// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package taskloop

import (
	"errors"

	"github.com/joeycumines/logiface"
)

// runOptions holds configuration options for a session.
type runOptions struct {
	sleeper Sleeper
	logger  *logiface.Logger[logiface.Event]
	metrics *Metrics
}

// --- Run Options ---

// Option configures a session started by [RunWith].
type Option interface {
	applyRun(*runOptions) error
}

// runOptionImpl implements Option.
type runOptionImpl struct {
	applyRunFunc func(*runOptions) error
}

func (r *runOptionImpl) applyRun(opts *runOptions) error {
	return r.applyRunFunc(opts)
}

// WithSleeper sets the strategy used to suspend the session goroutine when
// no tasks are ready. The sleeper is borrowed: the caller remains
// responsible for any cleanup it needs after [RunWith] returns.
//
// The default (used when this option is absent) parks on a wake file
// descriptor where the platform provides one, falling back to a channel.
func WithSleeper(s Sleeper) Option {
	return &runOptionImpl{func(opts *runOptions) error {
		if s == nil {
			return errors.New("taskloop: nil sleeper")
		}
		opts.sleeper = s
		return nil
	}}
}

// WithLogger sets the logger used for session diagnostics. Accepts the
// generic-erased form; call [logiface.Logger.Logger] to convert a typed
// logger. A nil logger disables logging, which is also the default.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &runOptionImpl{func(opts *runOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMetrics attaches a caller-owned [Metrics] instance, updated for the
// duration of the session. A nil value disables collection, which is also
// the default.
func WithMetrics(m *Metrics) Option {
	return &runOptionImpl{func(opts *runOptions) error {
		opts.metrics = m
		return nil
	}}
}

// resolveRunOptions applies Option instances to runOptions.
func resolveRunOptions(opts []Option) (*runOptions, error) {
	cfg := &runOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyRun(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
