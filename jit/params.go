// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Tunable limits, with defaults that can be overridden from the
// environment.

package jit

import (
	"github.com/pkg/errors"
	"github.com/xyproto/env/v2"
)

type ParamsT struct {
	MaxRecord int // maximum instructions recorded per trace
	MaxConst  int // maximum constants interned per trace
	SizeMCode int // size of each machine code chunk in bytes
	MaxMCode  int // total machine code budget in bytes
	HotLoop   int // iterations before a loop is considered hot
}

func DefaultParams() *ParamsT {
	return &ParamsT{
		MaxRecord: 4000,
		MaxConst:  500,
		SizeMCode: 32 * 1024,
		MaxMCode:  512 * 1024,
		HotLoop:   56,
	}
}

// ParamsFromEnv starts from the defaults and applies any TRACEJIT_*
// environment variables.

func ParamsFromEnv() (*ParamsT, error) {
	params := DefaultParams()
	params.MaxRecord = env.Int("TRACEJIT_MAXRECORD", params.MaxRecord)
	params.MaxConst = env.Int("TRACEJIT_MAXCONST", params.MaxConst)
	params.SizeMCode = env.Int("TRACEJIT_SIZEMCODE", params.SizeMCode)
	params.MaxMCode = env.Int("TRACEJIT_MAXMCODE", params.MaxMCode)
	params.HotLoop = env.Int("TRACEJIT_HOTLOOP", params.HotLoop)
	if err := params.Check(); err != nil {
		return nil, err
	}
	return params, nil
}

func (params *ParamsT) Check() error {
	if params.MaxRecord < 1 || params.MaxConst < 1 {
		return errors.Errorf("MaxRecord %d and MaxConst %d must be positive",
			params.MaxRecord, params.MaxConst)
	}
	if int(provSplit) <= params.MaxRecord || int(provSplit) <= params.MaxConst ||
		maxTraceRefs <= params.MaxRecord+params.MaxConst {
		return errors.Errorf("MaxRecord %d + MaxConst %d does not fit in a reference",
			params.MaxRecord, params.MaxConst)
	}
	if params.SizeMCode < 1 || params.MaxMCode < params.SizeMCode {
		return errors.Errorf("machine code sizes %d and %d are unusable",
			params.SizeMCode, params.MaxMCode)
	}
	if params.HotLoop < 1 {
		return errors.Errorf("HotLoop %d must be positive", params.HotLoop)
	}
	return nil
}
