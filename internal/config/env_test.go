// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseHelpers(t *testing.T) {
	t.Setenv("REFTABS_T_STRING", "hello")
	t.Setenv("REFTABS_T_EMPTY", "")
	t.Setenv("REFTABS_T_INT", "42")
	t.Setenv("REFTABS_T_BADINT", "4x2")
	t.Setenv("REFTABS_T_FLOAT", "0.5")
	t.Setenv("REFTABS_T_DUR", "90s")
	t.Setenv("REFTABS_T_BOOL", "No")

	assert.Equal(t, "hello", ParseString("REFTABS_T_STRING", "d"))
	assert.Equal(t, "d", ParseString("REFTABS_T_EMPTY", "d"))
	assert.Equal(t, "d", ParseString("REFTABS_T_UNSET", "d"))
	assert.Equal(t, 42, ParseInt("REFTABS_T_INT", 1))
	assert.Equal(t, 1, ParseInt("REFTABS_T_BADINT", 1))
	assert.InDelta(t, 0.5, ParseFloat("REFTABS_T_FLOAT", 1), 1e-9)
	assert.Equal(t, 90*time.Second, ParseDuration("REFTABS_T_DUR", time.Second))
	assert.Equal(t, time.Second, ParseDuration("REFTABS_T_STRING", time.Second))
	assert.False(t, ParseBool("REFTABS_T_BOOL", true))
	assert.True(t, ParseBool("REFTABS_T_STRING", true))
}

func TestParseEnv_MasksSensitiveValues(t *testing.T) {
	t.Setenv("REFTABS_REDIS_PASSWORD", "s3cret")
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	got := parseEnv(logger, "REFTABS_REDIS_PASSWORD", "", "string", func(s string) (string, error) { return s, nil })

	assert.Equal(t, "s3cret", got)
	assert.NotContains(t, buf.String(), "s3cret")
	assert.Contains(t, buf.String(), `"sensitive":true`)
}
