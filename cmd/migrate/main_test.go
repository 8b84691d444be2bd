package main

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	t.Setenv(envPostgresDSN, "")

	opts, err := parseFlags([]string{"-direction=DOWN", "-steps=2", "-dsn= postgres://shop@localhost/shop "})
	require.NoError(t, err)
	assert.Equal(t, "down", opts.direction)
	assert.Equal(t, 2, opts.steps)
	assert.Equal(t, "postgres://shop@localhost/shop", opts.dsn)

	_, err = parseFlags([]string{"-direction=status"})
	require.ErrorIs(t, err, errDSNRequired)

	_, err = parseFlags([]string{"-direction=sideways", "-dsn=x"})
	require.ErrorContains(t, err, "unsupported direction")

	_, err = parseFlags([]string{"-steps=-1", "-dsn=x"})
	require.ErrorContains(t, err, "steps must be >= 0")

	_, err = parseFlags([]string{"-unknown"})
	require.Error(t, err)
}

func TestParseFlags_DSNFromEnv(t *testing.T) {
	t.Setenv(envPostgresDSN, "postgres://env@localhost/shop")

	opts, err := parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, "up", opts.direction)
	assert.Equal(t, "postgres://env@localhost/shop", opts.dsn)
}

func TestRun_StatusUpDown(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("SHOP_POSTGRES_TEST_DSN"))
	if dsn == "" {
		t.Skip("SHOP_POSTGRES_TEST_DSN is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, direction := range []string{"status", "up", "down", "up"} {
		var out bytes.Buffer
		err := run(ctx, options{direction: direction, steps: 0, dsn: dsn}, &out)
		if err != nil && direction == "status" {
			t.Skipf("postgres is not available: %v", err)
		}
		require.NoError(t, err, direction)
		assert.Contains(t, out.String(), "migrate "+direction+" ok")
	}
}

func TestFailExits(t *testing.T) {
	if os.Getenv("MIGRATE_TEST_FAIL_EXIT") == "1" {
		fail("forced failure %d", 42)
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestFailExits")
	cmd.Env = append(os.Environ(), "MIGRATE_TEST_FAIL_EXIT=1")
	err := cmd.Run()
	require.Error(t, err)
	exitErr, ok := err.(*exec.ExitError)
	require.True(t, ok)
	assert.NotZero(t, exitErr.ExitCode())
}
