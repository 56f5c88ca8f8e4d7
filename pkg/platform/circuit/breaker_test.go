package circuit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intranet/pkg/platform/sentinel"
)

var errBoom = errors.New("boom")

func fail() (string, error)    { return "", errBoom }
func succeed() (string, error) { return "ok", nil }

func TestBreaker_InitialState(t *testing.T) {
	b := New[string]("cdn")
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "cdn", b.Name())
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := New[string]("cdn", WithFailureThreshold(3), WithOpenTimeout(time.Minute))

	for range 3 {
		_, err := b.Execute(fail)
		require.ErrorIs(t, err, errBoom)
	}
	assert.Equal(t, StateOpen, b.State())

	_, err := b.Execute(succeed)
	require.ErrorIs(t, err, sentinel.ErrUnavailable)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := New[string]("cdn", WithFailureThreshold(3))

	_, _ = b.Execute(fail)
	_, _ = b.Execute(fail)
	out, err := b.Execute(succeed)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	_, _ = b.Execute(fail)
	_, _ = b.Execute(fail)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenProbeCloses(t *testing.T) {
	var transitions []State
	b := New[string]("cdn",
		WithFailureThreshold(1),
		WithOpenTimeout(10*time.Millisecond),
		WithStateChange(func(_ string, _, to State) { transitions = append(transitions, to) }),
	)

	_, _ = b.Execute(fail)
	require.Equal(t, StateOpen, b.State())

	time.Sleep(20 * time.Millisecond)
	_, err := b.Execute(succeed)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
}

func TestBreaker_SuccessFilterKeepsClosed(t *testing.T) {
	errRejected := errors.New("rejected")
	b := New[string]("cdn",
		WithFailureThreshold(1),
		WithSuccessFilter(func(err error) bool { return err == nil || errors.Is(err, errRejected) }),
	)

	_, err := b.Execute(func() (string, error) { return "", errRejected })
	require.ErrorIs(t, err, errRejected)
	assert.Equal(t, StateClosed, b.State())

	_, _ = b.Execute(fail)
	assert.Equal(t, StateOpen, b.State())
}
