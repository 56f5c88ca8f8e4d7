package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"intranet/internal/platform/logger"
)

type countingPurger struct {
	calls atomic.Int32
	err   error
}

func (p *countingPurger) PurgeExpired(context.Context) (int64, error) {
	p.calls.Add(1)
	return 3, p.err
}

func TestRunJanitor(t *testing.T) {
	defer goleak.VerifyNone(t)

	for _, tc := range []struct {
		name string
		err  error
	}{
		{name: "purges on every tick"},
		{name: "keeps going after a failure", err: errors.New("db down")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := &countingPurger{err: tc.err}
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				runJanitor(ctx, p, time.Millisecond, logger.New("test", "error"))
				close(done)
			}()

			assert.Eventually(t, func() bool { return p.calls.Load() >= 2 }, time.Second, time.Millisecond)
			cancel()
			<-done
		})
	}
}
