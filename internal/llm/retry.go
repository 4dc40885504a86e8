package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// CompleteWithRetry calls c.Complete, retrying with exponential backoff while
// the backend is unavailable. Any other failure is returned immediately;
// malformed replies are the caller's concern because only the caller knows
// whether re-prompting can help.
func CompleteWithRetry(ctx context.Context, c Client, messages []Message) (string, error) {
	var reply string
	operation := func() error {
		r, err := c.Complete(ctx, messages)
		if err != nil {
			if errors.Is(err, ErrBackendUnavailable) {
				return err
			}
			return backoff.Permanent(err)
		}
		reply = r
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return reply, nil
}
