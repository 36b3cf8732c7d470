package notifier

import (
	"context"
	"errors"
	"fmt"
	"log"

	"signalist/internal/model"
)

// Notifier delivers a payload to one recipient.
type Notifier interface {
	Notify(ctx context.Context, to model.Recipient, payload model.Payload) error
}

// Router picks channels by notification method: a triggered alert uses the
// method stored on the alert, a pattern batch uses the recipient's method.
// A nil channel is skipped with a warning.
type Router struct {
	Email Notifier
	Push  Notifier
}

func (r *Router) Notify(ctx context.Context, to model.Recipient, payload model.Payload) error {
	method := to.Method
	if ta, ok := payload.(model.TriggeredAlert); ok {
		method = ta.Alert.Method
	}
	if method == "" {
		method = model.MethodEmail
	}

	var errs []error
	sent := 0
	if method.Email() {
		if r.Email == nil {
			log.Printf("[WARN] email channel not configured, skipping %s", to.UserID)
		} else if err := r.Email.Notify(ctx, to, payload); err != nil {
			errs = append(errs, fmt.Errorf("email: %w", err))
		} else {
			sent++
		}
	}
	if method.Push() {
		if r.Push == nil {
			log.Printf("[WARN] push channel not configured, skipping %s", to.UserID)
		} else if err := r.Push.Notify(ctx, to, payload); err != nil {
			errs = append(errs, fmt.Errorf("push: %w", err))
		} else {
			sent++
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify %s (%d sent): %w", to.UserID, sent, errors.Join(errs...))
	}
	return nil
}
