package services

import "errors"

// FanoutPublisher delivers every event to all of its publishers.
// One failing sink does not stop the others.
type FanoutPublisher []EventPublisher

// NewFanoutPublisher drops nil publishers
func NewFanoutPublisher(publishers ...EventPublisher) FanoutPublisher {
	out := make(FanoutPublisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (f FanoutPublisher) Publish(subject string, payload interface{}) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(subject, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
