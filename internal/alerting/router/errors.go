package router

import "fmt"

// DeliveryError is an alert that could not be delivered after retries. The
// occurrence behind it has already fallen back to the digest path.
type DeliveryError struct {
	Channel     string
	ErrorID     string
	Fingerprint string
	Err         error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("alert delivery to %s failed for %s (%s): %v", e.Channel, e.ErrorID, e.Fingerprint, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
