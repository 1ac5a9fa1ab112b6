package billing

import "errors"

var (
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrMissingTimestamp   = errors.New("missing webhook timestamp")
	ErrStaleTimestamp     = errors.New("webhook timestamp outside the accepted window")
	ErrInvalidPayload     = errors.New("webhook payload is not a JSON object")
	ErrMalformedReference = errors.New("missing or malformed payment reference")
	ErrMissingTier        = errors.New("payment does not carry a silver or gold tier")
	ErrUnknownCommunity   = errors.New("referenced community does not exist")
	ErrProvider           = errors.New("payment provider request failed")
)
