package bn254

import "errors"

var (
	ErrInvalidScalar        = errors.New("bn254: invalid private scalar")
	ErrInvalidPublicKey     = errors.New("bn254: invalid public key")
	ErrMalformedSignature   = errors.New("bn254: malformed signature")
	ErrEmptyAggregate       = errors.New("bn254: nothing to aggregate")
	ErrDuplicateContributor = errors.New("bn254: duplicate contributor in aggregate")
)
