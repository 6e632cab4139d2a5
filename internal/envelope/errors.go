package envelope

import "errors"

// ErrNoInscription is the sentinel returned when a witness script carries
// no (further) envelope. It is not a parse failure.
var ErrNoInscription = errors.New("envelope: no inscription")

// ErrDuplicateTag is returned when a field tag repeats within one envelope.
var ErrDuplicateTag = errors.New("envelope: duplicate field tag")

// ErrUnrecognizedEvenField is returned when an envelope carries a field
// whose tag's first byte is even and which this parser does not know how
// to interpret. Odd unknown tags are ignored (the soft-fork convention);
// even ones invalidate the envelope.
var ErrUnrecognizedEvenField = errors.New("envelope: unrecognized even field")
