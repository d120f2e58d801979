package objectstore

import "errors"

// ErrObjectNotFound is returned by Get/Head for a missing key; Delete of a
// missing key succeeds.
var ErrObjectNotFound = errors.New("objectstore: object not found")
