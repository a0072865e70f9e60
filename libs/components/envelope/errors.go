package envelope

import "errors"

// ErrEncryption matches every *EncryptionError via errors.Is.
var ErrEncryption = errors.New("envelope: encryption failed")

// EncryptionError reports which step of sealing or opening failed. It never
// carries plaintext.
type EncryptionError struct {
	Op  string
	Err error
}

func (e *EncryptionError) Error() string {
	if e.Err == nil {
		return "envelope: " + e.Op
	}
	return "envelope: " + e.Op + ": " + e.Err.Error()
}

func (e *EncryptionError) Unwrap() error { return e.Err }

// Is reports whether target is ErrEncryption.
func (e *EncryptionError) Is(target error) bool { return target == ErrEncryption }

func fail(op string, err error) error {
	return &EncryptionError{Op: op, Err: err}
}
