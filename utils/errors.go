package utils

import "errors"

type PermError string

func (e PermError) Error() string {
	return string(e)
}

func (e PermError) IsPermanent() bool {
	return true
}

// IsPermError reports whether anything in err's chain says it should not be retried
func IsPermError(err error) bool {
	var perm interface{ IsPermanent() bool }
	if errors.As(err, &perm) {
		return perm.IsPermanent()
	}
	return false
}
