package a

import (
	"errors"
	"io"
)

var ErrEdgeNotFound = errors.New("edge not found")

var errLocal = errors.New("local")

func bad(err error) bool {
	if err == ErrEdgeNotFound { // want "compare with errors.Is: ErrEdgeNotFound may be wrapped"
		return true
	}
	return err != io.ErrUnexpectedEOF // want "compare with errors.Is: ErrUnexpectedEOF may be wrapped"
}

func good(err error) bool {
	if err == nil {
		return false
	}
	if err == errLocal {
		return true
	}
	return errors.Is(err, ErrEdgeNotFound)
}
