package wallet

import (
	"context"
	"errors"
	"fmt"
)

// Device error kinds beyond ErrUserRejected.
var (
	ErrDeviceLocked = errors.New("device locked or wrong password")
	ErrWrongApp     = errors.New("wrong application open on device")
	ErrInvalidData  = errors.New("device rejected request data")
	ErrDeviceStatus = errors.New("unexpected device status")
)

// APDU status words reported by secure elements.
const (
	StatusOK                 = 0x9000
	StatusSecurityNotMet     = 0x6982
	StatusConditionsNotMet   = 0x6985
	StatusCommandNotAllowed  = 0x6986
	StatusInvalidData        = 0x6a80
	StatusWrongParameters    = 0x6b00
	StatusInsNotSupported    = 0x6d00
	StatusClaNotSupported    = 0x6e00
	StatusDeviceNotConnected = 0x6f00
)

var deviceStatusText = map[int]struct {
	kind error
	msg  string
}{
	StatusSecurityNotMet:     {ErrDeviceLocked, "security status not satisfied, unlock the device"},
	StatusConditionsNotMet:   {ErrUserRejected, "request denied on device"},
	StatusCommandNotAllowed:  {ErrUserRejected, "command not allowed, request denied on device"},
	StatusInvalidData:        {ErrInvalidData, "invalid data sent to device"},
	StatusWrongParameters:    {ErrInvalidData, "wrong parameters sent to device"},
	StatusInsNotSupported:    {ErrWrongApp, "instruction not supported, open the Ethereum application"},
	StatusClaNotSupported:    {ErrWrongApp, "class not supported, open the Ethereum application"},
	StatusDeviceNotConnected: {ErrDeviceStatus, "device not connected"},
}

// statusCoder is implemented by device errors that carry a status word.
type statusCoder interface {
	StatusCode() uint16
}

// rpcCoder is implemented by JSON-RPC errors.
type rpcCoder interface {
	ErrorCode() int
}

// TranslateDeviceError is the ErrorTranslator for secure-element backends.
func TranslateDeviceError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Op: op, Path: path, Message: err.Error(), Err: err}
	}

	var sc statusCoder
	if !errors.As(err, &sc) {
		return &TransportError{Op: op, Path: path, Message: err.Error(), Err: err}
	}
	code := int(sc.StatusCode())
	entry, ok := deviceStatusText[code]
	if !ok {
		entry.kind = ErrDeviceStatus
		entry.msg = "unknown device status"
	}
	return &TransportError{
		Op:      op,
		Path:    path,
		Code:    code,
		Message: entry.msg,
		Err:     fmt.Errorf("%w: %w", entry.kind, err),

		statusWord: true,
	}
}

// EIP-1193 provider error codes.
const (
	ProviderUserRejected      = 4001
	ProviderUnauthorized      = 4100
	ProviderUnsupportedMethod = 4200
	ProviderDisconnected      = 4900
	ProviderChainDisconnected = 4901
)

// TranslateProviderError is the ErrorTranslator for provider backends.
func TranslateProviderError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	var rc rpcCoder
	if !errors.As(err, &rc) {
		return &TransportError{Op: op, Path: path, Message: err.Error(), Err: err}
	}
	code := rc.ErrorCode()
	out := &TransportError{Op: op, Path: path, Code: code, Message: err.Error(), Err: err}
	switch code {
	case ProviderUserRejected, ProviderUnauthorized:
		out.Err = fmt.Errorf("%w: %w", ErrUserRejected, err)
	case ProviderDisconnected, ProviderChainDisconnected:
		out.Err = fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	return out
}
