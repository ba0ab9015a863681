package clearpart

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrDeviceNotFound - returned when a device name is not in the graph.
var ErrDeviceNotFound = errors.New("device not found")

// ErrPolicyViolation - returned when something tries to destroy a protected
// device. This must abort the installation.
var ErrPolicyViolation = errors.New("policy violation")

// ErrNoProtectedDevice - protected device specs were given but none of them
// could be found.
var ErrNoProtectedDevice = errors.New("no protected device found")

// ErrNotReset - the session has not completed a reset yet.
var ErrNotReset = errors.New("storage session has not been reset")

// PolicyViolationError reports an attempt to remove a protected device.
type PolicyViolationError struct {
	// Device is the device the caller tried to remove.
	Device string

	// Protected is the protected device that blocked the removal. It is
	// either Device itself or one of its dependents.
	Protected string
}

func (e *PolicyViolationError) Error() string {
	if e.Device == e.Protected {
		return fmt.Sprintf("%s: cannot remove protected device %s", ErrPolicyViolation, e.Device)
	}

	return fmt.Sprintf("%s: cannot remove %s, protected device %s depends on it",
		ErrPolicyViolation, e.Device, e.Protected)
}

// Unwrap lets errors.Is match ErrPolicyViolation.
func (e *PolicyViolationError) Unwrap() error {
	return ErrPolicyViolation
}

// UnknownSourceDeviceError is returned when protected device specs were
// requested and none of them resolved to a device.
type UnknownSourceDeviceError struct {
	Specs []string
}

func (e *UnknownSourceDeviceError) Error() string {
	return fmt.Sprintf("%s for [%s]", ErrNoProtectedDevice, strings.Join(e.Specs, ", "))
}

// Unwrap lets errors.Is match ErrNoProtectedDevice.
func (e *UnknownSourceDeviceError) Unwrap() error {
	return ErrNoProtectedDevice
}

// StorageBackendError wraps failures of the device graph backend.
type StorageBackendError struct {
	Op  string
	Err error
}

func (e *StorageBackendError) Error() string {
	return fmt.Sprintf("storage backend %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the backend error.
func (e *StorageBackendError) Unwrap() error {
	return e.Err
}

// Cause returns the backend error, for github.com/pkg/errors.Cause.
func (e *StorageBackendError) Cause() error {
	return e.Err
}

// IsBackendError returns true if err was raised by the device graph backend.
func IsBackendError(err error) bool {
	var be *StorageBackendError

	return errors.As(err, &be)
}
