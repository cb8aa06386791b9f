// Package errors defines the domain error kinds the orchestration
// collaborator can raise. The API layer classifies these into wire
// outcomes; it never inspects collaborator internals.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrCannotResizeToSameSize    = errors.New("resize requires a change in size")
	ErrCannotResizeToSmallerSize = errors.New("resizing to a smaller size is not supported")
	ErrInstanceSnapshotting      = errors.New("server is currently creating an image")

	// Quota kinds. The authoritative limits live with the collaborator;
	// this layer only recognizes the kinds.
	ErrInjectedFileLimitExceeded        = errors.New("personality file limit exceeded")
	ErrInjectedFilePathLimitExceeded    = errors.New("personality file path too long")
	ErrInjectedFileContentLimitExceeded = errors.New("personality file content too long")
	ErrInstanceLimitExceeded            = errors.New("instance quotas have been exceeded")
	ErrImageMetadataLimitExceeded       = errors.New("image metadata limit exceeded")
)

type instanceNotFoundError struct {
	id string
}

// Error returns the error message.
func (e instanceNotFoundError) Error() string {
	return fmt.Sprintf("instance %s could not be found", e.id)
}

func (e instanceNotFoundError) isNotFound() {}

func NewInstanceNotFound(id string) error {
	return instanceNotFoundError{id: id}
}

type flavorNotFoundError struct {
	id string
}

// Error returns the error message.
func (e flavorNotFoundError) Error() string {
	return fmt.Sprintf("flavor %s could not be found", e.id)
}

func (e flavorNotFoundError) isNotFound() {}

func NewFlavorNotFound(id string) error {
	return flavorNotFoundError{id: id}
}

type imageNotFoundError struct {
	ref string
}

// Error returns the error message.
func (e imageNotFoundError) Error() string {
	return fmt.Sprintf("image %s could not be found", e.ref)
}

func (e imageNotFoundError) isNotFound() {}

func NewImageNotFound(ref string) error {
	return imageNotFoundError{ref: ref}
}

type keypairNotFoundError struct {
	name string
}

// Error returns the error message.
func (e keypairNotFoundError) Error() string {
	return fmt.Sprintf("keypair %s could not be found", e.name)
}

func (e keypairNotFoundError) isNotFound() {}

func NewKeypairNotFound(name string) error {
	return keypairNotFoundError{name: name}
}

type securityGroupNotFoundError struct {
	name string
}

// Error returns the error message.
func (e securityGroupNotFoundError) Error() string {
	return fmt.Sprintf("security group %s could not be found", e.name)
}

func (e securityGroupNotFoundError) isNotFound() {}

func NewSecurityGroupNotFound(name string) error {
	return securityGroupNotFoundError{name: name}
}

type migrationNotFoundError struct {
	instanceID string
}

// Error returns the error message.
func (e migrationNotFoundError) Error() string {
	return fmt.Sprintf("instance %s has not been resized", e.instanceID)
}

func (e migrationNotFoundError) isNotFound() {}

func NewMigrationNotFound(instanceID string) error {
	return migrationNotFoundError{instanceID: instanceID}
}

type rebuildRequiresActiveError struct {
	instanceID string
}

// Error returns the error message.
func (e rebuildRequiresActiveError) Error() string {
	return fmt.Sprintf("instance %s must be active to rebuild", e.instanceID)
}

func NewRebuildRequiresActive(instanceID string) error {
	return rebuildRequiresActiveError{instanceID: instanceID}
}

// RemoteError carries an opaque failure from a remote collaborator call
// with the upstream type and message preserved verbatim.
type RemoteError struct {
	Type    string
	Message string
}

// Error returns the error message.
func (e RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

type notFound interface {
	isNotFound()
}

// IsNotFound reports whether err is one of the not-found kinds.
func IsNotFound(err error) bool {
	var nf notFound

	return errors.As(err, &nf)
}

// IsQuota reports whether err is one of the quota kinds.
func IsQuota(err error) bool {
	return errors.Is(err, ErrInjectedFileLimitExceeded) ||
		errors.Is(err, ErrInjectedFilePathLimitExceeded) ||
		errors.Is(err, ErrInjectedFileContentLimitExceeded) ||
		errors.Is(err, ErrInstanceLimitExceeded) ||
		errors.Is(err, ErrImageMetadataLimitExceeded)
}

// IsBusy reports whether err is a busy-state kind that maps to a conflict.
func IsBusy(err error) bool {
	if errors.Is(err, ErrInstanceSnapshotting) {
		return true
	}

	var rebuild rebuildRequiresActiveError

	return errors.As(err, &rebuild)
}
