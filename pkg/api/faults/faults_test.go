package faults_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	g "github.com/onsi/gomega"

	"servergate/pkg/api/faults"
	coreerrs "servergate/pkg/errors"
)

func classified(t *testing.T, err error) *faults.Fault {
	t.Helper()

	var fault *faults.Fault
	g.Expect(errors.As(faults.Classify(err), &fault)).To(g.BeTrue())

	return fault
}

func TestClassify_nil(t *testing.T) {
	g.RegisterTestingT(t)

	g.Expect(faults.Classify(nil)).To(g.BeNil())
}

func TestClassify_faultPassesThrough(t *testing.T) {
	g.RegisterTestingT(t)

	original := faults.BadRequest("Invalid adminPass")

	g.Expect(faults.Classify(original)).To(g.BeIdenticalTo(original))
}

func TestClassify_notFound(t *testing.T) {
	g.RegisterTestingT(t)

	fault := classified(t, coreerrs.NewInstanceNotFound("srv-1"))

	g.Expect(fault.Status).To(g.Equal(http.StatusNotFound))
	g.Expect(fault.Explanation).To(g.Equal("instance srv-1 could not be found"))
	g.Expect(fault.RetryAfter).To(g.BeNil())
}

func TestClassify_migrationNotFound(t *testing.T) {
	g.RegisterTestingT(t)

	fault := classified(t, coreerrs.NewMigrationNotFound("srv-1"))

	g.Expect(fault.Status).To(g.Equal(http.StatusNotFound))
}

func TestClassify_quotaCarriesRetryAfter(t *testing.T) {
	g.RegisterTestingT(t)

	fault := classified(t, coreerrs.ErrInstanceLimitExceeded)

	g.Expect(fault.Status).To(g.Equal(http.StatusRequestEntityTooLarge))
	g.Expect(fault.Explanation).To(g.Equal("Instance quotas have been exceeded"))
	g.Expect(fault.RetryAfter).NotTo(g.BeNil())
	g.Expect(*fault.RetryAfter).To(g.Equal(0))
}

func TestClassify_quotaExplanations(t *testing.T) {
	g.RegisterTestingT(t)

	cases := map[error]string{
		coreerrs.ErrInjectedFileLimitExceeded:        "Personality file limit exceeded",
		coreerrs.ErrInjectedFilePathLimitExceeded:    "Personality file path too long",
		coreerrs.ErrInjectedFileContentLimitExceeded: "Personality file content too long",
		coreerrs.ErrImageMetadataLimitExceeded:       "Image metadata limit exceeded",
	}

	for err, explanation := range cases {
		fault := classified(t, err)

		g.Expect(fault.Status).To(g.Equal(http.StatusRequestEntityTooLarge))
		g.Expect(fault.Explanation).To(g.Equal(explanation))
	}
}

func TestClassify_wrappedQuota(t *testing.T) {
	g.RegisterTestingT(t)

	err := fmt.Errorf("creating instances: %w", coreerrs.ErrInstanceLimitExceeded)

	fault := classified(t, err)

	g.Expect(fault.Status).To(g.Equal(http.StatusRequestEntityTooLarge))
}

func TestClassify_busyMapsToConflict(t *testing.T) {
	g.RegisterTestingT(t)

	fault := classified(t, coreerrs.ErrInstanceSnapshotting)
	g.Expect(fault.Status).To(g.Equal(http.StatusConflict))

	fault = classified(t, coreerrs.NewRebuildRequiresActive("srv-1"))
	g.Expect(fault.Status).To(g.Equal(http.StatusConflict))
}

func TestClassify_resizeErrors(t *testing.T) {
	g.RegisterTestingT(t)

	fault := classified(t, coreerrs.ErrCannotResizeToSameSize)
	g.Expect(fault.Status).To(g.Equal(http.StatusBadRequest))
	g.Expect(fault.Explanation).To(g.Equal("Resize requires a change in size."))

	fault = classified(t, coreerrs.ErrCannotResizeToSmallerSize)
	g.Expect(fault.Status).To(g.Equal(http.StatusBadRequest))
	g.Expect(fault.Explanation).To(g.Equal("Resizing to a smaller size is not supported."))
}

func TestClassify_remoteErrorVerbatim(t *testing.T) {
	g.RegisterTestingT(t)

	fault := classified(t, coreerrs.RemoteError{Type: "InstanceInvalidState", Message: "cannot reboot"})

	g.Expect(fault.Status).To(g.Equal(http.StatusBadRequest))
	g.Expect(fault.Explanation).To(g.Equal("InstanceInvalidState: cannot reboot"))
}

// Errors outside the known kinds must come back unchanged, never masked
// as a client fault.
func TestClassify_unknownErrorPassesThrough(t *testing.T) {
	g.RegisterTestingT(t)

	err := errors.New("disk full")

	g.Expect(faults.Classify(err)).To(g.BeIdenticalTo(err))
}
