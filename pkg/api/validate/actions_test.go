package validate_test

import (
	"testing"

	g "github.com/onsi/gomega"

	"servergate/pkg/api/validate"
)

func TestRebootType_normalizesCase(t *testing.T) {
	g.RegisterTestingT(t)

	rebootType, err := validate.RebootType(map[string]any{"type": "hard"})

	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(rebootType).To(g.Equal("HARD"))

	rebootType, err = validate.RebootType(map[string]any{"type": "Soft"})

	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(rebootType).To(g.Equal("SOFT"))
}

func TestRebootType_missing(t *testing.T) {
	g.RegisterTestingT(t)

	_, err := validate.RebootType(map[string]any{})

	expectBadRequest(t, err, "Missing argument 'type' for reboot")

	_, err = validate.RebootType(nil)

	expectBadRequest(t, err, "Missing argument 'type' for reboot")
}

func TestRebootType_unknownValue(t *testing.T) {
	g.RegisterTestingT(t)

	_, err := validate.RebootType(map[string]any{"type": "loud"})

	expectBadRequest(t, err, "Argument 'type' for reboot is not HARD or SOFT")
}

func TestInteger(t *testing.T) {
	g.RegisterTestingT(t)

	value, err := validate.Integer(3.0)
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(value).To(g.Equal(3))

	value, err = validate.Integer("3")
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(value).To(g.Equal(3))

	_, err = validate.Integer("abc")
	g.Expect(err).To(g.HaveOccurred())

	_, err = validate.Integer([]any{})
	g.Expect(err).To(g.HaveOccurred())
}
