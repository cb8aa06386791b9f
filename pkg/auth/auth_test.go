package auth_test

import (
	"net/http/httptest"
	"testing"

	g "github.com/onsi/gomega"

	"servergate/pkg/auth"
)

func TestFromRequest(t *testing.T) {
	g.RegisterTestingT(t)

	req := httptest.NewRequest("GET", "/v1/servers", nil)
	req.Header.Set("X-Project-ID", "p-1")
	req.Header.Set("X-User-ID", "u-1")

	caller := auth.FromRequest(req)

	g.Expect(caller.ProjectID).To(g.Equal("p-1"))
	g.Expect(caller.UserID).To(g.Equal("u-1"))
	g.Expect(caller.IsAdmin).To(g.BeFalse())
}

func TestFromRequest_adminRole(t *testing.T) {
	g.RegisterTestingT(t)

	req := httptest.NewRequest("GET", "/v1/servers", nil)
	req.Header.Add("X-Roles", "member")
	req.Header.Add("X-Roles", "admin")

	g.Expect(auth.FromRequest(req).IsAdmin).To(g.BeTrue())
}
