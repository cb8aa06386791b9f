package flavors_test

import (
	"testing"

	g "github.com/onsi/gomega"
	"github.com/spf13/afero"

	coreerrs "servergate/pkg/errors"
	"servergate/pkg/flavors"
)

const catalogTOML = `
[[flavor]]
id = "1"
name = "m1.tiny"
vcpus = 1
memory_mb = 512
disk_gb = 1

[[flavor]]
id = "2"
name = "m1.small"
vcpus = 1
memory_mb = 2048
disk_gb = 20
`

func TestLoad(t *testing.T) {
	g.RegisterTestingT(t)

	fs := afero.NewMemMapFs()
	g.Expect(afero.WriteFile(fs, "/etc/servergate/flavors.toml", []byte(catalogTOML), 0o644)).To(g.Succeed())

	catalog, err := flavors.Load(fs, "/etc/servergate/flavors.toml")

	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(catalog.IDs()).To(g.Equal([]string{"1", "2"}))

	small, err := catalog.Get("2")
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(small.Name).To(g.Equal("m1.small"))
	g.Expect(small.MemoryMB).To(g.Equal(int32(2048)))
}

func TestLoad_missingFile(t *testing.T) {
	g.RegisterTestingT(t)

	_, err := flavors.Load(afero.NewMemMapFs(), "/nowhere/flavors.toml")

	g.Expect(err).To(g.HaveOccurred())
}

func TestGet_unknownFlavor(t *testing.T) {
	g.RegisterTestingT(t)

	catalog := flavors.New(nil)

	_, err := catalog.Get("99")

	g.Expect(coreerrs.IsNotFound(err)).To(g.BeTrue())
}

func TestSmaller(t *testing.T) {
	g.RegisterTestingT(t)

	tiny := flavors.Flavor{ID: "1", MemoryMB: 512, DiskGB: 1}
	small := flavors.Flavor{ID: "2", MemoryMB: 2048, DiskGB: 20}
	sameDisk := flavors.Flavor{ID: "3", MemoryMB: 4096, DiskGB: 20}

	g.Expect(flavors.Smaller(tiny, small)).To(g.BeTrue())
	g.Expect(flavors.Smaller(small, tiny)).To(g.BeFalse())

	// Disk ties are broken by memory.
	g.Expect(flavors.Smaller(small, sameDisk)).To(g.BeTrue())
	g.Expect(flavors.Smaller(sameDisk, small)).To(g.BeFalse())
}

func TestSame(t *testing.T) {
	g.RegisterTestingT(t)

	a := flavors.Flavor{ID: "1"}
	b := flavors.Flavor{ID: "1", MemoryMB: 1024}

	g.Expect(flavors.Same(a, b)).To(g.BeTrue())
	g.Expect(flavors.Same(a, flavors.Flavor{ID: "2"})).To(g.BeFalse())
}
