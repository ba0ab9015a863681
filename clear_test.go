package clearpart_test

import (
	"bytes"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/assert"

	"machinerun.io/clearpart"
	"machinerun.io/clearpart/memgraph"
)

//nolint:funlen
func TestClearPartitions(t *testing.T) {
	Convey("Given the scenario disks with the install media protected", t, func() {
		g := scenarioGraph()
		s := sealedWith(g, "sdc1")
		cfg := clearpart.Config{ClearPartType: clearpart.ClearAll, InitializeDisks: true}

		Convey("clearing everything leaves only the protected devices", func() {
			res, err := clearpart.ClearPartitions(s, cfg, clearpart.NewNullLogger())
			So(err, ShouldBeNil)
			So(res.Changed(), ShouldBeTrue)
			So(res.Removed, ShouldResemble,
				[]string{"sda2", "sdc2", "sdd2", "sda1", "sdd1", "sdn1", "sdm1"})
			So(res.Initialized, ShouldResemble, []string{"sda", "sdb", "sdd", "sdm", "sdn"})
			So(res.Warnings, ShouldBeEmpty)

			So(clearpart.Names(s.Partitions()), ShouldResemble, []string{"sdc1"})

			for _, d := range s.Devices() {
				if clearpart.ShouldClear(s, d, cfg) {
					So(clearpart.IsProtected(s, d), ShouldBeTrue)
				}
			}

			sda, _ := s.Device("sda")
			So(sda.Partitioned(), ShouldBeTrue)
			So(sda.Format.Exists, ShouldBeFalse)

			Convey("a second pass is a no-op", func() {
				before := s.Devices()

				res, err := clearpart.ClearPartitions(s, cfg, clearpart.NewNullLogger())
				So(err, ShouldBeNil)
				So(res.Changed(), ShouldBeFalse)
				So(s.Devices(), ShouldResemble, before)
			})
		})

		Convey("with planned devices allowed a second pass is a no-op too", func() {
			cfg.ClearNonExistent = true

			res, err := clearpart.ClearPartitions(s, cfg, clearpart.NewNullLogger())
			So(err, ShouldBeNil)
			So(res.Initialized, ShouldResemble, []string{"sda", "sdb", "sdd", "sdm", "sdn"})

			before := s.Devices()

			res, err = clearpart.ClearPartitions(s, cfg, clearpart.NewNullLogger())
			So(err, ShouldBeNil)
			So(res.Removed, ShouldBeEmpty)
			So(res.Initialized, ShouldBeEmpty)
			So(res.Changed(), ShouldBeFalse)
			So(s.Devices(), ShouldResemble, before)

			cfg.ClearPartType = clearpart.ClearDefault

			res, err = clearpart.ClearPartitions(s, cfg, clearpart.NewNullLogger())
			So(err, ShouldBeNil)
			So(res.Changed(), ShouldBeFalse)
		})

		Convey("clearing linux partitions keeps the rest", func() {
			cfg.ClearPartType = clearpart.ClearLinux
			cfg.InitializeDisks = false

			res, err := clearpart.ClearPartitions(s, cfg, clearpart.NewNullLogger())
			So(err, ShouldBeNil)
			So(res.Removed, ShouldResemble, []string{"sda2", "sdc2", "sdd2", "sda1", "sdd1"})

			// emptied disks only get a new label with initialize-disks
			So(res.Initialized, ShouldBeEmpty)

			So(clearpart.Names(s.Partitions()), ShouldResemble, []string{"sdc1", "sdm1", "sdn1"})
		})

		Convey("zero-mbr labels disks without one", func() {
			cfg.ClearPartType = clearpart.ClearNone
			cfg.InitializeDisks = false
			cfg.ZeroMBR = true

			res, err := clearpart.ClearPartitions(s, cfg, clearpart.NewNullLogger())
			So(err, ShouldBeNil)
			So(res.Removed, ShouldBeEmpty)
			So(res.Initialized, ShouldResemble, []string{"sdb"})

			sdb, _ := s.Device("sdb")
			So(sdb.Partitioned(), ShouldBeTrue)
			So(sdb.Format.Type, ShouldEqual, "gpt")
		})

		Convey("a protected disk is skipped with a warning", func() {
			So(g.SetProtected("sdb", true), ShouldBeNil)

			cfg.ClearPartType = clearpart.ClearNone
			cfg.ZeroMBR = true

			buf := &bytes.Buffer{}
			res, err := clearpart.ClearPartitions(s, cfg, clearpart.NewBufferLogger(buf))
			So(err, ShouldBeNil)
			So(res.Initialized, ShouldResemble, []string{"sdm"})
			So(res.Warnings, ShouldResemble, []string{"disk sdb is protected"})
			So(buf.String(), ShouldContainSubstring, "cannot clear 'sdb'")

			sdb, _ := s.Device("sdb")
			So(sdb.Format.IsNone(), ShouldBeTrue)
		})
	})
}

func TestClearExtendedPartitions(t *testing.T) {
	Convey("Given an msdos disk with logical partitions", t, func() {
		g, err := memgraph.Load("memgraph/testdata/msdos.json")
		So(err, ShouldBeNil)

		s := sealedWith(g)

		Convey("the extended partition goes once it is empty", func() {
			cfg := clearpart.Config{ClearPartType: clearpart.ClearAll, ClearPartDisks: []string{"sde"}}

			res, err := clearpart.ClearPartitions(s, cfg, clearpart.NewNullLogger())
			So(err, ShouldBeNil)
			So(res.Removed, ShouldResemble, []string{"sde6", "sde5", "sde1", "sde2"})
			So(res.Initialized, ShouldResemble, []string{"sde"})

			_, ok := s.Device("vg0-root")
			So(ok, ShouldBeFalse)

			_, ok = s.Device("mpatha1")
			So(ok, ShouldBeTrue)
		})

		Convey("the extended partition stays while it holds a logical partition", func() {
			cfg := clearpart.Config{ClearPartType: clearpart.ClearLinux, ClearPartDisks: []string{"sde"}}

			res, err := clearpart.ClearPartitions(s, cfg, clearpart.NewNullLogger())
			So(err, ShouldBeNil)
			So(res.Removed, ShouldResemble, []string{"sde5", "sde1"})
			So(res.Initialized, ShouldBeEmpty)

			So(clearpart.Names(g.Children("sde")), ShouldResemble, []string{"sde2", "sde6"})
		})

		Convey("a protected logical volume keeps its physical volume", func() {
			So(g.SetProtected("vg0-root", true), ShouldBeNil)

			cfg := clearpart.Config{ClearPartType: clearpart.ClearAll, ClearPartDisks: []string{"sde"}}

			res, err := clearpart.ClearPartitions(s, cfg, clearpart.NewNullLogger())
			So(err, ShouldBeNil)
			So(res.Removed, ShouldResemble, []string{"sde6", "sde1"})
			So(res.Initialized, ShouldBeEmpty)

			_, ok := s.Device("sde5")
			So(ok, ShouldBeTrue)
		})
	})
}

func TestSealedRemove(t *testing.T) {
	assert := assert.New(t)
	s := sealedWith(scenarioGraph(), "sdc1")

	err := s.Remove("sdc1")
	assert.True(errors.Is(err, clearpart.ErrPolicyViolation))

	var pv *clearpart.PolicyViolationError

	err = s.Remove("sdc")
	assert.True(errors.As(err, &pv))
	assert.Equal("sdc", pv.Device)
	assert.Equal("sdc1", pv.Protected)

	err = s.InitializeDisk("sdc")
	assert.True(errors.Is(err, clearpart.ErrPolicyViolation))

	_, ok := s.Device("sdc1")
	assert.True(ok)

	assert.Nil(s.Remove("sdc2"))
	assert.True(errors.Is(s.Remove("sdz"), clearpart.ErrDeviceNotFound))
}
