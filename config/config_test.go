package config_test

import (
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/twpayne/go-vfs/vfst"

	"machinerun.io/clearpart"
	"machinerun.io/clearpart/config"
)

const clearpartYAML = `clear-part-type: linux
clear-part-disks:
  - sda
  - sdb
initialize-disks: true
protected-devices:
  - LABEL=LIVEMEDIA
`

//nolint:funlen
func TestSource(t *testing.T) {
	Convey("Given configuration files", t, func() {
		fs, cleanup, err := vfst.NewTestFS(map[string]interface{}{
			"/etc/clearpart/clearpart.yaml": clearpartYAML,
			"/other/list.json":              `{"clear-part-type": "list", "clear-part-devices": ["sdd2"], "zero-mbr": true}`,
			"/bad/clearpart.yaml":           "clear-part-type: sometimes\n",
			"/empty":                        &vfst.Dir{Perm: 0o755},
		})
		So(err, ShouldBeNil)

		defer cleanup()

		root := fs.TempDir()

		Convey("the file is found in the search path", func() {
			src := config.New("")
			src.Dirs = []string{filepath.Join(root, "empty"), filepath.Join(root, "etc/clearpart")}

			cfg, err := src.Config()
			So(err, ShouldBeNil)
			So(cfg, ShouldResemble, clearpart.Config{
				ClearPartType:     clearpart.ClearLinux,
				ClearPartDisks:    []string{"sda", "sdb"},
				ClearPartDevices:  []string{},
				InitializeDisks:   true,
				ProtectedDevSpecs: []string{"LABEL=LIVEMEDIA"},
			})
		})

		Convey("no file at all means defaults", func() {
			src := config.New("")
			src.Dirs = []string{filepath.Join(root, "empty")}

			cfg, err := src.Config()
			So(err, ShouldBeNil)
			So(cfg.ClearPartType, ShouldEqual, clearpart.ClearDefault)
			So(cfg.ClearPartDisks, ShouldBeEmpty)
		})

		Convey("an explicit file must exist", func() {
			_, err := config.New(filepath.Join(root, "nope.yaml")).Config()
			So(err, ShouldNotBeNil)
		})

		Convey("json works too", func() {
			cfg, err := config.New(filepath.Join(root, "other/list.json")).Config()
			So(err, ShouldBeNil)
			So(cfg.ClearPartType, ShouldEqual, clearpart.ClearList)
			So(cfg.ClearPartDevices, ShouldResemble, []string{"sdd2"})
			So(cfg.ZeroMBR, ShouldBeTrue)
		})

		Convey("a bad clear type is an error", func() {
			_, err := config.New(filepath.Join(root, "bad/clearpart.yaml")).Config()
			So(err, ShouldNotBeNil)
		})

		Convey("a session reads it on every reset", func() {
			src := config.New(filepath.Join(root, "etc/clearpart/clearpart.yaml"))

			var _ clearpart.Source = src

			first, err := src.Config()
			So(err, ShouldBeNil)

			So(fs.WriteFile("/etc/clearpart/clearpart.yaml", []byte("clear-part-type: all\n"), 0o644), ShouldBeNil)

			second, err := src.Config()
			So(err, ShouldBeNil)
			So(first.ClearPartType, ShouldEqual, clearpart.ClearLinux)
			So(second.ClearPartType, ShouldEqual, clearpart.ClearAll)
		})
	})
}

func TestSourceEnvironment(t *testing.T) {
	t.Setenv("CLEARPART_CLEAR_PART_TYPE", "all")
	t.Setenv("CLEARPART_CLEAR_PART_DISKS", "sdc, sdd")
	t.Setenv("CLEARPART_ZERO_MBR", "true")

	Convey("Given a configuration file and CLEARPART_ variables", t, func() {
		fs, cleanup, err := vfst.NewTestFS(map[string]interface{}{
			"/etc/clearpart/clearpart.yaml": clearpartYAML,
		})
		So(err, ShouldBeNil)

		defer cleanup()

		file := filepath.Join(fs.TempDir(), "etc/clearpart/clearpart.yaml")

		Convey("the environment wins over the file", func() {
			cfg, err := config.New(file).Config()
			So(err, ShouldBeNil)
			So(cfg.ClearPartType, ShouldEqual, clearpart.ClearAll)
			So(cfg.ClearPartDisks, ShouldResemble, []string{"sdc", "sdd"})
			So(cfg.ZeroMBR, ShouldBeTrue)
			So(cfg.InitializeDisks, ShouldBeTrue)
		})

		Convey("overrides win over the environment", func() {
			src := config.New(file)
			src.Set(config.KeyClearPartType, "none")
			src.Set(config.KeyClearPartDisks, []string{"sde"})

			cfg, err := src.Config()
			So(err, ShouldBeNil)
			So(cfg.ClearPartType, ShouldEqual, clearpart.ClearNone)
			So(cfg.ClearPartDisks, ShouldResemble, []string{"sde"})
		})
	})
}
