package clearpart_test

import (
	"encoding/json"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"

	"machinerun.io/clearpart"
)

func TestParseClearType(t *testing.T) {
	assert := assert.New(t)

	for s, expected := range map[string]clearpart.ClearType{
		"none":    clearpart.ClearNone,
		"LINUX":   clearpart.ClearLinux,
		" all ":   clearpart.ClearAll,
		"list":    clearpart.ClearList,
		"Default": clearpart.ClearDefault,
	} {
		ct, err := clearpart.ParseClearType(s)
		assert.Nil(err, s)
		assert.Equal(expected, ct, s)
	}

	_, err := clearpart.ParseClearType("everything")
	assert.NotNil(err)
}

func TestConfigJSON(t *testing.T) {
	assert := assert.New(t)

	cfg := clearpart.Config{}
	assert.Nil(json.Unmarshal(
		[]byte(`{"clearPartType": "list", "clearPartDevices": ["sda1"], "zeroMBR": true}`), &cfg))
	assert.Equal(clearpart.Config{
		ClearPartType:    clearpart.ClearList,
		ClearPartDevices: []string{"sda1"},
		ZeroMBR:          true,
	}, cfg)

	b, err := json.Marshal(clearpart.DefaultConfig())
	assert.Nil(err)
	assert.Contains(string(b), `"clearPartType":"default"`)

	assert.NotNil(json.Unmarshal([]byte(`{"clearPartType": "most"}`), &cfg))
}

func TestConfigValidate(t *testing.T) {
	assert := assert.New(t)

	assert.Nil(clearpart.DefaultConfig().Validate())
	assert.Nil(clearpart.Config{
		ClearPartType:    clearpart.ClearList,
		ClearPartDevices: []string{"sda1"},
		ClearPartDisks:   []string{"sda", "sdb"},
	}.Validate())

	err := clearpart.Config{
		ClearPartType:  clearpart.ClearType(9),
		ClearPartDisks: []string{"sda", "", "sda"},
	}.Validate()

	var merr *multierror.Error

	assert.ErrorAs(err, &merr)
	assert.Len(merr.Errors, 3)

	err = clearpart.Config{ClearPartType: clearpart.ClearList}.Validate()
	assert.ErrorContains(err, "requires clear-part-devices")

	err = clearpart.Config{ClearPartType: clearpart.ClearAll, ClearPartDevices: []string{"sda1"}}.Validate()
	assert.ErrorContains(err, "is ignored with clear type all")
}

func TestConfigOverrides(t *testing.T) {
	assert := assert.New(t)

	cfg := clearpart.Config{ClearPartType: clearpart.ClearLinux, ClearPartDisks: []string{"sda"}}
	merged := cfg.With(
		clearpart.WithClearType(clearpart.ClearList),
		clearpart.WithDisks("sdb", "sdc"),
		clearpart.WithDevices("sdb1"))

	assert.Equal(clearpart.ClearList, merged.ClearPartType)
	assert.Equal([]string{"sdb", "sdc"}, merged.ClearPartDisks)
	assert.Equal([]string{"sdb1"}, merged.ClearPartDevices)

	// the original is untouched
	assert.Equal(clearpart.ClearLinux, cfg.ClearPartType)
	assert.Equal([]string{"sda"}, cfg.ClearPartDisks)

	src := clearpart.StaticSource(cfg)
	got, err := src.Config()
	assert.Nil(err)
	assert.Equal(cfg, got)
}
