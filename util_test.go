package clearpart

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindGaps0(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(
		[]URange{{0, 100}},
		FindRangeGaps([]URange{}, 0, 100))
}

func TestFindGaps1(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(
		[]URange{{0, 49}, {60, 100}},
		FindRangeGaps([]URange{{50, 59}}, 0, 100))
}

func TestFindGaps2(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(
		[]URange{{51, 100}},
		FindRangeGaps([]URange{{0, 50}}, 0, 100))
}

func TestFindGaps3(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(
		[]URange{{0, 10}},
		FindRangeGaps([]URange{{11, 100}}, 0, 100))
}

func TestFindGaps4(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(
		[]URange{{0, 10}, {50, 59}, {91, 100}},
		FindRangeGaps([]URange{{11, 49}, {60, 90}}, 0, 100))
}

func TestFindGaps5(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(
		[]URange{},
		FindRangeGaps([]URange{{0, 10}, {11, 100}}, 0, 100))
}

func TestFindGaps6(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(
		[]URange{},
		FindRangeGaps([]URange{{0, 150}, {50, 100}}, 0, 100))
}

func TestFindGaps7(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(
		[]URange{{0, 9}, {41, 49}, {101, 110}},
		FindRangeGaps([]URange{{10, 40}, {50, 100}}, 0, 110))
}

func TestFindGaps8(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(
		[]URange{{10, 100}},
		FindRangeGaps([]URange{{110, 200}}, 10, 100))
}

func TestSumRanges(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(uint64(0), SumRanges(nil))
	assert.Equal(uint64(101), SumRanges([]URange{{0, 100}}))
	assert.Equal(uint64(30), SumRanges([]URange{{0, 9}, {41, 49}, {101, 111}}))
}

func TestSortByNumberDesc(t *testing.T) {
	assert := assert.New(t)
	parts := []Device{
		{Name: "sda1", Number: 1},
		{Name: "sda5", Number: 5},
		{Name: "sdb2", Number: 2},
		{Name: "sda2", Number: 2},
	}

	SortByNumberDesc(parts)

	assert.Equal([]string{"sda5", "sda2", "sdb2", "sda1"}, Names(parts))
}
