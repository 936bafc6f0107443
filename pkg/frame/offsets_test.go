package frame_test

import (
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/require"

	"github.com/maxgio92/pyflame/pkg/frame"
)

func TestOffsetsForSupportedVersions(t *testing.T) {
	testCases := []struct {
		version      string
		tstateFrame  uint64
		codeLnotab   uint64
		signedDeltas bool
	}{
		{version: "2.6.0", tstateFrame: 16, codeLnotab: 104, signedDeltas: false},
		{version: "2.7.0", tstateFrame: 16, codeLnotab: 104, signedDeltas: false},
		{version: "3.3.0", tstateFrame: 16, codeLnotab: 120, signedDeltas: false},
		{version: "3.4.0", tstateFrame: 24, codeLnotab: 120, signedDeltas: false},
		{version: "3.5.0", tstateFrame: 24, codeLnotab: 120, signedDeltas: false},
		{version: "3.6.0", tstateFrame: 24, codeLnotab: 120, signedDeltas: true},
	}

	for _, tc := range testCases {
		t.Run(tc.version, func(t *testing.T) {
			offsets, err := frame.OffsetsFor(semver.MustParse(tc.version))
			require.NoError(t, err)
			require.Equal(t, tc.tstateFrame, offsets.TStateFrame)
			require.Equal(t, tc.codeLnotab, offsets.CodeLnotab)
			require.Equal(t, tc.signedDeltas, offsets.SignedLineDeltas)
		})
	}
}

func TestOffsetsForUnknownVersions(t *testing.T) {
	for _, version := range []string{"2.5.0", "3.7.0", "3.11.0"} {
		t.Run(version, func(t *testing.T) {
			_, err := frame.OffsetsFor(semver.MustParse(version))
			require.Error(t, err)
			require.ErrorIs(t, err, frame.ErrUnknownLayout)
		})
	}
}
