package status

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	require.Equal(t, Status("OK"), Text(OK))
	require.Equal(t, Status("Not Modified"), Text(NotModified))
	require.Empty(t, Text(299))
}

func TestHasBody(t *testing.T) {
	for _, code := range []Code{Continue, SwitchingProtocols, EarlyHints, NoContent, ResetContent, NotModified} {
		require.False(t, code.HasBody(), code)
	}

	for _, code := range []Code{OK, Created, PartialContent, NotFound, BadGateway} {
		require.True(t, code.HasBody(), code)
	}
}

func TestErrors(t *testing.T) {
	err := ErrBadChunk
	require.Equal(t, "malformed chunk-encoded data", err.Error())

	httpErr, ok := err.(HTTPError)
	require.True(t, ok)
	require.Equal(t, BadGateway, httpErr.Code)
}
