package filterengine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilter_IsValid(t *testing.T) {
	require.False(t, Filter{}.IsValid())
	require.False(t, Filter{Text: "ads"}.IsValid())
	require.False(t, Filter{Text: "x", Type: FilterTypeInvalid}.IsValid())
	require.True(t, Filter{Text: "ads", Type: FilterTypeBlocking}.IsValid())
}

func TestFilter_IsException(t *testing.T) {
	require.True(t, Filter{Text: "@@x", Type: FilterTypeException}.IsException())
	require.False(t, Filter{Text: "x", Type: FilterTypeBlocking}.IsException())
}

func TestContentType_String(t *testing.T) {
	require.Equal(t, "SCRIPT", ContentTypeScript.String())
	require.Equal(t, "GENERICHIDE", ContentTypeGenerichide.String())
	require.Equal(t, "UNKNOWN", (ContentTypeScript | ContentTypeImage).String())
}
