package shell

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/joeycumines/goja-adblock/platform"
)

func runShell(t *testing.T, input string) (stdout, stderr string) {
	t.Helper()
	p := platform.New(platform.CreationParameters{Logger: zaptest.NewLogger(t)})
	t.Cleanup(func() {
		_ = p.Close()
	})
	require.NoError(t, p.SetUp(platform.AppInfo{Name: "abpshell", Version: "test"}))

	var out, errOut bytes.Buffer
	sh := New(p, strings.NewReader(input), &out, &errOut, zaptest.NewLogger(t))
	require.NoError(t, sh.Run())
	return out.String(), errOut.String()
}

func TestShell_AddAndMatch(t *testing.T) {
	out, errOut := runShell(t, "add ads\nmatch http://example.com/ads.js script\nexit\n")
	require.Empty(t, errOut)
	require.Contains(t, out, "added 1 filter(s)")
	require.Contains(t, out, "blocked by ads")
}

func TestShell_MatchException(t *testing.T) {
	out, _ := runShell(t, "add ads @@ads.example.com\nmatch http://ads.example.com/a.png image\nexit\n")
	require.Contains(t, out, "added 2 filter(s)")
	require.Contains(t, out, "allowlisted by @@ads.example.com")
}

func TestShell_MatchNoMatch(t *testing.T) {
	out, _ := runShell(t, "match http://example.com/x.js script\nexit\n")
	require.Contains(t, out, "no match")
}

func TestShell_FiltersListAndRemove(t *testing.T) {
	out, _ := runShell(t, "filters\nadd ads banner\nremove ads\nfilters\nexit\n")
	require.Contains(t, out, "no filters configured")
	require.Contains(t, out, "removed 1 filter(s)")
	require.Contains(t, out, "banner\n")
	require.NotContains(t, out, "\nads\n")
}

func TestShell_Allowlisted(t *testing.T) {
	out, _ := runShell(t, "add @@trusted.example.com\nallowlisted http://cdn.example.com/x.js script http://trusted.example.com/page\nexit\n")
	require.Contains(t, out, "true\n")
}

func TestShell_ElemhideAndSelectors(t *testing.T) {
	out, _ := runShell(t, "add example.com##.banner\nselectors example.com\nelemhide example.com\nelemhide other.org\nexit\n")
	require.Contains(t, out, ".banner\n")
	require.Contains(t, out, ".banner {display: none !important;}")
	require.Contains(t, out, "no element hiding rules for other.org")
}

func TestShell_Eval(t *testing.T) {
	out, errOut := runShell(t, "eval 6 * 7\neval \"[1, 2].length\"\nexit\n")
	require.Empty(t, errOut)
	require.Contains(t, out, "42\n")
	require.Contains(t, out, "2\n")
}

func TestShell_EvalScriptError(t *testing.T) {
	_, errOut := runShell(t, "eval throw new Error('bad')\nexit\n")
	require.Contains(t, errOut, "bad")
}

func TestShell_UnknownCommand(t *testing.T) {
	out, errOut := runShell(t, "frobnicate\nexit\n")
	require.Contains(t, errOut, `unknown command "frobnicate"`)
	require.NotContains(t, out, "frobnicate")
}

func TestShell_UnknownContentType(t *testing.T) {
	_, errOut := runShell(t, "match http://example.com/x.js bogus\nexit\n")
	require.Contains(t, errOut, `unknown content type "bogus"`)
}

func TestShell_Help(t *testing.T) {
	out, _ := runShell(t, "help\nhelp match\nexit\n")
	require.Contains(t, out, "commands:")
	require.Contains(t, out, "match")
	require.Contains(t, out, "usage: match <url> <content-type> [document-url]")
}

func TestShell_ExitStopsProcessing(t *testing.T) {
	out, _ := runShell(t, "exit\nadd ads\n")
	require.NotContains(t, out, "added")
}

func TestShell_EOFEndsSession(t *testing.T) {
	out, _ := runShell(t, "add ads\n")
	require.Contains(t, out, "added 1 filter(s)")
}

func TestShell_UsageErrors(t *testing.T) {
	_, errOut := runShell(t, "add\nmatch onlyurl\nexit\n")
	require.Contains(t, errOut, "usage: add")
	require.Contains(t, errOut, "usage: match")
}
