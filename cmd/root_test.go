// -- cmd/root_test.go --
package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootRegistersOperationCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"login", "check-login", "feeds", "search", "detail", "mentions", "profile", "publish", "comment", "reply"} {
		assert.True(t, names[want], "command %q must be registered", want)
	}
}

func TestSearchRequiresKeywordArg(t *testing.T) {
	err := searchCmd.Args(searchCmd, []string{})
	require.Error(t, err)
	require.NoError(t, searchCmd.Args(searchCmd, []string{"travel"}))
}

func TestPublishDeclaresContentFlags(t *testing.T) {
	for _, flag := range []string{"title", "body", "media", "tag"} {
		assert.NotNil(t, publishCmd.Flags().Lookup(flag), "flag %q", flag)
	}
}

func TestReplyDeclaresTargetFlags(t *testing.T) {
	for _, flag := range []string{"body", "token", "comment-id"} {
		assert.NotNil(t, replyCmd.Flags().Lookup(flag), "flag %q", flag)
	}
}
