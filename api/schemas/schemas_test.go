package schemas

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishContentValidate(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "cover.jpg")
	require.NoError(t, os.WriteFile(img, []byte{0xff, 0xd8}, 0o644))

	tests := []struct {
		name    string
		content PublishContent
		wantErr string
	}{
		{
			name:    "valid text only",
			content: PublishContent{Title: "hi", Body: "something to say"},
		},
		{
			name:    "valid with media",
			content: PublishContent{Body: "look", MediaPaths: []string{img}},
		},
		{
			name:    "empty body rejected",
			content: PublishContent{Title: "title only", Body: "   "},
			wantErr: "body must not be empty",
		},
		{
			name:    "missing media file rejected",
			content: PublishContent{Body: "x", MediaPaths: []string{filepath.Join(dir, "nope.png")}},
			wantErr: "media path",
		},
		{
			name:    "unsupported media type rejected",
			content: PublishContent{Body: "x", MediaPaths: []string{mustWrite(t, dir, "doc.pdf")}},
			wantErr: "unsupported media type",
		},
		{
			name:    "directory rejected",
			content: PublishContent{Body: "x", MediaPaths: []string{dir}},
			wantErr: "is a directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.content.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func mustWrite(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("data"), 0o644))
	return p
}

func TestSessionStateClone(t *testing.T) {
	orig := &SessionState{
		PlatformID: "xiaohongshu",
		Cookies: []Cookie{
			{Name: "web_session", Value: "abc", Domain: ".xiaohongshu.com"},
		},
		Tokens:      map[string]string{"xsec_token": "t1"},
		ValidatedAt: time.Now(),
	}

	clone := orig.Clone()
	require.NotNil(t, clone)
	assert.Equal(t, orig, clone)

	// Mutating the clone must not leak back into the original.
	clone.Cookies[0].Value = "changed"
	clone.Tokens["xsec_token"] = "t2"
	assert.Equal(t, "abc", orig.Cookies[0].Value)
	assert.Equal(t, "t1", orig.Tokens["xsec_token"])

	var nilState *SessionState
	assert.Nil(t, nilState.Clone())
}

func TestWorkflowError(t *testing.T) {
	cause := errors.New("marker never appeared")
	err := &WorkflowError{
		Workflow:  "publish",
		StepIndex: 3,
		Step:      "submit",
		Reason:    "postcondition not met",
		Err:       cause,
	}

	assert.Contains(t, err.Error(), `workflow "publish" failed at step 3`)
	assert.Contains(t, err.Error(), "postcondition not met")
	assert.ErrorIs(t, err, cause)

	bare := &WorkflowError{Workflow: "comment", StepIndex: 0, Step: "open-composer", Reason: "composer missing"}
	assert.Contains(t, bare.Error(), "composer missing")
	assert.NoError(t, bare.Unwrap())
}
