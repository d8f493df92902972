package cli

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderVersionTag(t *testing.T) {
	tests := []struct {
		name      string
		pattern   string
		gitSHA    string
		want      string
		expectErr bool
	}{
		{
			name:    "plain placeholder",
			pattern: "{git_sha}",
			gitSHA:  "abc123",
			want:    "abc123",
		},
		{
			name:    "placeholder with suffix",
			pattern: "{git_sha}-untested",
			gitSHA:  "abc123",
			want:    "abc123-untested",
		},
		{
			name:      "no placeholder",
			pattern:   "static",
			expectErr: true,
		},
		{
			name:      "two placeholders",
			pattern:   "{git_sha}-{git_sha}",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := renderVersionTag(tt.pattern, tt.gitSHA)
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerboseLevel(t *testing.T) {
	assert.Equal(t, logrus.WarnLevel, verboseLevel(0))
	assert.Equal(t, logrus.InfoLevel, verboseLevel(1))
	assert.Equal(t, logrus.DebugLevel, verboseLevel(2))
	assert.Equal(t, logrus.DebugLevel, verboseLevel(5))
}

func TestBuildCommandRequiresFlags(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"build", "."})
	err := root.Execute()
	require.Error(t, err, "git-sha and name are required")
}
