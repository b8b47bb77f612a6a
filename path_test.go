package imapfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		in      intent
		folders []string
		leaf    string
		kind    leafKind
		uid     uint32
		wantErr error
	}{
		{name: "root", path: "", in: intentDirectory},
		{name: "slash root", path: "/", in: intentDirectory},
		{name: "folder", path: "INBOX/Sub", in: intentDirectory, folders: []string{"INBOX", "Sub"}},
		{name: "leading slash", path: "/INBOX", in: intentDirectory, folders: []string{"INBOX"}},
		{name: "message", path: "INBOX/42.eml", in: intentExisting, folders: []string{"INBOX"}, leaf: "42.eml", kind: leafMessage, uid: 42},
		{name: "message-like folder with slash", path: "INBOX/42.eml/", in: intentExisting, folders: []string{"INBOX", "42.eml"}},
		{name: "non-canonical name", path: "INBOX/042.eml", in: intentExisting, folders: []string{"INBOX", "042.eml"}},
		{name: "new content", path: "INBOX/draft.eml", in: intentWrite, folders: []string{"INBOX"}, leaf: "draft.eml", kind: leafNewContent},
		{name: "write to root", path: "", in: intentWrite, wantErr: ErrFileExpected},
		{name: "write to folder", path: "INBOX/", in: intentWrite, wantErr: ErrFileExpected},
		{name: "write without extension", path: "INBOX/draft", in: intentWrite, wantErr: ErrInvalidPath},
		{name: "empty segment", path: "INBOX//Sub", in: intentDirectory, wantErr: ErrInvalidPath},
		{name: "dot", path: "INBOX/./Sub", in: intentDirectory, wantErr: ErrInvalidPath},
		{name: "dot dot", path: "INBOX/..", in: intentExisting, wantErr: ErrInvalidPath},
		{name: "NUL", path: "INBOX\x00", in: intentDirectory, wantErr: ErrInvalidPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rp, err := resolvePath(tt.path, tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.folders, rp.folders)
			assert.Equal(t, tt.leaf, rp.leaf)
			assert.Equal(t, tt.kind, rp.kind)
			assert.Equal(t, tt.uid, rp.uid)
		})
	}
}

func TestResolvedPathAll(t *testing.T) {
	rp, err := resolvePath("A/B/3.eml", intentExisting)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "3.eml"}, rp.all())
	assert.Equal(t, []string{"A", "B"}, rp.folders)
}
