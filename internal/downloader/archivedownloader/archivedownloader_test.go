package archivedownloader

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeJoin_RejectsTraversal(t *testing.T) {
	_, err := safeJoin("/tmp/dest", "../../etc/passwd")
	assert.Error(t, err)

	_, err = safeJoin("/tmp/dest", "/etc/passwd")
	assert.Error(t, err)
}

func TestSafeJoin_AllowsNormalPaths(t *testing.T) {
	got, err := safeJoin("/tmp/dest", "sub/dir/file.txt")
	assert.NoError(t, err)
	assert.Equal(t, "/tmp/dest/sub/dir/file.txt", got)
}
