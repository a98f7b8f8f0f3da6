package page

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/movienotes/internal/domain"
)

func TestWriteAll_KeepsUserNotesAndDisambiguates(t *testing.T) {
	dir := filepath.Join(t.TempDir(), DirName)
	recs := []domain.MovieRecord{
		{Title: "Inception", Year: "2010", Plot: "dreams"},
		{Title: "Heat", Year: "1995"},
	}

	res, err := WriteAll(dir, recs)
	require.NoError(t, err)
	require.Len(t, res, 2)
	for _, r := range res {
		assert.Equal(t, domain.PageStatusWritten, r.Status)
	}

	// 用户在页面里写了笔记
	p := filepath.Join(dir, "Inception.md")
	edited := string(Render(recs[0])) + "Loved it.\n"
	require.NoError(t, os.WriteFile(p, []byte(edited), 0o644))

	// 第二次运行：Inception 保留；另一部同名不同年份的 Heat 另起名字
	recs2 := []domain.MovieRecord{recs[0], {Title: "Heat", Year: "1986"}}
	res, err = WriteAll(dir, recs2)
	require.NoError(t, err)
	assert.Equal(t, domain.PageStatusKept, res[0].Status)
	assert.Equal(t, "Heat (1986).md", res[1].Name)
	assert.Equal(t, domain.PageStatusWritten, res[1].Status)

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, edited, string(b))
}

func TestWriteAll_DirIsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "pages")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))

	_, err := WriteAll(f, []domain.MovieRecord{{Title: "A"}})
	require.Error(t, err)
}
