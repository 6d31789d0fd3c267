package importer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derWhity/bhajanbook/internal/database"
	"github.com/derWhity/bhajanbook/internal/filter"
	"github.com/derWhity/bhajanbook/internal/migrate"
	songrepo "github.com/derWhity/bhajanbook/internal/repos/song/sqlite"
)

const manifestJSON = `{"Prasang":[
	{"title":"Jamo Thal Jivan","title_guj":"જમો થાળ જીવન","CatId":"mangalacharan","lyrics":"jamo.html","isEng":true,"isAudio":true,"audio_url":"https://example.org/jamo.mp3"},
	{"title":"Krishna Bhajan","title_guj":"કૃષ્ણ ભજન","CatId":3,"lyrics":"krishna.html"},
	{"title":"Empty","title_guj":"ખાલી","CatId":"sant-kirtan","lyrics":"empty.html"},
	{"title":"Missing","title_guj":"ગુમ","CatId":"sant-kirtan","lyrics":"missing.html"},
	{"title":"Escape","title_guj":"બહાર","CatId":"sant-kirtan","lyrics":"../escape.html"}
]}`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func setupImportDir(t *testing.T, root string) string {
	t.Helper()
	dir := filepath.Join(root, "collection")
	require.NoError(t, os.MkdirAll(dir, 0755))
	writeFile(t, dir, ManifestFile, manifestJSON)
	writeFile(t, dir, "jamo.html", `<html><body><div class="header">Menu</div>
		<div class="main lyrics"><b>Jamo thal</b><br/>jivan jaun vari&nbsp;re<script>x()</script></div>*****</body></html>`)
	writeFile(t, dir, "krishna.html", `<html><body><p>Govinda &amp; Gopala</p><p>Radhe</p></body></html>`)
	writeFile(t, dir, "empty.html", `<html><body><div class="main"> <br> </div></body></html>`)
	return dir
}

func setupSongs(t *testing.T) *songrepo.SongRepo {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	logger := logrus.NewEntry(logrus.New())
	require.NoError(t, migrate.ExecuteMigrationsOnDb(db, logger))
	return songrepo.New(db, logger)
}

func waitForJob(t *testing.T, im *Importer, dir string) Job {
	t.Helper()
	var job *Job
	require.Eventually(t, func() bool {
		job = im.Status(dir)
		return job != nil && !job.Active()
	}, 5*time.Second, 10*time.Millisecond)
	return *job
}

func TestExtractLyrics(t *testing.T) {
	raw, err := ExtractLyrics(strings.NewReader(`<html><body><div class="main">It's <i>1 &lt; 2</i><br>next</div></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "It's <i>1 &lt; 2</i><br>next", raw)

	raw, err = ExtractLyrics(strings.NewReader(`<p>only body</p>`))
	require.NoError(t, err)
	assert.Equal(t, "<p>only body</p>", raw)
}

func TestImportDirectory(t *testing.T) {
	root := t.TempDir()
	dir := setupImportDir(t, root)
	songs := setupSongs(t)
	im := New(songs, root, logrus.NewEntry(logrus.New()))

	job, err := im.Start("collection")
	require.NoError(t, err)
	assert.Equal(t, dir, job.RootDir)

	done := waitForJob(t, im, dir)
	assert.Equal(t, StatusFinished, done.Status)
	assert.Equal(t, uint(5), done.Total)
	assert.Equal(t, uint(2), done.Imported)
	assert.Equal(t, uint(1), done.Skipped)
	assert.Equal(t, uint(2), done.Failed)

	ctx := context.Background()
	jamo, err := songs.GetByLyricsFile(ctx, "jamo.html")
	require.NoError(t, err)
	assert.Equal(t, "Jamo thal\njivan jaun vari re", jamo.Body)
	assert.Equal(t, "mangalacharan", jamo.Category)
	assert.True(t, jamo.HasEnglish)
	assert.True(t, jamo.HasAudio)
	assert.Equal(t, "https://example.org/jamo.mp3", jamo.AudioURL)

	krishna, err := songs.GetByLyricsFile(ctx, "krishna.html")
	require.NoError(t, err)
	assert.Equal(t, "Govinda & GopalaRadhe", krishna.Body)
	assert.Equal(t, "3", krishna.Category)

	// A second run skips everything that exists already
	_, err = im.Start(dir)
	require.NoError(t, err)
	again := waitForJob(t, im, dir)
	assert.Equal(t, uint(0), again.Imported)
	assert.Equal(t, uint(3), again.Skipped)
	all, err := songs.Find(ctx, filter.All(), false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	list := im.StatusAll()
	require.Len(t, list, 1)
	data, err := json.Marshal(list[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"finished"`)
}

func TestImportFailsWithoutManifest(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0755))
	im := New(setupSongs(t), root, logrus.NewEntry(logrus.New()))

	_, err := im.Start("empty")
	require.NoError(t, err)
	job := waitForJob(t, im, filepath.Join(root, "empty"))
	assert.Equal(t, StatusFailed, job.Status)
	assert.Contains(t, job.Error, "manifest")
}

func TestImportRejectsDirectoriesOutsideRoot(t *testing.T) {
	root := t.TempDir()
	im := New(setupSongs(t), filepath.Join(root, "inside"), logrus.NewEntry(logrus.New()))
	_, err := im.Start("../outside")
	assert.Equal(t, ErrOutsideRoot, err)
	_, err = im.Start(root)
	assert.Equal(t, ErrOutsideRoot, err)
}

func TestImportAlreadyQueued(t *testing.T) {
	root := t.TempDir()
	dir := setupImportDir(t, root)
	im := New(setupSongs(t), root, logrus.NewEntry(logrus.New())).WithPause(200 * time.Millisecond)

	_, err := im.Start(dir)
	require.NoError(t, err)
	_, err = im.Start(dir)
	assert.Equal(t, ErrAlreadyQueued, err)

	im.Stop(dir)
	job := waitForJob(t, im, dir)
	assert.Equal(t, StatusCancelled, job.Status)
	assert.Less(t, job.Imported, uint(2))
}

func TestStatusNames(t *testing.T) {
	for st := StatusQueued; st <= StatusCancelled; st++ {
		data, err := json.Marshal(st)
		require.NoError(t, err)
		var back JobStatus
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, st, back)
	}
	assert.Equal(t, "unknown", JobStatus(42).String())
}
