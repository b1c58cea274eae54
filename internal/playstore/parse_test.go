package playstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const primarySnapshot = `{
	"docId": "com.example.app",
	"shareUrl": "https://play.example.com/details?id=com.example.app",
	"title": "Example App",
	"promotionalDescription": "An example",
	"descriptionHtml": "<p>Long description</p>",
	"translatedDescriptionHtml": "<p>Translated</p>",
	"details": {
		"appDetails": {
			"appCategory": ["TOOLS"],
			"versionCode": 42,
			"versionString": "1.4.2",
			"uploadDate": "Mar 14, 2016",
			"numDownloads": "10,000+",
			"developerName": "Example Dev",
			"developerEmail": "dev@example.com",
			"developerWebsite": "https://example.com",
			"targetSdkVersion": 23,
			"permission": ["android.permission.INTERNET"]
		}
	},
	"offer": [{"formattedAmount": "Free", "currencyCode": "EUR"}],
	"aggregateRating": {"starRating": 4.5},
	"productDetails": {
		"section": [
			{"title": "Something else", "description": [{"description": "ignored"}]},
			{"title": "In-app purchases", "description": [{"description": "$0.99 per item"}]}
		]
	}
}`

const categorySnapshot = `{"appCategory": "PRODUCTIVITY"}`

func writeSnapshot(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestParsePlayPage_NoData(t *testing.T) {
	logger, hook := logrustest.NewNullLogger()

	page, err := ParsePlayPage("com.example.app", t.TempDir(), logger)
	require.NoError(t, err)
	assert.Nil(t, page)
	require.Len(t, hook.Entries, 1)
	assert.Contains(t, hook.LastEntry().Message, "No details snapshot")
}

func TestParsePlayPage_Fields(t *testing.T) {
	logger, _ := logrustest.NewNullLogger()
	dir := t.TempDir()
	writeSnapshot(t, dir, "com.example.app.json", primarySnapshot)

	page, err := ParsePlayPage("com.example.app", dir, logger)
	require.NoError(t, err)
	require.NotNil(t, page)

	assert.Equal(t, "com.example.app", page.DocID)
	assert.Equal(t, "Example App", page.Title)
	assert.Equal(t, []string{"TOOLS"}, page.Categories)
	assert.Equal(t, "An example", page.PromotionalDescription)
	assert.Equal(t, "<p>Long description</p>", page.DescriptionHTML)
	assert.Equal(t, "1.4.2", page.VersionString)
	assert.Equal(t, "Free", page.FormattedAmount)
	assert.Equal(t, "EUR", page.CurrencyCode)
	assert.Equal(t, "$0.99 per item", page.InAppPurchases)
	assert.Equal(t, []string{"android.permission.INTERNET"}, page.Permissions)

	require.NotNil(t, page.VersionCode)
	assert.Equal(t, 42.0, *page.VersionCode)
	require.NotNil(t, page.StarRating)
	assert.Equal(t, 4.5, *page.StarRating)

	want := time.Date(2016, time.March, 14, 0, 0, 0, 0, time.UTC).Unix()
	require.NotNil(t, page.UploadDate)
	assert.Equal(t, want, *page.UploadDate)

	require.NotNil(t, page.SnapshotTimestamp)
	assert.NotZero(t, *page.SnapshotTimestamp)
}

func TestParsePlayPage_MergesCategoryFile(t *testing.T) {
	logger, _ := logrustest.NewNullLogger()
	dir := t.TempDir()
	writeSnapshot(t, dir, "com.example.app.json", primarySnapshot)
	writeSnapshot(t, filepath.Join(dir, "categories"), "com.example.app.json", categorySnapshot)

	page, err := ParsePlayPage("com.example.app", dir, logger)
	require.NoError(t, err)
	require.NotNil(t, page)

	// Primary-file categories come first, the category-file entry is
	// appended.
	assert.Equal(t, []string{"TOOLS", "PRODUCTIVITY"}, page.Categories)
}

func TestParsePlayPage_CategoryOnly(t *testing.T) {
	logger, _ := logrustest.NewNullLogger()
	dir := t.TempDir()
	writeSnapshot(t, filepath.Join(dir, "categories"), "com.example.app.json", categorySnapshot)

	page, err := ParsePlayPage("com.example.app", dir, logger)
	require.NoError(t, err)
	require.NotNil(t, page)

	assert.Equal(t, "com.example.app", page.DocID)
	assert.Equal(t, []string{"PRODUCTIVITY"}, page.Categories)
	assert.Empty(t, page.Title)
	require.NotNil(t, page.SnapshotTimestamp)
	assert.NotZero(t, *page.SnapshotTimestamp)
}

func TestParsePlayPage_MissingDescriptionFails(t *testing.T) {
	logger, _ := logrustest.NewNullLogger()
	dir := t.TempDir()
	writeSnapshot(t, dir, "com.example.app.json", `{"docId": "com.example.app", "promotionalDescription": "x", "descriptionHtml": "y"}`)

	_, err := ParsePlayPage("com.example.app", dir, logger)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingField)
	assert.Contains(t, err.Error(), "translatedDescriptionHtml")
}

func TestParseUploadDate_Absent(t *testing.T) {
	date, err := ParseUploadDate(Details{})
	require.NoError(t, err)
	assert.Nil(t, date)
}

func TestParseUploadDate_Invalid(t *testing.T) {
	_, err := ParseUploadDate(Details{"uploadDate": "14.03.2016"})
	assert.Error(t, err)
}

func TestWalkDetails(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, "com.a.json", `{"docId": "com.a"}`)
	writeSnapshot(t, dir, "com.b.json", `{"docId": "com.b"}`)
	writeSnapshot(t, dir, "notes.txt", "not json")
	writeSnapshot(t, filepath.Join(dir, "categories"), "com.a.json", categorySnapshot)

	seen := make(map[string]string)
	err := WalkDetails(dir, func(packageName string, details Details) error {
		seen[packageName] = details.optionalString("docId")
		return nil
	})
	require.NoError(t, err)

	// Only top-level .json files count; the categories subdirectory and
	// other files are skipped.
	assert.Equal(t, map[string]string{"com.a": "com.a", "com.b": "com.b"}, seen)
}

func TestPropertiesIncludesAbsentFieldsAsNull(t *testing.T) {
	page := &PlayPage{DocID: "com.a"}
	props := page.Properties()
	assert.Equal(t, "com.a", props["docId"])
	assert.Nil(t, props["uploadDate"])
	assert.Nil(t, props["starRating"])
}
