package baregit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindPaths_AdjacentDuplicatesRemoved(t *testing.T) {
	matches := []Match{
		{Line: `package="com.a"`, Path: "a/b.xml"},
		{Line: `package="com.a"`, Path: "a/b.xml"},
		{Line: `package="com.b"`, Path: "c/d.xml"},
	}
	assert.Equal(t, []string{"a/b.xml", "c/d.xml"}, FindPaths(matches))
}

func TestFindPaths_SortsByPath(t *testing.T) {
	matches := []Match{
		{Path: "c/d.xml"},
		{Path: "a/b.xml"},
		{Path: "c/d.xml"},
	}
	assert.Equal(t, []string{"a/b.xml", "c/d.xml"}, FindPaths(matches))
}

func TestFindPaths_Empty(t *testing.T) {
	assert.Empty(t, FindPaths(nil))
}

func TestParseGrepOutput(t *testing.T) {
	output := "master:app/AndroidManifest.xml:package=\"com.example\"\n" +
		"master:lib/build.gradle:applicationId \"com.example\" // note: trailing\n"

	matches := parseGrepOutput(output)
	assert.Equal(t, []Match{
		{Path: "app/AndroidManifest.xml", Line: `package="com.example"`},
		{Path: "lib/build.gradle", Line: `applicationId "com.example" // note: trailing`},
	}, matches)
}

func TestParseGrepOutput_SkipsMalformedLines(t *testing.T) {
	assert.Empty(t, parseGrepOutput("no separators here\n\n"))
}
