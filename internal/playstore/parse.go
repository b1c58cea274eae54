// Package playstore parses per-package app-store JSON snapshots into
// the record shape the pipeline stores per Google Play page.
package playstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const uploadDateLayout = "Jan 2, 2006"

const inAppPurchaseSection = "In-app purchases"

// PlayPage is the merged record for one Android package, built from
// the primary snapshot plus an optional category-only snapshot.
type PlayPage struct {
	DocID                     string
	URI                       string
	SnapshotTimestamp         *int64
	Title                     string
	Categories                []string
	PromotionalDescription    string
	DescriptionHTML           string
	TranslatedDescriptionHTML string
	VersionCode               *float64
	VersionString             string
	UploadDate                *int64
	FormattedAmount           string
	CurrencyCode              string
	InAppPurchases            string
	InstallNotes              string
	StarRating                *float64
	NumDownloads              string
	DeveloperName             string
	DeveloperEmail            string
	DeveloperWebsite          string
	TargetSDKVersion          *float64
	Permissions               []string
}

// ParsePlayPage reads the snapshots for packageName under detailsDir.
//
// The primary snapshot lives at <dir>/<pkg>.json, the category-only
// snapshot at <dir>/categories/<pkg>.json. With neither present the
// result is (nil, nil). With only the category snapshot a minimal
// record is produced, timestamped by the category file. With both, the
// category snapshot's category is appended to the primary list.
func ParsePlayPage(packageName, detailsDir string, log logrus.FieldLogger) (*PlayPage, error) {
	fileName := packageName + ".json"

	meta, mtime, err := readDetailsFile(filepath.Join(detailsDir, fileName))
	if err != nil {
		return nil, err
	}
	category, categoryMtime, err := readDetailsFile(
		filepath.Join(detailsDir, "categories", fileName))
	if err != nil {
		return nil, err
	}

	if meta == nil && category == nil {
		log.WithField("package", packageName).Warn("No details snapshot")
		return nil, nil
	}

	minimal := meta == nil
	if minimal {
		meta = Details{"docId": packageName}
		mtime = categoryMtime
	}

	page := &PlayPage{
		DocID:             meta.optionalString("docId"),
		URI:               meta.optionalString("shareUrl"),
		SnapshotTimestamp: &mtime,
		Title:             meta.optionalString("title"),
	}

	if !minimal {
		// The description variants are the only required fields of the
		// snapshot schema; their absence fails the parse.
		if page.PromotionalDescription, err = meta.requiredString("promotionalDescription"); err != nil {
			return nil, fmt.Errorf("package %s: %w", packageName, err)
		}
		if page.DescriptionHTML, err = meta.requiredString("descriptionHtml"); err != nil {
			return nil, fmt.Errorf("package %s: %w", packageName, err)
		}
		if page.TranslatedDescriptionHTML, err = meta.requiredString("translatedDescriptionHtml"); err != nil {
			return nil, fmt.Errorf("package %s: %w", packageName, err)
		}
	}

	if offer := meta.childSlice("offer"); len(offer) > 0 {
		if first, ok := offer[0].(map[string]any); ok {
			page.FormattedAmount = Details(first).optionalString("formattedAmount")
			page.CurrencyCode = Details(first).optionalString("currencyCode")
		}
	}

	appDetails := meta.childMap("details").childMap("appDetails")
	page.Categories = appDetails.stringList("appCategory")
	if category != nil {
		page.Categories = append(page.Categories, category.optionalString("appCategory"))
	}
	page.VersionCode = appDetails.optionalNumber("versionCode")
	page.VersionString = appDetails.optionalString("versionString")
	page.InstallNotes = appDetails.optionalString("installNotes")
	page.NumDownloads = appDetails.optionalString("numDownloads")
	page.DeveloperName = appDetails.optionalString("developerName")
	page.DeveloperEmail = appDetails.optionalString("developerEmail")
	page.DeveloperWebsite = appDetails.optionalString("developerWebsite")
	page.TargetSDKVersion = appDetails.optionalNumber("targetSdkVersion")
	page.Permissions = appDetails.stringList("permission")

	if page.UploadDate, err = ParseUploadDate(appDetails); err != nil {
		return nil, fmt.Errorf("package %s: %w", packageName, err)
	}

	page.StarRating = meta.childMap("aggregateRating").optionalNumber("starRating")
	page.InAppPurchases = describeInAppPurchases(meta)

	return page, nil
}

// ParseUploadDate converts the human-readable uploadDate of an
// appDetails section to a unix timestamp. An absent date yields nil
// rather than a parse error.
func ParseUploadDate(appDetails Details) (*int64, error) {
	raw := appDetails.optionalString("uploadDate")
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(uploadDateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("parse upload date %q: %w", raw, err)
	}
	ts := t.Unix()
	return &ts, nil
}

// describeInAppPurchases extracts the in-app purchase description from
// the product details sections, if one exists.
func describeInAppPurchases(meta Details) string {
	sections := meta.childMap("productDetails").childSlice("section")
	for _, raw := range sections {
		section, ok := raw.(map[string]any)
		if !ok || Details(section).optionalString("title") != inAppPurchaseSection {
			continue
		}
		descriptions := Details(section).childSlice("description")
		if len(descriptions) == 0 {
			continue
		}
		if first, ok := descriptions[0].(map[string]any); ok {
			return Details(first).optionalString("description")
		}
	}
	return ""
}

// Properties returns the record as graph node properties, keyed the
// way the GooglePlayPage schema names them. Absent optional values are
// emitted as nulls.
func (p *PlayPage) Properties() map[string]any {
	props := map[string]any{
		"docId":                     p.DocID,
		"uri":                       p.URI,
		"title":                     p.Title,
		"appCategory":               p.Categories,
		"promotionalDescription":    p.PromotionalDescription,
		"descriptionHtml":           p.DescriptionHTML,
		"translatedDescriptionHtml": p.TranslatedDescriptionHTML,
		"versionString":             p.VersionString,
		"formattedAmount":           p.FormattedAmount,
		"currencyCode":              p.CurrencyCode,
		"inAppPurchases":            p.InAppPurchases,
		"installNotes":              p.InstallNotes,
		"numDownloads":              p.NumDownloads,
		"developerName":             p.DeveloperName,
		"developerEmail":            p.DeveloperEmail,
		"developerWebsite":          p.DeveloperWebsite,
		"permissions":               p.Permissions,
	}
	props["snapshotTimestamp"] = nullableInt(p.SnapshotTimestamp)
	props["uploadDate"] = nullableInt(p.UploadDate)
	props["versionCode"] = nullableFloat(p.VersionCode)
	props["targetSdkVersion"] = nullableFloat(p.TargetSDKVersion)
	props["starRating"] = nullableFloat(p.StarRating)
	return props
}

func nullableInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// WalkDetails calls fn for every JSON snapshot directly under
// detailsDir. The file stem is taken as the package name.
func WalkDetails(detailsDir string, fn func(packageName string, details Details) error) error {
	entries, err := os.ReadDir(detailsDir)
	if err != nil {
		return fmt.Errorf("read details dir %s: %w", detailsDir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		packageName := strings.TrimSuffix(entry.Name(), ".json")
		details, _, err := readDetailsFile(filepath.Join(detailsDir, entry.Name()))
		if err != nil {
			return err
		}
		if err := fn(packageName, details); err != nil {
			return err
		}
	}
	return nil
}
