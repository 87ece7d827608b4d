package schema

// CoreChapterSourceTable represents the 'core.chaptersource' table; a
// per-provider binding of a [CoreLogicalChapter] to the [CrawlerComicSource]
// that reported it.
type CoreChapterSourceTable struct {
	Table             string
	ID                string
	SeriesSourceID    string
	ChapterID         string
	ChapterURL        string
	ChapterTitle      string
	ScanlationGroup   string
	Language          string
	SourcePublishedAt string
	DiscoveredAt      string
	IsAvailable       string
}

// CoreChapterSource is the schema definition for core.chaptersource
var CoreChapterSource = CoreChapterSourceTable{
	Table:             "core.chaptersource",
	ID:                "id",
	SeriesSourceID:    "seriessourceid",
	ChapterID:         "chapterid",
	ChapterURL:        "chapterurl",
	ChapterTitle:      "chaptertitle",
	ScanlationGroup:   "scanlationgroup",
	Language:          "language",
	SourcePublishedAt: "sourcepublishedat",
	DiscoveredAt:      "discoveredat",
	IsAvailable:       "isavailable",
}

func (t CoreChapterSourceTable) Columns() []string {
	return []string{
		t.ID, t.SeriesSourceID, t.ChapterID, t.ChapterURL, t.ChapterTitle,
		t.ScanlationGroup, t.Language, t.SourcePublishedAt, t.DiscoveredAt, t.IsAvailable,
	}
}
