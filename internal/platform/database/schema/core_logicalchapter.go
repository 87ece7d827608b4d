package schema

// CoreLogicalChapterTable represents the 'core.logicalchapter' table; the
// source-agnostic chapter identity shared across every provider binding.
type CoreLogicalChapterTable struct {
	Table         string
	ID            string
	ComicID       string
	ChapterNumber string
	ChapterTitle  string
	VolumeNumber  string
	PublishedAt   string
	FirstSeenAt   string
}

// CoreLogicalChapter is the schema definition for core.logicalchapter
var CoreLogicalChapter = CoreLogicalChapterTable{
	Table:         "core.logicalchapter",
	ID:            "id",
	ComicID:       "comicid",
	ChapterNumber: "chapternumber",
	ChapterTitle:  "chaptertitle",
	VolumeNumber:  "volumenumber",
	PublishedAt:   "publishedat",
	FirstSeenAt:   "firstseenat",
}

func (t CoreLogicalChapterTable) Columns() []string {
	return []string{
		t.ID, t.ComicID, t.ChapterNumber, t.ChapterTitle,
		t.VolumeNumber, t.PublishedAt, t.FirstSeenAt,
	}
}
