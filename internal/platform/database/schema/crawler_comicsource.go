package schema

// CrawlerComicSourceTable represents the 'crawler.comicsource' table
type CrawlerComicSourceTable struct {
	Table              string
	ID                 string
	ComicID            string
	SourceID           string
	SourceIDExt        string
	SourceURL          string
	IsActive           string
	LastCrawlAt        string
	TrustScore         string
	SyncPriority       string
	LastSuccessAt      string
	LastCheckedAt      string
	NextCheckAt        string
	FailureCount       string
	SourceChapterCount string
	CreatedAt          string
}

var CrawlerComicSource = CrawlerComicSourceTable{
	Table:              "crawler.comicsource",
	ID:                 "id",
	ComicID:            "comicid",
	SourceID:           "sourceid",
	SourceIDExt:        "sourceid_ext",
	SourceURL:          "sourceurl",
	IsActive:           "isactive",
	LastCrawlAt:        "lastcrawlat",
	TrustScore:         "trustscore",
	SyncPriority:       "syncpriority",
	LastSuccessAt:      "lastsuccessat",
	LastCheckedAt:      "lastcheckedat",
	NextCheckAt:        "nextcheckat",
	FailureCount:       "failurecount",
	SourceChapterCount: "sourcechaptercount",
	CreatedAt:          "createdat",
}
