package schema

// NotifyNotificationTable represents the 'notify.notification' table -
// the per-user event row the delivery processor inserts.
type NotifyNotificationTable struct {
	Table             string
	ID                string
	UserID            string
	Type              string
	ComicID           string
	LogicalChapterID  string
	Metadata          string
	ReadAt            string
	CreatedAt         string
}

// NotifyNotification is the schema definition for notify.notification
var NotifyNotification = NotifyNotificationTable{
	Table:            "notify.notification",
	ID:               "id",
	UserID:           "userid",
	Type:             "type",
	ComicID:          "comicid",
	LogicalChapterID: "logicalchapterid",
	Metadata:         "metadata",
	ReadAt:           "readat",
	CreatedAt:        "createdat",
}

func (t NotifyNotificationTable) Columns() []string {
	return []string{
		t.ID, t.UserID, t.Type, t.ComicID, t.LogicalChapterID,
		t.Metadata, t.ReadAt, t.CreatedAt,
	}
}
