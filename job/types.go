package job

// Type names the handler contract a job is bound to. The queue
// classifier maps every type to a queue family at enqueue time;
// unmapped types are rejected when the classifier is built, never at
// runtime.
type Type string

func (t Type) String() string { return string(t) }

// Built-in job types. Applications may declare further types; anything
// enqueued must be covered by the classifier mapping.
const (
	TypeSendEmail         Type = "send_email"
	TypeRefreshFeed       Type = "refresh_feed"
	TypeCaptureScreenshot Type = "capture_screenshot"
	TypeTagListing        Type = "ai_tag_listing"
	TypeExportUserData    Type = "gdpr_export"
	TypeDeleteUserData    Type = "gdpr_delete"
	TypeExpireListing     Type = "expire_listing"
)

// BuiltinTypes returns the job types Foreman ships a default queue
// mapping for.
func BuiltinTypes() []Type {
	return []Type{
		TypeSendEmail,
		TypeRefreshFeed,
		TypeCaptureScreenshot,
		TypeTagListing,
		TypeExportUserData,
		TypeDeleteUserData,
		TypeExpireListing,
	}
}
