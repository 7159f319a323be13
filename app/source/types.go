package source

import "time"

// Tracking sheet column names. The sheet is exported from a Chinese
// content-ops spreadsheet; the headers are part of the data contract.
const (
	ColTitle       = "主题"
	ColContent     = "发布内容"
	ColAuthor      = "提出人"
	ColTags        = "标签"
	ColStatus      = "发布"
	ColChannels    = "渠道&账号"
	ColCompleted   = "发布完成"
	ColContentFile = "markdown格式文本"
)

// PublishedSentinel marks a row as already delivered to Medium.
const PublishedSentinel = "已发布"

// WorkflowMarker marks a row as having entered the publish pipeline.
const WorkflowMarker = "进入发布流程"

// DefaultTags is applied when the tags column is empty.
var DefaultTags = []string{"技术", "AI"}

// Article is one candidate publication unit parsed from the tracking
// sheet, optionally backed by a companion content file.
type Article struct {
	Title   string
	Content string
	Author  string
	Tags    []string

	Status    string // workflow status column
	Channels  string // channel targets column
	Completed string // completion status column

	ContentFile  string // companion filename, empty for inline content
	FileResolved bool   // companion file was found and read

	Slug string
	Date time.Time

	row int // index into the raw sheet for write-back
}
