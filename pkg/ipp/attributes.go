package ipp

import (
	"slices"
	"strings"

	"github.com/spf13/cast"
)

// Attributes maps attribute names to one or more string values. Integer,
// enum and boolean values are carried in their decimal or "true"/"false" form.
type Attributes map[string][]string

// Get returns the first value of name.
func (a Attributes) Get(name string) string {
	if v := a[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Has reports whether name is present.
func (a Attributes) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// Set replaces the values of name.
func (a Attributes) Set(name string, values ...string) {
	a[name] = values
}

// Add appends values to name.
func (a Attributes) Add(name string, values ...string) {
	a[name] = append(a[name], values...)
}

// SetInt replaces name with integer values.
func (a Attributes) SetInt(name string, values ...int) {
	s := make([]string, len(values))
	for i, v := range values {
		s[i] = cast.ToString(v)
	}
	a[name] = s
}

// SetBool replaces name with a boolean value.
func (a Attributes) SetBool(name string, v bool) {
	a[name] = []string{cast.ToString(v)}
}

// Int returns the first value of name as an integer.
func (a Attributes) Int(name string) (int, bool, error) {
	if !a.Has(name) {
		return 0, false, nil
	}
	n, err := cast.ToIntE(strings.TrimSpace(a.Get(name)))
	if err != nil {
		return 0, true, err
	}
	return n, true, nil
}

// Bool returns the first value of name as a boolean.
func (a Attributes) Bool(name string) (bool, bool, error) {
	if !a.Has(name) {
		return false, false, nil
	}
	b, err := cast.ToBoolE(a.Get(name))
	return b, true, err
}

// Names returns the attribute names in encoding order: charset and natural
// language first, the rest sorted.
func (a Attributes) Names() []string {
	names := make([]string, 0, len(a))
	for name := range a {
		if name != AttrCharset && name != AttrNaturalLanguage {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	head := make([]string, 0, 2)
	for _, name := range []string{AttrCharset, AttrNaturalLanguage} {
		if a.Has(name) {
			head = append(head, name)
		}
	}
	return append(head, names...)
}

// Clone returns a deep copy.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = slices.Clone(v)
	}
	return out
}

// Merge adds every value of other to a.
func (a Attributes) Merge(other Attributes) {
	for k, v := range other {
		a.Add(k, v...)
	}
}

// Well-known attribute names.
const (
	AttrCharset             = "attributes-charset"
	AttrNaturalLanguage     = "attributes-natural-language"
	AttrStatusMessage       = "status-message"
	AttrOperationID         = "operation-id"
	AttrPrinterURI          = "printer-uri"
	AttrRequestingUserName  = "requesting-user-name"
	AttrJobName             = "job-name"
	AttrJobID               = "job-id"
	AttrJobUUID             = "job-uuid"
	AttrJobURI              = "job-uri"
	AttrJobState            = "job-state"
	AttrJobStateReasons     = "job-state-reasons"
	AttrJobStateMessage     = "job-state-message"
	AttrJobPriority         = "job-priority"
	AttrJobOriginatingUser  = "job-originating-user-name"
	AttrDocumentFormat      = "document-format"
	AttrLastDocument        = "last-document"
	AttrWhichJobs           = "which-jobs"
	AttrLimit               = "limit"
	AttrCopies              = "copies"
	AttrSides               = "sides"
	AttrOrientation         = "orientation-requested"
	AttrPageRanges          = "page-ranges"
	AttrNumberUp            = "number-up"
	AttrMultipleDocHandling = "multiple-document-handling"
	AttrPrintScaling        = "print-scaling"
	AttrScale               = "x-scale-percent"
	AttrMargins             = "media-margins"
	AttrMarginTop           = "media-top-margin"
	AttrMarginBottom        = "media-bottom-margin"
	AttrMarginLeft          = "media-left-margin"
	AttrMarginRight         = "media-right-margin"
	AttrPagesProcessed      = "job-impressions-completed"
	AttrSheetsCompleted     = "job-media-sheets-completed"
	AttrKOctetsProcessed    = "job-k-octets-processed"
	AttrTimeAtCreation      = "time-at-creation"
	AttrTimeAtProcessing    = "time-at-processing"
	AttrTimeAtCompleted     = "time-at-completed"
	AttrInterveningJobs     = "number-of-intervening-jobs"
)

// syntax holds the value tag of attributes that are not plain keywords.
var syntax = map[string]ValueTag{
	AttrCharset:                            TagCharset,
	AttrNaturalLanguage:                    TagNaturalLanguage,
	AttrStatusMessage:                      TagText,
	AttrOperationID:                        TagEnum,
	AttrPrinterURI:                         TagURI,
	AttrRequestingUserName:                 TagName,
	AttrJobName:                            TagName,
	AttrJobID:                              TagInteger,
	AttrJobUUID:                            TagURI,
	AttrJobURI:                             TagURI,
	AttrJobState:                           TagEnum,
	AttrJobStateMessage:                    TagText,
	AttrJobPriority:                        TagInteger,
	AttrJobOriginatingUser:                 TagName,
	AttrDocumentFormat:                     TagMimeType,
	AttrLastDocument:                       TagBoolean,
	AttrLimit:                              TagInteger,
	AttrCopies:                             TagInteger,
	AttrOrientation:                        TagEnum,
	AttrPageRanges:                         TagRange,
	AttrNumberUp:                           TagInteger,
	AttrScale:                              TagInteger,
	AttrMarginTop:                          TagInteger,
	AttrMarginBottom:                       TagInteger,
	AttrMarginLeft:                         TagInteger,
	AttrMarginRight:                        TagInteger,
	AttrPagesProcessed:                     TagInteger,
	AttrSheetsCompleted:                    TagInteger,
	AttrKOctetsProcessed:                   TagInteger,
	AttrTimeAtCreation:                     TagInteger,
	AttrTimeAtProcessing:                   TagInteger,
	AttrTimeAtCompleted:                    TagInteger,
	AttrInterveningJobs:                    TagInteger,
	"printer-name":                         TagName,
	"printer-info":                         TagText,
	"printer-location":                     TagText,
	"printer-make-and-model":               TagText,
	"printer-uri-supported":                TagURI,
	"printer-state":                        TagEnum,
	"printer-state-message":                TagText,
	"printer-is-accepting-jobs":            TagBoolean,
	"printer-up-time":                      TagInteger,
	"queued-job-count":                     TagInteger,
	"operations-supported":                 TagEnum,
	"charset-configured":                   TagCharset,
	"charset-supported":                    TagCharset,
	"natural-language-configured":          TagNaturalLanguage,
	"generated-natural-language-supported": TagNaturalLanguage,
	"document-format-default":              TagMimeType,
	"document-format-supported":            TagMimeType,
	"copies-supported":                     TagRange,
	"copies-default":                       TagInteger,
	"number-up-supported":                  TagInteger,
	"number-up-default":                    TagInteger,
	"orientation-requested-supported":      TagEnum,
	"orientation-requested-default":        TagEnum,
	"page-ranges-supported":                TagBoolean,
	"color-supported":                      TagBoolean,
	"job-priority-supported":               TagInteger,
	"job-priority-default":                 TagInteger,
	"queue-size":                           TagInteger,
	"max-concurrent-jobs":                  TagInteger,
	"job-k-octets-supported":               TagRange,
}

// SyntaxOf returns the value tag used to encode name.
func SyntaxOf(name string) ValueTag {
	if tag, ok := syntax[name]; ok {
		return tag
	}
	return TagKeyword
}
