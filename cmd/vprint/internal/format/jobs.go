package format

import (
	"strconv"
	"strings"

	"github.com/vprint/vprint/pkg/ipp"
	"github.com/vprint/vprint/pkg/job"
)

var jobStateNames = map[int]string{
	3: "pending",
	4: "pending-held",
	5: "processing",
	6: "processing-stopped",
	7: "canceled",
	8: "aborted",
	9: "completed",
}

var printerStateNames = map[int]string{
	3: "idle",
	4: "processing",
	5: "stopped",
}

// JobState names an IPP job-state enum value. Unknown values are returned as is.
func JobState(raw string) string {
	return enumName(raw, jobStateNames)
}

// PrinterState names an IPP printer-state enum value.
func PrinterState(raw string) string {
	return enumName(raw, printerStateNames)
}

func enumName(raw string, names map[int]string) string {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return raw
	}
	if name, ok := names[n]; ok {
		return name
	}
	return raw
}

// JobID shows a job-uuid value without its urn prefix.
func JobID(raw string) string {
	if id, err := job.ParseID(raw); err == nil {
		return id.String()
	}
	return raw
}

var jobFieldOrder = []string{
	ipp.AttrJobUUID,
	ipp.AttrJobName,
	ipp.AttrJobOriginatingUser,
	ipp.AttrJobState,
	ipp.AttrJobStateReasons,
	ipp.AttrJobStateMessage,
	ipp.AttrDocumentFormat,
	ipp.AttrCopies,
	ipp.AttrNumberUp,
	ipp.AttrSides,
	ipp.AttrPageRanges,
	ipp.AttrJobPriority,
	ipp.AttrPagesProcessed,
	ipp.AttrSheetsCompleted,
	ipp.AttrKOctetsProcessed,
}

// JobFields lists the displayable attributes of a job group in a stable order.
func JobFields(attrs ipp.Attributes) [][2]string {
	fields := make([][2]string, 0, len(jobFieldOrder))
	for _, name := range jobFieldOrder {
		if !attrs.Has(name) {
			continue
		}
		value := strings.Join(attrs[name], ", ")
		switch name {
		case ipp.AttrJobUUID:
			value = JobID(value)
		case ipp.AttrJobState:
			value = JobState(value)
		}
		fields = append(fields, [2]string{name, value})
	}
	return fields
}

// PrinterFields lists every printer attribute, naming the printer-state enum.
func PrinterFields(attrs ipp.Attributes) [][2]string {
	names := attrs.Names()
	fields := make([][2]string, 0, len(names))
	for _, name := range names {
		if name == ipp.AttrCharset || name == ipp.AttrNaturalLanguage {
			continue
		}
		value := strings.Join(attrs[name], ", ")
		if name == "printer-state" {
			value = PrinterState(value)
		}
		fields = append(fields, [2]string{name, value})
	}
	return fields
}
