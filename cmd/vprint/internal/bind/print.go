package bind

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/vprint/vprint/pkg/ipp"
	"github.com/vprint/vprint/pkg/job"
	"github.com/vprint/vprint/pkg/pipeline"
)

// DefaultChunkSize is the Send-Document payload size used by --stream.
const DefaultChunkSize = 1 << 20

var pageRangePattern = regexp.MustCompile(`^\d+(-\d+)?$`)

var orientationEnums = map[string]int{
	"portrait":          3,
	"landscape":         4,
	"reverse-landscape": 5,
	"reverse-portrait":  6,
}

// PrintOptions contains validated options for the print command
type PrintOptions struct {
	Path         string
	Name         string
	User         string
	Format       job.DocumentFormat
	Copies       int
	Sides        string
	Pages        string
	NumberUp     int
	Orientation  string
	Priority     int
	Collate      bool
	ValidateOnly bool
	Stream       bool
	ChunkSize    int
}

// BindPrintOptions extracts and validates print flags and the document argument.
//
// Flags read:
//   - --name, --user: job-name and requesting-user-name (defaults: file name, OS user)
//   - --format: document-format; "auto" sniffs the file locally
//   - --copies, --sides, --pages, --number-up, --orientation, --priority, --collate
//   - --validate-only: send Validate-Job instead of Print-Job
//   - --stream, --chunk-size: use Create-Job and Send-Document
func BindPrintOptions(cmd *cobra.Command, args []string) (PrintOptions, error) {
	if len(args) != 1 {
		return PrintOptions{}, fmt.Errorf("%w: expected exactly one document", ErrInvalidInput)
	}
	path := args[0]
	info, err := os.Stat(path)
	if err != nil {
		return PrintOptions{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !info.Mode().IsRegular() {
		return PrintOptions{}, fmt.Errorf("%w: %s is not a regular file", ErrInvalidInput, path)
	}

	name, _ := cmd.Flags().GetString("name")
	userName, _ := cmd.Flags().GetString("user")
	formatFlag, _ := cmd.Flags().GetString("format")
	copies, _ := cmd.Flags().GetInt("copies")
	sides, _ := cmd.Flags().GetString("sides")
	pages, _ := cmd.Flags().GetString("pages")
	numberUp, _ := cmd.Flags().GetInt("number-up")
	orientation, _ := cmd.Flags().GetString("orientation")
	priority, _ := cmd.Flags().GetInt("priority")
	collate, _ := cmd.Flags().GetBool("collate")
	validateOnly, _ := cmd.Flags().GetBool("validate-only")
	stream, _ := cmd.Flags().GetBool("stream")
	chunk, _ := cmd.Flags().GetInt("chunk-size")

	if name == "" {
		name = filepath.Base(path)
	}
	if userName == "" {
		userName = currentUser()
	}

	var format job.DocumentFormat
	if formatFlag == "" || formatFlag == "auto" {
		if format, err = pipeline.Sniff(path); err != nil {
			return PrintOptions{}, err
		}
	} else if format, err = job.ParseFormat(formatFlag); err != nil {
		return PrintOptions{}, err
	}

	switch {
	case copies < 1:
		return PrintOptions{}, fmt.Errorf("%w: --copies must be at least 1, got %d", ErrInvalidInput, copies)
	case numberUp < 1:
		return PrintOptions{}, fmt.Errorf("%w: --number-up must be at least 1, got %d", ErrInvalidInput, numberUp)
	case priority < 1 || priority > 100:
		return PrintOptions{}, fmt.Errorf("%w: --priority must be 1..100, got %d", ErrInvalidInput, priority)
	case pages != "" && !pageRangePattern.MatchString(pages):
		return PrintOptions{}, fmt.Errorf("%w: --pages must look like 3 or 2-5, got %q", ErrInvalidInput, pages)
	case stream && chunk < 1:
		return PrintOptions{}, fmt.Errorf("%w: --chunk-size must be positive", ErrInvalidInput)
	}
	switch job.DuplexMode(sides) {
	case "", job.DuplexNone, job.DuplexLongEdge, job.DuplexShortEdge:
	default:
		return PrintOptions{}, fmt.Errorf("%w: unknown --sides %q", ErrInvalidInput, sides)
	}
	if _, ok := orientationEnums[orientation]; orientation != "" && !ok {
		return PrintOptions{}, fmt.Errorf("%w: unknown --orientation %q", ErrInvalidInput, orientation)
	}

	return PrintOptions{
		Path:         path,
		Name:         name,
		User:         userName,
		Format:       format,
		Copies:       copies,
		Sides:        sides,
		Pages:        pages,
		NumberUp:     numberUp,
		Orientation:  orientation,
		Priority:     priority,
		Collate:      collate,
		ValidateOnly: validateOnly,
		Stream:       stream,
		ChunkSize:    chunk,
	}, nil
}

// Apply writes the job template attributes of o onto attrs.
func (o PrintOptions) Apply(attrs ipp.Attributes) {
	attrs.Set(ipp.AttrJobName, o.Name)
	attrs.Set(ipp.AttrRequestingUserName, o.User)
	attrs.Set(ipp.AttrDocumentFormat, string(o.Format))
	attrs.SetInt(ipp.AttrCopies, o.Copies)
	attrs.SetInt(ipp.AttrNumberUp, o.NumberUp)
	attrs.SetInt(ipp.AttrJobPriority, o.Priority)
	if o.Sides != "" {
		attrs.Set(ipp.AttrSides, o.Sides)
	}
	if o.Pages != "" {
		attrs.Set(ipp.AttrPageRanges, o.Pages)
	}
	if n, ok := orientationEnums[o.Orientation]; ok {
		attrs.SetInt(ipp.AttrOrientation, n)
	}
	if o.Collate {
		attrs.Set(ipp.AttrMultipleDocHandling, "separate-documents-collated-copies")
	}
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "anonymous"
}

// BindPrintFlags registers the print command flags.
func BindPrintFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("name", "", "Job name (default: file name)")
	f.String("user", "", "Requesting user name (default: current user)")
	f.String("format", "auto", "Document format: auto, application/pdf, application/postscript")
	f.Int("copies", 1, "Number of copies")
	f.String("sides", "", "one-sided, two-sided-long-edge or two-sided-short-edge")
	f.String("pages", "", "Page range, e.g. 2-5")
	f.Int("number-up", 1, "Pages per sheet")
	f.String("orientation", "", "portrait, landscape, reverse-portrait or reverse-landscape")
	f.Int("priority", 50, "Job priority 1..100")
	f.Bool("collate", false, "Collate copies")
	f.Bool("validate-only", false, "Validate the job without printing")
	f.Bool("stream", false, "Upload with Create-Job and Send-Document")
	f.Int("chunk-size", DefaultChunkSize, "Send-Document chunk size in bytes (with --stream)")
}

// JobID parses the single job id argument.
func JobID(args []string) (job.ID, error) {
	if len(args) != 1 {
		return job.ID{}, fmt.Errorf("%w: expected exactly one job id", ErrInvalidInput)
	}
	id, err := job.ParseID(args[0])
	if err != nil {
		return job.ID{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return id, nil
}

// ListOptions contains validated options for the job list command
type ListOptions struct {
	Which string
	Limit int
}

// BindListOptions extracts and validates job list flags.
func BindListOptions(cmd *cobra.Command) (ListOptions, error) {
	which, _ := cmd.Flags().GetString("which")
	limit, _ := cmd.Flags().GetInt("limit")

	switch which {
	case "not-completed", "completed", "all":
	default:
		return ListOptions{}, fmt.Errorf("%w: --which must be not-completed, completed or all, got %q", ErrInvalidInput, which)
	}
	if limit < 0 {
		return ListOptions{}, fmt.Errorf("%w: --limit must not be negative", ErrInvalidInput)
	}
	return ListOptions{Which: which, Limit: limit}, nil
}
