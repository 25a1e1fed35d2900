package job

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// SupportedPagesPerSheet lists the accepted N-up values.
var SupportedPagesPerSheet = []int{1, 2, 4, 6, 8}

// DuplexMode selects single or double sided output.
type DuplexMode string

const (
	DuplexNone      DuplexMode = "one-sided"
	DuplexLongEdge  DuplexMode = "two-sided-long-edge"
	DuplexShortEdge DuplexMode = "two-sided-short-edge"
)

// Orientation is the requested page orientation.
type Orientation string

const (
	OrientationPortrait         Orientation = "portrait"
	OrientationLandscape        Orientation = "landscape"
	OrientationReversePortrait  Orientation = "reverse-portrait"
	OrientationReverseLandscape Orientation = "reverse-landscape"
)

// MarginMode selects a margin preset.
type MarginMode string

const (
	MarginsNone    MarginMode = "none"
	MarginsMinimum MarginMode = "minimum"
	MarginsNormal  MarginMode = "normal"
	MarginsWide    MarginMode = "wide"
	MarginsCustom  MarginMode = "custom"
)

// Margins holds the margin preset and, for MarginsCustom, explicit sizes in points.
type Margins struct {
	Mode   MarginMode `json:"mode" validate:"omitempty,oneof=none minimum normal wide custom"`
	Top    float64    `json:"top,omitempty" validate:"gte=0"`
	Bottom float64    `json:"bottom,omitempty" validate:"gte=0"`
	Left   float64    `json:"left,omitempty" validate:"gte=0"`
	Right  float64    `json:"right,omitempty" validate:"gte=0"`
}

// PageRange is an inclusive, 1-based page interval.
type PageRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r PageRange) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// PrintOptions are the per-job rendering options. Empty enum fields fall back
// to the defaults at render time. Scale must be positive.
type PrintOptions struct {
	Copies        int         `json:"copies"`
	Collate       bool        `json:"collate"`
	Duplex        DuplexMode  `json:"duplex" validate:"omitempty,oneof=one-sided two-sided-long-edge two-sided-short-edge"`
	Orientation   Orientation `json:"orientation" validate:"omitempty,oneof=portrait landscape reverse-portrait reverse-landscape"`
	PageRange     *PageRange  `json:"page_range,omitempty"`
	PagesPerSheet int         `json:"pages_per_sheet"`
	Scale         float64     `json:"scale" validate:"gt=0,lte=10"`
	Margins       Margins     `json:"margins"`
}

// DefaultOptions returns the options used when a client sends none.
func DefaultOptions() PrintOptions {
	return PrintOptions{
		Copies:        1,
		Duplex:        DuplexNone,
		Orientation:   OrientationPortrait,
		PagesPerSheet: 1,
		Scale:         1.0,
		Margins:       Margins{Mode: MarginsNormal},
	}
}

// IsBooklet reports whether the options describe a 2-up booklet.
func (o PrintOptions) IsBooklet() bool {
	return o.PagesPerSheet == 2 && o.Duplex == DuplexShortEdge
}

// Validate checks the admission invariants of opts. It has no side effects.
func Validate(opts PrintOptions) error {
	if opts.Copies <= 0 {
		return fmt.Errorf("%w: copies must be greater than 0, got %d", ErrInvalidOptions, opts.Copies)
	}
	if !slices.Contains(SupportedPagesPerSheet, opts.PagesPerSheet) {
		return fmt.Errorf("%w: pages per sheet must be one of %v, got %d", ErrInvalidOptions, SupportedPagesPerSheet, opts.PagesPerSheet)
	}
	if r := opts.PageRange; r != nil {
		if r.Start < 1 {
			return fmt.Errorf("%w: page range must start at 1 or later, got %s", ErrInvalidOptions, r)
		}
		if r.Start > r.End {
			return fmt.Errorf("%w: page range start exceeds end: %s", ErrInvalidOptions, r)
		}
	}
	if opts.Margins.Mode != MarginsCustom && opts.Margins != (Margins{Mode: opts.Margins.Mode}) {
		return fmt.Errorf("%w: explicit margins require mode %q", ErrInvalidOptions, MarginsCustom)
	}

	if err := validate.Struct(opts); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q (value %v)", ErrInvalidOptions, fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return nil
}

// ValidateAgainstPages repeats Validate and additionally checks the page range
// against a known page count.
func ValidateAgainstPages(opts PrintOptions, pageCount int) error {
	if err := Validate(opts); err != nil {
		return err
	}
	if r := opts.PageRange; r != nil && pageCount > 0 && r.End > pageCount {
		return fmt.Errorf("%w: page range %s exceeds document length %d", ErrInvalidOptions, r, pageCount)
	}
	return nil
}
