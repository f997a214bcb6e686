package entity

import (
	"image"

	"github.com/joseph-ayodele/invoice2order/constants"
)

// Document is one page of an input file. It is not modified once created.
type Document struct {
	ID        string
	Image     image.Image
	Text      string // embedded text layer, if the source had one
	Format    constants.SourceFormat
	PageIndex int
	Source    string
}
