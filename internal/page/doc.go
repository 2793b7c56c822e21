// Package page models a readable document as an ordered list of visible
// text nodes. Highlights, the scroll focus and the reading-progress bar are
// kept as an overlay, so clearing them always leaves the original text.
package page
