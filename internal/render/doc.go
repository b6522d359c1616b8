// Package render turns a document, its decorations and the widget views of
// a pass into display lines, and draws them.
//
// Compose is pure: it walks the document line by line, drops hidden ranges,
// styles marked ranges, and splices widget views in place of the ranges
// they replace. A block widget contributes all of its view lines in place
// of the source lines it covers.
//
// Two outputs are provided. Painter draws display lines on a tcell screen
// for the interactive viewer; Printer writes them to an io.Writer with ANSI
// colors for the render command. Both look styles up in a Theme by class.
package render
