// Package render turns finished DOT text into deliverable artifacts.
//
// [Exporter.Prepare] injects the graph-level layout parameters and the
// info-box label into the DOT header, then [Exporter.SVG], [Exporter.PDF]
// and [Exporter.PNG] produce the output formats. SVG rendering runs
// Graphviz in-process; PDF and PNG are converted from the SVG with the
// external rsvg-convert tool.
package render
