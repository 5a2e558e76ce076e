// Package normalisers turns uploaded bytes into plain text.
//
// Each sub-package handles one family of MIME types and implements
// driven.Extractor. Registry dispatches to them by MIME type and is the
// Extractor handed to the document service.
package normalisers
